package subreaper_test

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"testing"

	"github.com/msantos/childsubreaper/process"
	"github.com/msantos/childsubreaper/subreaper"
	"golang.org/x/sync/errgroup"
)

func ExampleEnable() {
	r := subreaper.Enable()
	if !r.OK() {
		fmt.Println("failed to set subreaper:", r.Err())
		return
	}
	fmt.Println(r.Outcome)
	// Output:
	// engaged
}

func ExampleGet() {
	subreaper.Enable()
	fmt.Println(subreaper.Get())
	// Output:
	// true <nil>
}

func TestEnable(t *testing.T) {
	if !subreaper.Supported() {
		t.Fatalf("Supported() = false")
	}

	for i := 0; i < 2; i++ {
		r := subreaper.Enable()
		if !r.OK() || r.Code() != 0 || r.Outcome != subreaper.Engaged {
			t.Fatalf("Enable() = %+v", r)
		}
	}

	ok, err := subreaper.Get()
	if err != nil {
		t.Fatalf("%v", err)
	}
	if !ok {
		t.Errorf("Get() = false after Enable")
	}
}

func TestGetThreads(t *testing.T) {
	if r := subreaper.Enable(); !r.OK() {
		t.Fatalf("%v", r.Err())
	}

	g := new(errgroup.Group)
	n := runtime.NumCPU() * 2

	for i := n; i > 0; i-- {
		g.Go(func() error {
			runtime.LockOSThread()
			defer runtime.UnlockOSThread()

			ok, err := subreaper.Get()
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("thread %d: not subreaper", syscall.Gettid())
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		t.Errorf("%v", err)
	}
}

func TestOrphanReparented(t *testing.T) {
	if r := subreaper.Enable(); !r.OK() {
		t.Fatalf("%v", r.Err())
	}

	out, err := exec.Command(
		"sh", "-c",
		"sleep 60 </dev/null >/dev/null 2>&1 & echo $!",
	).Output()
	if err != nil {
		t.Fatalf("%v", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(out)))
	if err != nil {
		t.Fatalf("%v", err)
	}

	t.Cleanup(func() {
		_ = syscall.Kill(pid, syscall.SIGKILL)
		var ws syscall.WaitStatus
		_, _ = syscall.Wait4(pid, &ws, 0, nil)
	})

	ps, err := process.New(process.WithStrategy(process.SnapshotPs))
	if err != nil {
		t.Fatalf("%v", err)
	}
	pids, err := ps.Snapshot()
	if err != nil {
		t.Fatalf("%v", err)
	}

	for _, p := range pids {
		if p.Pid != pid {
			continue
		}
		if p.PPid != os.Getpid() {
			t.Errorf("orphan %d: ppid = %d, want %d", pid, p.PPid, os.Getpid())
		}
		return
	}

	t.Errorf("orphan %d: not found in process table", pid)
}
