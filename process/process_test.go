//go:build linux

package process_test

import (
	"errors"
	"os"
	"os/exec"
	"sort"
	"syscall"
	"testing"
	"time"

	"github.com/msantos/childsubreaper/process"
)

func TestNew(t *testing.T) {
	ps, err := process.New()
	if err != nil {
		t.Fatalf("%v", err)
	}
	if pid := os.Getpid(); pid != ps.Pid() {
		t.Errorf("pid = %d, want %d", ps.Pid(), pid)
	}
}

func TestNewWithProcfs(t *testing.T) {
	procfs := "/bin"
	t.Setenv("PROC", procfs)

	_, err := process.New()
	if err == nil {
		t.Fatalf("non-existent procfs %s", procfs)
	}
	if !errors.Is(err, process.ErrProcNotMounted) {
		t.Errorf("procfs error = %v, want %v", err, process.ErrProcNotMounted)
	}
}

func TestNewStrategy(t *testing.T) {
	_, err := process.New(process.WithStrategy("pstree"))
	if !errors.Is(err, process.ErrStrategy) {
		t.Errorf("strategy error = %v, want %v", err, process.ErrStrategy)
	}
}

func TestReadProcList(t *testing.T) {
	ps, err := process.New(process.WithPid(1), process.WithStrategy(process.SnapshotPs))
	if err != nil {
		t.Fatalf("%v", err)
	}
	pids, err := ps.Children()
	if err != nil {
		t.Fatalf("%v", err)
	}
	if len(pids) == 0 {
		t.Errorf("process table is empty = %v", ps)
	}
}

func TestChildrenNotFound(t *testing.T) {
	// pid_max is at most 2^22
	ps, err := process.New(process.WithPid(1<<23), process.WithStrategy(process.SnapshotPs))
	if err != nil {
		t.Fatalf("%v", err)
	}
	if _, err := ps.Children(); !errors.Is(err, process.ErrSearch) {
		t.Errorf("Children() = %v, want %v", err, process.ErrSearch)
	}
}

func TestChildren(t *testing.T) {
	cmd := exec.Command("sh", "-c", "sleep 60 & wait")
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if err := cmd.Start(); err != nil {
		t.Fatalf("%v", err)
	}
	t.Cleanup(func() {
		_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	})

	for _, strategy := range []process.SnapshotStrategy{process.SnapshotPs, process.SnapshotAny} {
		ps, err := process.New(process.WithStrategy(strategy))
		if err != nil {
			t.Fatalf("%s: %v", strategy, err)
		}

		found := false
		for _, pid := range mustChildren(t, ps) {
			if pid == cmd.Process.Pid {
				found = true
			}
		}
		if !found {
			t.Errorf("%s: child %d not found", strategy, cmd.Process.Pid)
		}
	}
}

func TestChildrenSorted(t *testing.T) {
	for i := 0; i < 3; i++ {
		startSleep(t, nil)
	}

	for _, strategy := range []process.SnapshotStrategy{process.SnapshotPs, process.SnapshotAny} {
		ps, err := process.New(process.WithStrategy(strategy))
		if err != nil {
			t.Fatalf("%s: %v", strategy, err)
		}
		if pids := mustChildren(t, ps); !sort.IntsAreSorted(pids) {
			t.Errorf("%s: not sorted: %v", strategy, pids)
		}
	}
}

func TestEnviron(t *testing.T) {
	marked := startSleep(t, process.Mark(os.Environ(), os.Getpid()))
	unmarked := startSleep(t, os.Environ())

	ps, err := process.New(process.WithStrategy(process.SnapshotEnviron))
	if err != nil {
		t.Fatalf("%v", err)
	}
	if ps.Strategy() != process.SnapshotEnviron {
		t.Errorf("strategy = %s, want %s", ps.Strategy(), process.SnapshotEnviron)
	}

	pids := mustChildren(t, ps)
	if !contains(pids, marked.Process.Pid) {
		t.Errorf("marked process %d not found: %v", marked.Process.Pid, pids)
	}
	if contains(pids, unmarked.Process.Pid) {
		t.Errorf("unmarked process %d found: %v", unmarked.Process.Pid, pids)
	}
}

func TestAlive(t *testing.T) {
	cmd := startSleep(t, nil)
	pid := cmd.Process.Pid

	ps, err := process.New()
	if err != nil {
		t.Fatalf("%v", err)
	}

	if !ps.Alive(pid) {
		t.Fatalf("%d: not alive", pid)
	}

	if err := cmd.Process.Kill(); err != nil {
		t.Fatalf("%v", err)
	}

	// not waited on: the process is a zombie
	deadline := time.Now().Add(5 * time.Second)
	for ps.Alive(pid) {
		if time.Now().After(deadline) {
			t.Fatalf("%d: alive after SIGKILL", pid)
		}
		time.Sleep(10 * time.Millisecond)
	}

	snapshot, err := ps.Snapshot()
	if err != nil {
		t.Fatalf("%v", err)
	}
	found := false
	for _, p := range process.Zombies(snapshot) {
		if p.Pid == pid {
			found = true
		}
	}
	if !found {
		t.Errorf("%d: not a zombie", pid)
	}

	_ = cmd.Wait()

	if ps.Alive(pid) {
		t.Errorf("%d: alive after wait", pid)
	}
}

func startSleep(t *testing.T, env []string) *exec.Cmd {
	t.Helper()

	cmd := exec.Command("sleep", "60")
	cmd.Env = env
	if err := cmd.Start(); err != nil {
		t.Fatalf("%v", err)
	}
	t.Cleanup(func() {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	})

	return cmd
}

func contains(pids []int, pid int) bool {
	for _, p := range pids {
		if p == pid {
			return true
		}
	}
	return false
}

func mustChildren(t *testing.T, ps process.Process) []int {
	t.Helper()
	pids, err := ps.Children()
	if err != nil {
		t.Fatalf("%v", err)
	}
	return pids
}
