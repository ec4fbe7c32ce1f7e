//go:build linux

package process

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/prometheus/procfs"
	"golang.org/x/sys/unix"
)

// Procfs is the default mount point for procfs filesystems. The default
// mountpoint can be changed by setting the PROC environment variable:
//
//	export PROC=/tmp/proc
const Procfs = "/proc"

// EnvMarker is the environment variable holding the pid of the
// supervisor. Descendants inherit the variable unless they clear their
// environment.
const EnvMarker = "CHILDSUBREAPER_PID"

// Process is a snapshot source for the descendants of a process.
type Process interface {
	Pid() int
	Strategy() SnapshotStrategy
	Children() ([]int, error)
	Snapshot() ([]PID, error)
	Alive(pid int) bool
}

// PID is the contents of /proc/[pid]/stat for a process.
//
// Pid is the process ID.
//
// PPid is the parent process ID.
//
// State is the single character process state: R, S, D, Z, ...
type PID struct {
	Pid   int
	PPid  int
	State string
}

// Zombie is true if the process has exited and not been waited on.
func (p PID) Zombie() bool {
	return p.State == "Z"
}

var (
	// ErrProcNotMounted is returned if /proc is not mounted or is
	// not a procfs filesystem.
	ErrProcNotMounted = errors.New("procfs not mounted")

	// ErrSearch is returned if the process does not exist.
	ErrSearch = errors.New("process not found")

	// ErrStrategy is returned for an unknown snapshot strategy.
	ErrStrategy = errors.New("unknown proc strategy")
)

type Opt struct {
	procfs   string
	pid      int
	strategy SnapshotStrategy
}

type Option func(*Opt)

// WithPid sets the process whose descendants are listed. The default
// is the current process.
func WithPid(pid int) Option {
	return func(o *Opt) {
		o.pid = pid
	}
}

// WithProcfs sets the procfs mount point.
func WithProcfs(procfs string) Option {
	return func(o *Opt) {
		o.procfs = procfs
	}
}

// WithStrategy sets the method for discovering descendants.
func WithStrategy(strategy SnapshotStrategy) Option {
	return func(o *Opt) {
		o.strategy = strategy
	}
}

func getenv(s, def string) string {
	v := os.Getenv(s)
	if v == "" {
		return def
	}
	return v
}

// New creates the configuration state for the process. Returns an
// error if procfs is not mounted.
func New(opts ...Option) (Process, error) {
	o := &Opt{
		pid:    os.Getpid(),
		procfs: getenv("PROC", Procfs),
	}

	for _, opt := range opts {
		opt(o)
	}

	path, err := procfsPath(o.procfs)
	if err != nil {
		return nil, err
	}

	fs, err := procfs.NewFS(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	ps := &Ps{
		pid:    o.pid,
		procfs: path,
		fs:     fs,
	}

	switch o.strategy {
	case SnapshotPs:
		ps.snapshot = SnapshotPs
		return ps, nil
	case SnapshotEnviron:
		ps.snapshot = SnapshotEnviron
		return &Environ{Ps: ps}, nil
	case SnapshotChildren:
		if !hasProcChildren(path) {
			return nil, fmt.Errorf("%s: %w", path, os.ErrNotExist)
		}
		ps.snapshot = SnapshotChildren
		return &ProcChildren{Ps: ps}, nil
	case SnapshotAny, "any":
		if hasProcChildren(path) {
			ps.snapshot = SnapshotChildren
			return &ProcChildren{Ps: ps}, nil
		}
		ps.snapshot = SnapshotPs
		return ps, nil
	}

	return nil, fmt.Errorf("%s: %w", o.strategy, ErrStrategy)
}

// Mark returns a copy of env with EnvMarker set to pid. Processes
// started with the environment are found by the environ strategy.
func Mark(env []string, pid int) []string {
	prefix := EnvMarker + "="

	marked := make([]string, 0, len(env)+1)
	for _, kv := range env {
		if strings.HasPrefix(kv, prefix) {
			continue
		}
		marked = append(marked, kv)
	}

	return append(marked, prefix+strconv.Itoa(pid))
}

// Zombies returns the processes in the snapshot which have exited but
// have not been reaped.
func Zombies(pids []PID) []PID {
	z := make([]PID, 0)
	for _, p := range pids {
		if p.Zombie() {
			z = append(z, p)
		}
	}
	return z
}

// hasProcChildren checks the kernel supports CONFIG_PROC_CHILDREN using
// the current process.
func hasProcChildren(procfs string) bool {
	_, err := os.Stat(fmt.Sprintf("%s/self/task/%d/children", procfs, os.Getpid()))
	return err == nil
}

func procfsPath(path string) (string, error) {
	procfs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	if err := isProcMounted(procfs); err != nil {
		return "", fmt.Errorf("%s: %w", procfs, err)
	}
	return procfs, nil
}

func isProcMounted(procfs string) error {
	var buf unix.Statfs_t
	if err := unix.Statfs(procfs, &buf); err != nil {
		return err
	}
	if buf.Type != unix.PROC_SUPER_MAGIC {
		return ErrProcNotMounted
	}
	return nil
}
