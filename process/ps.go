//go:build linux

package process

import (
	"errors"
	"sort"

	"github.com/prometheus/procfs"
	"golang.org/x/sys/unix"
)

type SnapshotStrategy string

const (
	SnapshotAny      SnapshotStrategy = ""
	SnapshotPs       SnapshotStrategy = "ps"
	SnapshotChildren SnapshotStrategy = "children"
	SnapshotEnviron  SnapshotStrategy = "environ"
)

// Ps discovers descendants by walking the parent links of the process
// table.
type Ps struct {
	pid      int
	procfs   string
	fs       procfs.FS
	snapshot SnapshotStrategy
}

// Pid retrieves the process identifier.
func (ps *Ps) Pid() int {
	return ps.pid
}

// Strategy returns the method used to discover descendants.
func (ps *Ps) Strategy() SnapshotStrategy {
	return ps.snapshot
}

// Snapshot returns the system process table. Processes exiting during
// the scan are skipped.
func (ps *Ps) Snapshot() ([]PID, error) {
	procs, err := ps.fs.AllProcs()
	if err != nil {
		return nil, err
	}

	pids := make([]PID, 0, len(procs))
	for _, p := range procs {
		stat, err := p.Stat()
		if err != nil {
			continue
		}
		pids = append(pids, PID{Pid: stat.PID, PPid: stat.PPID, State: stat.State})
	}

	return pids, nil
}

// Children returns a snapshot of the descendants of the PID, in
// ascending order.
func (ps *Ps) Children() ([]int, error) {
	if !ps.exists(ps.pid) {
		return nil, ErrSearch
	}

	p, err := ps.Snapshot()
	if err != nil {
		return nil, err
	}
	return descendents(p, ps.pid), nil
}

// Alive reports whether a process is running. Zombies are not alive.
// A process owned by another user is alive.
func (ps *Ps) Alive(pid int) bool {
	if err := unix.Kill(pid, 0); err != nil && !errors.Is(err, unix.EPERM) {
		return false
	}

	p, err := ps.fs.Proc(pid)
	if err != nil {
		return false
	}

	stat, err := p.Stat()
	if err != nil {
		return false
	}

	return stat.State != "Z"
}

func (ps *Ps) exists(pid int) bool {
	_, err := ps.fs.Proc(pid)
	return err == nil
}

func descendents(pids []PID, pid int) []int {
	children := make(map[int]struct{})
	walk(pids, pid, children)
	cld := make([]int, 0, len(children))
	for p := range children {
		cld = append(cld, p)
	}
	sort.Ints(cld)
	return cld
}

func walk(pids []PID, pid int, children map[int]struct{}) {
	for _, p := range pids {
		if p.PPid != pid {
			continue
		}
		if _, ok := children[p.Pid]; ok {
			continue
		}
		children[p.Pid] = struct{}{}
		walk(pids, p.Pid, children)
	}
}
