//go:build linux

package process

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"syscall"
)

// ProcChildren contains the state for a process using the procfs(5)
// children file:
//
//	A space-separated list of child tasks of this task.  Each child task
//	is represented by its TID.
//
// Requires a kernel compiled with CONFIG_PROC_CHILDREN.
type ProcChildren struct {
	*Ps
}

// Children returns the subprocesses of the PID by reading the children
// file of each task, descending into each child. The PIDs are in
// ascending order.
func (ps *ProcChildren) Children() ([]int, error) {
	if !ps.exists(ps.pid) {
		return nil, ErrSearch
	}

	seen := map[int]struct{}{ps.pid: {}}
	pids := make([]int, 0)
	queue := []int{ps.pid}

	for len(queue) > 0 {
		pid := queue[0]
		queue = queue[1:]

		children, err := ps.taskChildren(pid)
		if err != nil {
			return pids, err
		}

		for _, cld := range children {
			if _, ok := seen[cld]; ok {
				continue
			}
			seen[cld] = struct{}{}
			pids = append(pids, cld)
			queue = append(queue, cld)
		}
	}

	sort.Ints(pids)
	return pids, nil
}

func (ps *ProcChildren) taskChildren(pid int) ([]int, error) {
	paths, err := filepath.Glob(
		fmt.Sprintf("%s/%d/task/*/children", ps.procfs, pid),
	)
	if err != nil {
		return nil, err
	}

	pids := make([]int, 0)
	for _, path := range paths {
		cld, err := readChildren(path)
		switch {
		case err == nil:
		case errors.Is(err, fs.ErrNotExist), errors.Is(err, syscall.ESRCH):
			// task exited
			continue
		default:
			return pids, err
		}
		pids = append(pids, cld...)
	}

	return pids, nil
}

func readChildren(path string) ([]int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	fields := strings.Fields(string(b))
	children := make([]int, 0, len(fields))
	for _, s := range fields {
		pid, err := strconv.Atoi(s)
		if err != nil {
			continue
		}
		children = append(children, pid)
	}

	return children, nil
}
