//go:build linux

package process

import (
	"sort"
	"strconv"
)

// Environ discovers descendants by the EnvMarker variable in
// /proc/[pid]/environ. Descendants are found even after being
// reparented to init, for platforms or kernels where the supervisor
// cannot be a subreaper.
//
// Processes belonging to other users cannot be read and are skipped.
type Environ struct {
	*Ps
}

// Children returns the processes marked with the PID, in ascending
// order.
func (ps *Environ) Children() ([]int, error) {
	procs, err := ps.fs.AllProcs()
	if err != nil {
		return nil, err
	}

	marker := EnvMarker + "=" + strconv.Itoa(ps.pid)

	pids := make([]int, 0)
	for _, p := range procs {
		if p.PID == ps.pid {
			continue
		}
		env, err := p.Environ()
		if err != nil {
			continue
		}
		for _, kv := range env {
			if kv == marker {
				pids = append(pids, p.PID)
				break
			}
		}
	}

	sort.Ints(pids)
	return pids, nil
}
