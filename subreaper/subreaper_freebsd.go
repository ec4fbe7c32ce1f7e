package subreaper

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	pPid = 0

	procReapAcquire = 2 // reaping enable
	procReapStatus  = 4 // reaping status

	reaperStatusOwned = 0x00000001 // process has acquired reaper status
)

const setOp = "procctl(PROC_REAP_ACQUIRE)"

var platform controller = procctl{}

type procctl struct{}

func (procctl) set() error {
	_, _, errno := unix.Syscall6(
		unix.SYS_PROCCTL, // trap
		pPid,             // idtype
		0,                // id
		procReapAcquire,  // cmd
		0,                // data
		0,
		0,
	)
	switch errno {
	case 0:
		return nil
	case unix.EBUSY:
		// already the reaper
		return nil
	}
	return errno
}

func (procctl) get() (bool, error) {
	status, err := Status()
	if err != nil {
		return false, err
	}
	return status.Flags&reaperStatusOwned != 0, nil
}

func (procctl) supported() bool {
	return true
}

// ReapStatus is struct procctl_reaper_status.
type ReapStatus struct {
	Flags       uint32
	Children    uint32
	Descendants uint32
	Reaper      int32
	Pid         int32
	pad0        [15]uint32
}

// Status returns the reaper status of the process: the number of
// children and descendants and the pid of the reaper.
func Status() (*ReapStatus, error) {
	status := &ReapStatus{}

	_, _, errno := unix.Syscall6(
		unix.SYS_PROCCTL,                // trap
		pPid,                            // idtype
		0,                               // id
		procReapStatus,                  // cmd
		uintptr(unsafe.Pointer(status)), // data
		0,
		0,
	)

	if errno != 0 {
		return status, &Error{Op: "procctl(PROC_REAP_STATUS)", Errno: errno}
	}
	return status, nil
}
