package subreaper

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

const setOp = "prctl(PR_SET_CHILD_SUBREAPER)"

var platform controller = prctl{}

// prctl uses PR_SET_CHILD_SUBREAPER, available since Linux 3.4.
type prctl struct{}

func (prctl) set() error {
	return unix.Prctl(unix.PR_SET_CHILD_SUBREAPER, 1, 0, 0, 0)
}

func (prctl) get() (bool, error) {
	// arg2 is an (int *)
	var v int32

	err := unix.Prctl(unix.PR_GET_CHILD_SUBREAPER,
		uintptr(unsafe.Pointer(&v)), 0, 0, 0)
	if err != nil {
		return false, &Error{Op: "prctl(PR_GET_CHILD_SUBREAPER)", Errno: errnoOf(err)}
	}

	return v != 0, nil
}

func (prctl) supported() bool {
	return true
}
