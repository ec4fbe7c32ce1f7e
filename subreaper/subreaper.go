// Package subreaper sets the process as the init for descendant
// processes.
//
// When a process is a subreaper, orphaned descendants are reparented to
// it instead of to init(1). The flag is held by the kernel, set once and
// never cleared: there is no operation to unset it.
//
// Enable should be called before forking the processes to be supervised.
// Descendants orphaned before the call have already been reparented
// to init.
package subreaper

import (
	"errors"
	"syscall"
)

// Outcome of a request to become a subreaper.
type Outcome int

const (
	// Engaged: the process is a subreaper.
	Engaged Outcome = iota

	// Unsupported: the platform has no subreaper mechanism. Nothing
	// was done and the request is not an error.
	Unsupported

	// Failed: the platform supports subreapers but the OS rejected
	// the request.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Engaged:
		return "engaged"
	case Unsupported:
		return "unsupported"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Result is returned by Enable.
//
// Errno is the error reported by the OS and is only set when Outcome
// is Failed.
type Result struct {
	Outcome Outcome
	Errno   syscall.Errno
}

// OK is true if the process is a subreaper or if the platform does not
// support subreapers.
func (r Result) OK() bool {
	return r.Outcome != Failed
}

// Code returns the OS error number or 0.
func (r Result) Code() int {
	if r.OK() {
		return 0
	}
	return int(r.Errno)
}

// Err returns nil unless the request failed.
func (r Result) Err() error {
	if r.OK() {
		return nil
	}
	return &Error{Op: setOp, Errno: r.Errno}
}

// Error describes a failed request to the OS process control interface.
type Error struct {
	Op    string
	Errno syscall.Errno
}

func (e *Error) Error() string {
	return e.Op + ": " + e.Errno.Error()
}

func (e *Error) Unwrap() error {
	return e.Errno
}

// controller is the process control interface of a platform.
type controller interface {
	set() error
	get() (bool, error)
	supported() bool
}

// unsupported is the controller for platforms without subreapers.
type unsupported struct{}

func (unsupported) set() error { return nil }

func (unsupported) get() (bool, error) { return false, nil }

func (unsupported) supported() bool { return false }

// Enable requests the calling process be marked as a subreaper.
//
// Enable is idempotent and safe to retry. On platforms without
// subreapers, Enable does nothing and returns an Unsupported result
// with OK() set to true.
func Enable() Result {
	if !platform.supported() {
		return Result{Outcome: Unsupported}
	}
	if err := platform.set(); err != nil {
		return Result{Outcome: Failed, Errno: errnoOf(err)}
	}
	return Result{Outcome: Engaged}
}

// Supported reports whether the platform has a subreaper mechanism.
// The process state is not changed.
func Supported() bool {
	return platform.supported()
}

// Get indicates whether the current process is the init process
// for descendant processes. Get always returns false on platforms
// without subreapers.
func Get() (bool, error) {
	return platform.get()
}

// errnoOf extracts the OS error number. The process control system
// calls only return syscall.Errno: anything else is reported as EINVAL.
func errnoOf(err error) syscall.Errno {
	var errno syscall.Errno
	if errors.As(err, &errno) && errno != 0 {
		return errno
	}
	return syscall.EINVAL
}
