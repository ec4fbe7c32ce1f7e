package subreaper

import "syscall"

// fake records requests and fails with errno when set.
type fake struct {
	errno   syscall.Errno
	support bool
	flag    bool
	calls   int
}

func (f *fake) set() error {
	f.calls++
	if f.errno != 0 {
		return f.errno
	}
	f.flag = true
	return nil
}

func (f *fake) get() (bool, error) { return f.flag, nil }

func (f *fake) supported() bool { return f.support }

// InjectFake replaces the platform controller for the duration of a test.
//
// Returns a function reporting the number of set requests issued.
func InjectFake(cleanup func(func()), support bool, errno syscall.Errno) func() int {
	f := &fake{support: support, errno: errno}
	saved := platform
	platform = f
	cleanup(func() { platform = saved })
	return func() int { return f.calls }
}

// SimulateUnsupported replaces the platform controller with the controller for
// platforms without subreapers.
func SimulateUnsupported(cleanup func(func())) {
	saved := platform
	platform = unsupported{}
	cleanup(func() { platform = saved })
}
