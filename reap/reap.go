//go:build linux

// Package reap supervises a command and every process it forks.
//
// The supervisor becomes a subreaper before running the command so
// orphaned descendants are reparented to it. When the command exits,
// the remaining descendants are signalled and waited on.
//
// If the platform does not support subreapers, descendants are found
// by a marker variable in their environment instead.
package reap

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/msantos/childsubreaper/process"
	"github.com/msantos/childsubreaper/subreaper"

	"golang.org/x/sys/unix"
)

const (
	maxInt64 = 1<<63 - 1
)

var (
	// ErrSubreaperUnsupported is logged if the platform cannot
	// reparent orphans to the supervisor. Descendants are found
	// using their environment.
	ErrSubreaperUnsupported = errors.New("subreaper not supported")

	// ErrStragglers is returned if descendants are running after
	// the command has been reaped.
	ErrStragglers = errors.New("descendants survived termination")
)

type Reap struct {
	sig           syscall.Signal
	disableSetuid bool
	wait          bool
	deadline      time.Duration
	delay         time.Duration
	log           func(error)

	enable func() subreaper.Result

	// serializes Exec: wait4(-1) collects any child of the process
	mu sync.Mutex

	ps        process.Process
	sigch     chan os.Signal
	subreaper subreaper.Result
}

type Option func(*Reap)

// WithDeadline sets the duration before descendants are sent SIGKILL.
// A deadline of 0 disables SIGKILL.
func WithDeadline(t time.Duration) Option {
	return func(r *Reap) {
		r.deadline = t
	}
}

// WithDelay sets the interval between signalling descendants.
func WithDelay(t time.Duration) Option {
	return func(r *Reap) {
		r.delay = t
	}
}

// WithDisableSetuid prevents the command from gaining privileges
// using setuid binaries.
func WithDisableSetuid(b bool) Option {
	return func(r *Reap) {
		r.disableSetuid = b
	}
}

// WithLog sets the function for diagnostic messages.
func WithLog(f func(error)) Option {
	return func(r *Reap) {
		r.log = f
	}
}

// WithSignal sets the signal sent to descendants.
func WithSignal(sig syscall.Signal) Option {
	return func(r *Reap) {
		r.sig = sig
	}
}

// WithWait waits for descendants to exit without signalling them.
func WithWait(b bool) Option {
	return func(r *Reap) {
		r.wait = b
	}
}

// WithEnable sets the function marking the process as a subreaper.
// The default is subreaper.Enable.
func WithEnable(f func() subreaper.Result) Option {
	return func(r *Reap) {
		r.enable = f
	}
}

// WithProcess sets the method for discovering descendants.
func WithProcess(ps process.Process) Option {
	return func(r *Reap) {
		r.ps = ps
	}
}

// New marks the process as a subreaper and returns the supervisor
// state. An unsupported platform is logged and descendants are
// discovered using the environ strategy. If the OS rejects the
// request, New returns the error: orphans would escape supervision.
func New(opts ...Option) (*Reap, error) {
	r := &Reap{
		sig:      syscall.SIGTERM,
		deadline: 60 * time.Second,
		delay:    time.Second,
		enable:   subreaper.Enable,
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.log == nil {
		r.log = func(error) {}
	}

	if r.delay <= 0 {
		r.delay = time.Second
	}

	r.subreaper = r.enable()

	strategy := process.SnapshotAny

	switch r.subreaper.Outcome {
	case subreaper.Unsupported:
		r.log(ErrSubreaperUnsupported)
		strategy = process.SnapshotEnviron
	case subreaper.Failed:
		return nil, r.subreaper.Err()
	}

	if r.ps == nil {
		ps, err := process.New(process.WithStrategy(strategy))
		if err != nil {
			return nil, err
		}
		r.ps = ps
	}

	r.sigch = make(chan os.Signal, 1)
	signal.Notify(r.sigch)

	return r, nil
}

// Subreaper returns the result of marking the process as a subreaper.
func (r *Reap) Subreaper() subreaper.Result {
	return r.subreaper
}

// Close stops signal delivery to the supervisor.
func (r *Reap) Close() {
	signal.Stop(r.sigch)
}

func (r *Reap) setNoNewPrivs() error {
	if !r.disableSetuid {
		return nil
	}

	return unix.Prctl(unix.PR_SET_NO_NEW_PRIVS, 1, 0, 0, 0)
}

// Exec runs the command, forwarding signals to all descendants. When
// the command exits, the remaining descendants are terminated and
// reaped. Concurrent calls run one at a time.
//
// The exit status is the status of the command: 128 + the signal
// number if the command was terminated by a signal, 127 if the command
// could not be started.
//
// If any descendant is still running after reaping, Exec returns
// ErrStragglers.
func (r *Reap) Exec(argv []string, env []string) (int, error) {
	if len(argv) == 0 {
		return 111, exec.ErrNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.setNoNewPrivs(); err != nil {
		return 111, fmt.Errorf("prctl(PR_SET_NO_NEW_PRIVS): %w", err)
	}

	exitStatus := r.execv(argv[0], argv[1:], process.Mark(env, os.Getpid()))
	if err := r.reap(); err != nil {
		return 111, err
	}

	if pids := r.stragglers(); len(pids) > 0 {
		return 111, fmt.Errorf("%v: %w", pids, ErrStragglers)
	}

	return exitStatus, nil
}

// stragglers returns the descendants still running. Processes
// reparented to init may take a moment to exit after SIGKILL.
func (r *Reap) stragglers() []int {
	var alive []int

	for i := 0; i < 2; i++ {
		if i > 0 {
			time.Sleep(r.delay)
		}

		pids, err := r.ps.Children()
		if err != nil {
			r.log(err)
			return nil
		}

		alive = alive[:0]
		for _, pid := range pids {
			if r.ps.Alive(pid) {
				alive = append(alive, pid)
			}
		}

		if len(alive) == 0 || r.wait {
			break
		}

		for _, pid := range alive {
			r.kill(pid, syscall.SIGKILL)
		}
	}

	return alive
}

func (r *Reap) kill(pid int, sig syscall.Signal) {
	err := syscall.Kill(pid, sig)
	if err == nil || errors.Is(err, syscall.ESRCH) {
		return
	}
	r.log(err)
}

func (r *Reap) signalWith(sig syscall.Signal) {
	pids, err := r.ps.Children()
	if err != nil {
		r.log(err)
		return
	}

	for _, pid := range pids {
		r.log(fmt.Errorf("%d: kill %s %d", r.ps.Pid(), unix.SignalName(sig), pid))
		r.kill(pid, sig)
	}
}

func forward(sig os.Signal) (syscall.Signal, bool) {
	s, ok := sig.(syscall.Signal)
	if !ok {
		return 0, false
	}
	switch s {
	case syscall.SIGCHLD, syscall.SIGIO, syscall.SIGPIPE, syscall.SIGURG:
		return 0, false
	}
	return s, true
}

func (r *Reap) supervise(done <-chan struct{}) {
	deadline := r.deadline
	if deadline <= 0 {
		deadline = time.Duration(maxInt64)
	}

	t := time.NewTimer(deadline)
	defer t.Stop()

	tick := time.NewTicker(r.delay)
	defer tick.Stop()

	sig := r.sig

	select {
	case <-done:
		return
	default:
	}

	if !r.wait {
		r.signalWith(sig)
	}

	for {
		select {
		case <-done:
			return
		case <-t.C:
			sig = syscall.SIGKILL
		case s := <-r.sigch:
			if s, ok := forward(s); ok {
				r.signalWith(s)
			}
		case <-tick.C:
			if !r.wait {
				r.signalWith(sig)
			}
		}
	}
}

func (r *Reap) reap() error {
	done := make(chan struct{})
	exited := make(chan struct{})

	go func() {
		defer close(exited)
		r.supervise(done)
	}()

	defer func() {
		close(done)
		<-exited
	}()

	for {
		_, err := syscall.Wait4(-1, nil, 0, nil)
		switch {
		case err == nil, errors.Is(err, syscall.EINTR):
		case errors.Is(err, syscall.ECHILD):
			return nil
		default:
			return err
		}
	}
}

func (r *Reap) execv(command string, args []string, env []string) int {
	cmd := exec.Command(command, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = env

	cmd.SysProcAttr = &syscall.SysProcAttr{
		Pdeathsig: syscall.SIGKILL,
	}

	if err := cmd.Start(); err != nil {
		r.log(err)
		return 127
	}
	waitCh := make(chan error, 1)
	go func() {
		waitCh <- cmd.Wait()
		close(waitCh)
	}()

	var exitError *exec.ExitError

	for {
		select {
		case sig := <-r.sigch:
			if s, ok := forward(sig); ok {
				r.signalWith(s)
			}
		case err := <-waitCh:
			if err == nil {
				return 0
			}

			if !errors.As(err, &exitError) {
				r.log(err)
				return 111
			}

			waitStatus, ok := exitError.Sys().(syscall.WaitStatus)
			if !ok {
				r.log(err)
				return 111
			}

			if waitStatus.Signaled() {
				return 128 + int(waitStatus.Signal())
			}

			return waitStatus.ExitStatus()
		}
	}
}
