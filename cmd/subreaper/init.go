//go:build linux

package main

import (
	"os"
	"os/exec"
	"os/signal"
	"sync"
	"syscall"

	reaper "github.com/ramr/go-reaper"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/msantos/childsubreaper/process"
	"github.com/msantos/childsubreaper/subreaper"
)

var (
	startReaper sync.Once
	reaped      chan reaper.Status
)

// startReaping collects every child of the process in the background.
// The status of each reaped process is sent on the reaped channel.
func startReaping() {
	startReaper.Do(func() {
		reaped = make(chan reaper.Status, 128)
		reaper.Start(reaper.Config{
			Pid:              -1,
			Options:          0,
			DisablePid1Check: true,
			StatusChannel:    reaped,
		})
	})
}

func logReaped(status reaper.Status) {
	entry := log.WithFields(logrus.Fields{
		"pid":    status.Pid,
		"status": status.WaitStatus.ExitStatus(),
	})
	if status.Err != nil {
		entry.WithError(status.Err).Debug("wait")
		return
	}
	if status.WaitStatus.Signaled() {
		entry = entry.WithField("signal", status.WaitStatus.Signal())
	}
	entry.Debug("reaped")
}

func waitStatus(ws syscall.WaitStatus) int {
	if ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	return ws.ExitStatus()
}

// initExec runs the command as the child of an init process: every
// process reparented to the supervisor is reaped. Returns the exit
// status of the command.
func initExec(argv []string) int {
	if r := subreaper.Enable(); !r.OK() {
		log.WithError(r.Err()).Warn("orphaned processes will be reparented to init")
	}

	command, err := exec.LookPath(argv[0])
	if err != nil {
		log.Error(err)
		return 127
	}

	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch)
	defer signal.Stop(sigch)

	startReaping()

	// The command is not waited on directly: the reaper collects it
	// along with any orphans.
	p, err := os.StartProcess(command, argv, &os.ProcAttr{
		Env:   process.Mark(os.Environ(), os.Getpid()),
		Files: []*os.File{os.Stdin, os.Stdout, os.Stderr},
	})
	if err != nil {
		log.Error(err)
		return 127
	}

	log.WithField("pid", p.Pid).Debug("started")

	for {
		select {
		case sig := <-sigch:
			switch sig {
			case syscall.SIGCHLD, syscall.SIGIO, syscall.SIGPIPE, syscall.SIGURG:
			default:
				_ = p.Signal(sig)
			}
		case status := <-reaped:
			logReaped(status)
			if status.Pid == p.Pid && status.Err == nil {
				return waitStatus(status.WaitStatus)
			}
		}
	}
}

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init -- <command> <...>",
		Short: "Run as a container init: reap all orphaned processes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if status := initExec(args); status != 0 {
				return &exitError{status: status}
			}
			return nil
		},
	}

	cmd.Flags().SetInterspersed(false)

	return cmd
}
