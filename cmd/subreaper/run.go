//go:build linux

package main

import (
	"os"
	"syscall"
	"time"

	"github.com/msantos/childsubreaper/reap"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func supervisorFlags(flags *pflag.FlagSet) {
	flags.Int("signal", int(syscall.SIGTERM), "signal sent to supervised processes")
	flags.Bool("disable-setuid", false, "disallow setuid (unkillable) subprocesses")
	flags.Bool("wait", false, "wait for subprocesses to exit")
	flags.Duration("deadline", 60*time.Second,
		"send SIGKILL if processes running after deadline (0 to disable)")
	flags.Duration("delay", time.Second, "interval between signalling subprocesses")
}

func supervisorOptions(cfg *viper.Viper) []reap.Option {
	return []reap.Option{
		reap.WithSignal(syscall.Signal(cfg.GetInt("signal"))),
		reap.WithDisableSetuid(cfg.GetBool("disable-setuid")),
		reap.WithWait(cfg.GetBool("wait")),
		reap.WithDeadline(cfg.GetDuration("deadline")),
		reap.WithDelay(cfg.GetDuration("delay")),
		reap.WithLog(func(err error) {
			log.Debug(err)
		}),
	}
}

// supervise runs the command and reaps all descendants.
func supervise(cfg *viper.Viper, argv []string) error {
	r, err := reap.New(supervisorOptions(cfg)...)
	if err != nil {
		return err
	}
	defer r.Close()

	log.WithField("subreaper", r.Subreaper().Outcome).Debug("supervisor started")

	status, err := r.Exec(argv, os.Environ())
	if err != nil {
		return err
	}

	if status != 0 {
		return &exitError{status: status}
	}

	return nil
}

func newRunCmd(cfg *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [options] -- <command> <...>",
		Short: "Run a command and terminate its descendants when it exits",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return supervise(cfg, args)
		},
	}

	cmd.Flags().SetInterspersed(false)
	supervisorFlags(cmd.Flags())

	return cmd
}
