//go:build linux

package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "SUBREAPER"

var log = logrus.New()

// exitError carries the exit status of a supervised command.
type exitError struct {
	status int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.status)
}

func newRootCmd() *cobra.Command {
	cfg := viper.New()

	root := &cobra.Command{
		Use:           "subreaper",
		Short:         "Supervise a command and all of its descendants",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := cfg.BindPFlags(cmd.Flags()); err != nil {
				return err
			}
			return setupLog(cfg)
		},
	}

	cfg.SetEnvPrefix(envPrefix)
	cfg.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	cfg.AutomaticEnv()

	root.PersistentFlags().Bool("verbose", false, "debug output")
	root.PersistentFlags().String("log-format", "text", "log format: text or json")

	root.AddCommand(
		newRunCmd(cfg),
		newInitCmd(),
		newTreeCmd(cfg),
		newCheckCmd(),
	)

	return root
}

func setupLog(cfg *viper.Viper) error {
	log.SetOutput(os.Stderr)

	switch format := cfg.GetString("log-format"); format {
	case "text":
		log.SetFormatter(&logrus.TextFormatter{})
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		return fmt.Errorf("unrecognized log format %s, needs to be either text or json", format)
	}

	if cfg.GetBool("verbose") {
		log.SetLevel(logrus.DebugLevel)
	}

	return nil
}

func execute(args []string) int {
	root := newRootCmd()
	root.SetArgs(args)

	err := root.Execute()
	if err == nil {
		return 0
	}

	var e *exitError
	if errors.As(err, &e) {
		return e.status
	}

	log.Error(err)
	return 111
}
