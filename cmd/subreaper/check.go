//go:build linux

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/msantos/childsubreaper/subreaper"
)

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Report whether the process can become a subreaper",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()

			fmt.Fprintf(out, "supported: %v\n", subreaper.Supported())

			r := subreaper.Enable()
			fmt.Fprintf(out, "enable: %s\n", r.Outcome)
			if !r.OK() {
				log.WithError(r.Err()).WithField("errno", r.Code()).Error("enable")
				return &exitError{status: 1}
			}

			ok, err := subreaper.Get()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "subreaper: %v\n", ok)

			return nil
		},
	}
}
