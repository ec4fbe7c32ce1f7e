//go:build linux

package main

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/msantos/childsubreaper/process"
)

func newTreeCmd(cfg *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tree <pid>",
		Short: "List the descendants of a process",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := strconv.Atoi(args[0])
			if err != nil {
				return err
			}

			strategy := cfg.GetString("strategy")

			ps, err := process.New(
				process.WithPid(pid),
				process.WithStrategy(process.SnapshotStrategy(strategy)),
			)
			if err != nil {
				return err
			}

			log.WithField("strategy", ps.Strategy()).Debug("snapshot")

			children, err := ps.Children()
			if err != nil {
				return err
			}

			sort.Ints(children)

			if len(children) == 0 {
				return nil
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, pid)
			for _, cld := range children {
				fmt.Fprintf(out, "|-%v\n", cld)
			}
			return nil
		},
	}

	cmd.Flags().String("strategy", "any", "snapshot strategy: any, ps, children or environ")

	return cmd
}
