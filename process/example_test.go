//go:build linux

package process_test

import (
	"fmt"

	"github.com/msantos/childsubreaper/process"
)

func ExampleProcChildren_Children() {
	ps, err := process.New(process.WithPid(1), process.WithStrategy(process.SnapshotChildren))
	if err != nil {
		fmt.Println(err)
		return
	}
	pids, err := ps.Children()
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(pids)
}

func ExamplePs_Snapshot() {
	ps, err := process.New()
	if err != nil {
		fmt.Println(err)
		return
	}
	pids, err := ps.Snapshot()
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(len(pids) > 0)
}
