//go:build linux

// Command subreaper supervises a command and all of its descendants.
//
// Usage:
//
//	subreaper run [options] -- <command> <...>
//	subreaper init [options] -- <command> <...>
//	subreaper tree <pid>
//	subreaper check
//
// Options can also be set from the environment using the SUBREAPER_
// prefix:
//
//	SUBREAPER_SIGNAL=9 subreaper run -- make test
package main

import (
	"os"
)

var version = "0.6.0"

func main() {
	os.Exit(execute(os.Args[1:]))
}
