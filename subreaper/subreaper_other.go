//go:build !linux && !freebsd

package subreaper

const setOp = "subreaper"

var platform controller = unsupported{}
