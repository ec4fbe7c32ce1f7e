// Package process lists the descendants of a process using procfs(5).
//
// Descendants are discovered by one of:
//
//	ps: walking the parent links in /proc/[pid]/stat
//	children: reading /proc/[pid]/task/[tid]/children (requires
//	          CONFIG_PROC_CHILDREN)
//	environ: matching a marker variable in /proc/[pid]/environ
//
// The ps and children strategies only see descendants that have not
// been reparented away from the process: without a subreaper, orphans
// are adopted by init. The environ strategy follows the processes
// wherever they are reparented, as long as the environment is
// inherited.
//
// The package is only available on Linux.
package process
