//go:build !linux

package landlock

import "golang.org/x/sys/unix"

func addPath(rulesetFd int, path string, access AccessFSSet) error {
	return unix.ENOSYS
}
