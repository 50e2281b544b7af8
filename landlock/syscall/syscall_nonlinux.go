//go:build !linux

package syscall

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

func LandlockCreateRuleset(attr *RulesetAttr, flags int) (fd int, err error) {
	return -1, unix.ENOSYS
}

func LandlockGetABIVersion() (version int, err error) {
	return -1, unix.ENOSYS
}

func LandlockAddPathBeneathRule(rulesetFd int, attr *PathBeneathAttr, flags int) error {
	return unix.ENOSYS
}

func LandlockAddRule(rulesetFd int, ruleType int, ruleAttr unsafe.Pointer, flags int) (err error) {
	return unix.ENOSYS
}

func AllThreadsLandlockRestrictSelf(rulesetFd int, flags int) (err error) {
	return unix.ENOSYS
}

func AllThreadsSetNoNewPrivs() (err error) {
	return unix.ENOSYS
}
