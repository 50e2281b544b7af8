package interpose

import (
	"fmt"
	"strings"

	"golang.org/x/sys/unix"
)

// PreinstPath is the preinst maintainer script that every click package
// ships. Its only job is to refuse installation through plain dpkg, so
// executing it is replaced with a successful exit.
const PreinstPath = "/.click/tmp.ci/preinst"

// Exit statuses used by the Interposer.
const (
	ExitPreinst    = 0
	ExitViolation  = 1
	ExitUnresolved = 2
)

func opensForWriting(flags int) bool {
	return flags&unix.O_ACCMODE != unix.O_RDONLY
}

// fopenFlags translates an fopen mode string into open flags. A '+'
// anywhere after the first character adds write access, so "rb+" and
// "r+b" both open for writing.
func fopenFlags(mode string) (int, error) {
	var flags int
	switch {
	case strings.HasPrefix(mode, "r"):
		flags = unix.O_RDONLY
	case strings.HasPrefix(mode, "w"):
		flags = unix.O_WRONLY | unix.O_CREAT | unix.O_TRUNC
	case strings.HasPrefix(mode, "a"):
		flags = unix.O_WRONLY | unix.O_CREAT | unix.O_APPEND
	default:
		return 0, fmt.Errorf("invalid fopen mode %q: %w", mode, unix.EINVAL)
	}
	for _, c := range mode[1:] {
		switch c {
		case '+':
			flags = flags&^unix.O_ACCMODE | unix.O_RDWR
		case 'e':
			flags |= unix.O_CLOEXEC
		case 'x':
			flags |= unix.O_EXCL
		}
	}
	return flags, nil
}
