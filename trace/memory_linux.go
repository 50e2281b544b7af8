package trace

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"unsafe"

	"golang.org/x/sys/unix"
)

// maxPathLen bounds strings read from tracee memory, like PATH_MAX.
const maxPathLen = 4096

// tracee gives access to the memory and the directory context of a
// stopped thread.
type tracee interface {
	// read fills buf from the tracee address space.
	read(addr uint64, buf []byte) error

	// readString reads a NUL-terminated string.
	readString(addr uint64) (string, error)

	// dirPath returns the path of the directory open as dirfd, or of
	// the working directory for AT_FDCWD.
	dirPath(dirfd int) (string, error)
}

// procTracee accesses a thread through process_vm_readv and /proc.
type procTracee struct {
	tid int
}

func (p procTracee) read(addr uint64, buf []byte) error {
	if len(buf) == 0 {
		return nil
	}
	local := []unix.Iovec{{Base: &buf[0]}}
	local[0].SetLen(len(buf))
	remote := []unix.RemoteIovec{{Base: uintptr(addr), Len: len(buf)}}
	n, err := unix.ProcessVMReadv(p.tid, local, remote, 0)
	if err != nil {
		return fmt.Errorf("reading %d bytes at %#x in %d: %w", len(buf), addr, p.tid, err)
	}
	if n != len(buf) {
		return fmt.Errorf("reading %d bytes at %#x in %d: short read of %d", len(buf), addr, p.tid, n)
	}
	return nil
}

// readString reads page by page, so that a string ending just before an
// unmapped page is still read completely.
func (p procTracee) readString(addr uint64) (string, error) {
	if addr == 0 {
		return "", fmt.Errorf("reading string in %d: %w", p.tid, unix.EFAULT)
	}
	pageSize := uint64(os.Getpagesize())
	var out []byte
	for len(out) < maxPathLen {
		chunk := pageSize - addr%pageSize
		if rest := uint64(maxPathLen - len(out)); chunk > rest {
			chunk = rest
		}
		buf := make([]byte, chunk)
		if err := p.read(addr, buf); err != nil {
			return "", err
		}
		if i := bytes.IndexByte(buf, 0); i >= 0 {
			return string(append(out, buf[:i]...)), nil
		}
		out = append(out, buf...)
		addr += chunk
	}
	return "", fmt.Errorf("reading string at %#x in %d: %w", addr, p.tid, unix.ENAMETOOLONG)
}

func (p procTracee) dirPath(dirfd int) (string, error) {
	link := "/proc/" + strconv.Itoa(p.tid) + "/cwd"
	if dirfd != unix.AT_FDCWD {
		link = "/proc/" + strconv.Itoa(p.tid) + "/fd/" + strconv.Itoa(dirfd)
	}
	return os.Readlink(link)
}

// readOpenHow reads the flags and mode of a struct open_how.
func readOpenHow(t tracee, addr uint64) (flags, mode uint64, err error) {
	var how unix.OpenHow
	buf := unsafe.Slice((*byte)(unsafe.Pointer(&how)), unsafe.Sizeof(how))
	if err := t.read(addr, buf); err != nil {
		return 0, 0, err
	}
	return how.Flags, how.Mode, nil
}
