//go:build linux && amd64

package trace

import "golang.org/x/sys/unix"

// sysFchmodat2 is not yet known to every x/sys release.
const sysFchmodat2 = 452

// auditArch is matched against seccomp_data.arch by the filter.
const auditArch = unix.AUDIT_ARCH_X86_64

// System calls that a trapped call is rewritten into.
const (
	sysDup       = unix.SYS_DUP
	sysFcntl     = unix.SYS_FCNTL
	sysFstat     = unix.SYS_FSTAT
	sysExitGroup = unix.SYS_EXIT_GROUP
)

var archSyscalls = []syscallSpec{
	{unix.SYS_CHOWN, "chown", opChown},
	{unix.SYS_LCHOWN, "lchown", opLchown},
	{unix.SYS_FCHOWN, "fchown", opFchown},
	{unix.SYS_FCHOWNAT, "fchownat", opFchownat},
	{unix.SYS_CHROOT, "chroot", opChroot},
	{unix.SYS_EXECVE, "execve", opExecve},
	{unix.SYS_EXECVEAT, "execveat", opExecveat},
	{unix.SYS_FSYNC, "fsync", opFsync},
	{unix.SYS_SYNC_FILE_RANGE, "sync_file_range", opSyncFileRange},
	{unix.SYS_MKDIR, "mkdir", opMkdir},
	{unix.SYS_MKDIRAT, "mkdirat", opMkdirat},
	{unix.SYS_MKNOD, "mknod", opMknod},
	{unix.SYS_MKNODAT, "mknodat", opMknodat},
	{unix.SYS_LINK, "link", opLink},
	{unix.SYS_LINKAT, "linkat", opLinkat},
	{unix.SYS_SYMLINK, "symlink", opSymlink},
	{unix.SYS_SYMLINKAT, "symlinkat", opSymlinkat},
	{unix.SYS_RENAME, "rename", opRename},
	{unix.SYS_RENAMEAT, "renameat", opRenameat},
	{unix.SYS_RENAMEAT2, "renameat2", opRenameat},
	{unix.SYS_OPEN, "open", opOpen},
	{unix.SYS_OPENAT, "openat", opOpenat},
	{unix.SYS_CREAT, "creat", opCreat},
	{unix.SYS_OPENAT2, "openat2", opOpenat2},
	{unix.SYS_STAT, "stat", opStat},
	{unix.SYS_NEWFSTATAT, "newfstatat", opNewfstatat},
	{unix.SYS_STATX, "statx", opStatx},
	{unix.SYS_CHMOD, "chmod", opChmod},
	{unix.SYS_FCHMODAT, "fchmodat", opFchmodat},
	{sysFchmodat2, "fchmodat2", opFchmodat},
	{unix.SYS_FCHMOD, "fchmod", opFchmod},
}

// registers wraps the tracee's registers at a syscall stop. The
// syscall number is in orig_rax and arguments are passed in rdi, rsi,
// rdx, r10, r8 and r9.
type registers struct {
	unix.PtraceRegs
	dirty bool
}

func (r *registers) nr() uint64 { return r.Orig_rax }

func (r *registers) setNr(nr uint64) {
	r.Orig_rax = nr
	r.dirty = true
}

func (r *registers) arg(i int) uint64 {
	switch i {
	case 0:
		return r.Rdi
	case 1:
		return r.Rsi
	case 2:
		return r.Rdx
	case 3:
		return r.R10
	case 4:
		return r.R8
	case 5:
		return r.R9
	}
	panic("syscall argument index out of range")
}

func (r *registers) setArg(i int, v uint64) {
	switch i {
	case 0:
		r.Rdi = v
	case 1:
		r.Rsi = v
	case 2:
		r.Rdx = v
	case 3:
		r.R10 = v
	case 4:
		r.R8 = v
	case 5:
		r.R9 = v
	default:
		panic("syscall argument index out of range")
	}
	r.dirty = true
}

// skip makes the kernel skip the call and return ret to the tracee.
func (r *registers) skip(ret int64) {
	r.Orig_rax = ^uint64(0)
	r.Rax = uint64(ret)
	r.dirty = true
}
