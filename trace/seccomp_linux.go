package trace

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Seccomp constants from linux/seccomp.h.
const (
	seccompSetModeFilter   = 1
	seccompFilterFlagTsync = 1

	seccompRetKillProcess = 0x80000000
	seccompRetTrace       = 0x7ff00000
	seccompRetAllow       = 0x7fff0000
)

// Offsets into struct seccomp_data.
const (
	seccompDataNr   = 0
	seccompDataArch = 4
)

// x32SyscallBit marks x32 ABI system calls, which use different
// numbers for the same calls.
const x32SyscallBit = 0x40000000

func bpfStmt(code uint16, k uint32) unix.SockFilter {
	return unix.SockFilter{Code: code, K: k}
}

func bpfJump(code uint16, k uint32, jt, jf uint8) unix.SockFilter {
	return unix.SockFilter{Code: code, Jt: jt, Jf: jf, K: k}
}

// buildFilter returns a program that stops the caller for the tracer at
// every system call in nrs and allows all others. Calls made under any
// other architecture or under the x32 ABI kill the process.
func buildFilter(arch uint32, nrs []uint64) []unix.SockFilter {
	prog := []unix.SockFilter{
		bpfStmt(unix.BPF_LD|unix.BPF_W|unix.BPF_ABS, seccompDataArch),
		bpfJump(unix.BPF_JMP|unix.BPF_JEQ|unix.BPF_K, arch, 1, 0),
		bpfStmt(unix.BPF_RET|unix.BPF_K, seccompRetKillProcess),
		bpfStmt(unix.BPF_LD|unix.BPF_W|unix.BPF_ABS, seccompDataNr),
		bpfJump(unix.BPF_JMP|unix.BPF_JGE|unix.BPF_K, x32SyscallBit, 0, 1),
		bpfStmt(unix.BPF_RET|unix.BPF_K, seccompRetKillProcess),
	}
	for _, nr := range nrs {
		prog = append(prog,
			bpfJump(unix.BPF_JMP|unix.BPF_JEQ|unix.BPF_K, uint32(nr), 0, 1),
			bpfStmt(unix.BPF_RET|unix.BPF_K, seccompRetTrace),
		)
	}
	return append(prog, bpfStmt(unix.BPF_RET|unix.BPF_K, seccompRetAllow))
}

// installFilter applies prog to every thread of the calling process.
// It sets no_new_privs first, so that no privilege is needed.
func installFilter(prog []unix.SockFilter) error {
	if err := unix.Prctl(unix.PR_SET_NO_NEW_PRIVS, 1, 0, 0, 0); err != nil {
		return fmt.Errorf("prctl(PR_SET_NO_NEW_PRIVS): %w", err)
	}
	fprog := unix.SockFprog{Len: uint16(len(prog)), Filter: &prog[0]}
	tid, _, errno := unix.Syscall(unix.SYS_SECCOMP, seccompSetModeFilter, seccompFilterFlagTsync, uintptr(unsafe.Pointer(&fprog)))
	if errno != 0 {
		return fmt.Errorf("seccomp(SECCOMP_SET_MODE_FILTER): %w", errno)
	}
	if tid != 0 {
		return fmt.Errorf("seccomp(SECCOMP_SET_MODE_FILTER): thread %d could not be synchronized", tid)
	}
	return nil
}
