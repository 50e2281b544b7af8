package trace

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/samber/lo"
)

// ErrUnsupported is returned on platforms without a syscall table.
var ErrUnsupported = errors.New("click sandbox tracing is only supported on linux/amd64")

// opKind identifies a system call's argument layout.
type opKind int

const (
	opChown         opKind = iota // chown(path, uid, gid)
	opLchown                      // lchown(path, uid, gid)
	opFchown                      // fchown(fd, uid, gid)
	opFchownat                    // fchownat(dirfd, path, uid, gid, flags)
	opChroot                      // chroot(path)
	opExecve                      // execve(path, argv, envp)
	opExecveat                    // execveat(dirfd, path, argv, envp, flags)
	opFsync                       // fsync(fd)
	opSyncFileRange               // sync_file_range(fd, offset, n, flags)
	opMkdir                       // mkdir(path, mode)
	opMkdirat                     // mkdirat(dirfd, path, mode)
	opMknod                       // mknod(path, mode, dev)
	opMknodat                     // mknodat(dirfd, path, mode, dev)
	opLink                        // link(old, new)
	opLinkat                      // linkat(olddirfd, old, newdirfd, new, flags)
	opSymlink                     // symlink(target, path)
	opSymlinkat                   // symlinkat(target, dirfd, path)
	opRename                      // rename(old, new)
	opRenameat                    // renameat(olddirfd, old, newdirfd, new) and renameat2(..., flags)
	opOpen                        // open(path, flags, mode)
	opOpenat                      // openat(dirfd, path, flags, mode)
	opCreat                       // creat(path, mode)
	opOpenat2                     // openat2(dirfd, path, how, size)
	opStat                        // stat(path, buf)
	opNewfstatat                  // newfstatat(dirfd, path, buf, flags)
	opStatx                       // statx(dirfd, path, flags, mask, buf)
	opChmod                       // chmod(path, mode)
	opFchmodat                    // fchmodat(dirfd, path, mode) and fchmodat2(dirfd, path, mode, flags)
	opFchmod                      // fchmod(fd, mode)
)

// syscallSpec describes one intercepted system call.
type syscallSpec struct {
	nr   uint64
	name string
	op   opKind
}

// operations lists the intercepted operations that each argument layout
// can reach.
var operations = map[opKind][]string{
	opChown:         {"chown"},
	opLchown:        {"lchown"},
	opFchown:        {"fchown"},
	opFchownat:      {"chown", "lchown", "fchown"},
	opChroot:        {"chroot"},
	opExecve:        {"execvp"},
	opExecveat:      {"execvp"},
	opFsync:         {"fsync"},
	opSyncFileRange: {"sync_file_range"},
	opMkdir:         {"mkdir"},
	opMkdirat:       {"mkdir"},
	opMknod:         {"mknod", "mkfifo"},
	opMknodat:       {"mknod", "mkfifo"},
	opLink:          {"link"},
	opLinkat:        {"link"},
	opSymlink:       {"symlink"},
	opSymlinkat:     {"symlink"},
	opRename:        {"rename"},
	opRenameat:      {"rename"},
	opOpen:          {"open", "fopen"},
	opOpenat:        {"open", "fopen"},
	opCreat:         {"open"},
	opOpenat2:       {"open"},
	opStat:          {"stat"},
	opNewfstatat:    {"stat"},
	opStatx:         {"stat"},
	opChmod:         {"chmod"},
	opFchmodat:      {"chmod", "fchmod"},
	opFchmod:        {"fchmod"},
}

// requiredOperations must each be reachable through at least one
// system call for the sandbox to be sound. Passwd and group lookups are
// not system calls and cannot be observed here.
var requiredOperations = []string{
	"chown", "fchown", "lchown", "chroot", "execvp", "fsync",
	"sync_file_range", "mkdir", "mkfifo", "mknod", "link", "symlink",
	"rename", "open", "fopen", "stat", "chmod", "fchmod",
}

var (
	tableOnce sync.Once
	table     map[uint64]syscallSpec
	tableErr  error
)

// syscallTable returns the intercepted system calls of this platform,
// keyed by number. It is built once.
func syscallTable() (map[uint64]syscallSpec, error) {
	tableOnce.Do(func() {
		table, tableErr = buildTable(archSyscalls)
	})
	return table, tableErr
}

// Resolve reports whether this platform has a usable syscall table.
func Resolve() error {
	_, err := syscallTable()
	return err
}

func buildTable(specs []syscallSpec) (map[uint64]syscallSpec, error) {
	if len(specs) == 0 {
		return nil, ErrUnsupported
	}
	t := make(map[uint64]syscallSpec, len(specs))
	for _, s := range specs {
		if prev, ok := t[s.nr]; ok {
			return nil, bug(fmt.Errorf("syscall %d listed as both %s and %s", s.nr, prev.name, s.name))
		}
		t[s.nr] = s
	}
	covered := lo.Uniq(lo.FlatMap(specs, func(s syscallSpec, _ int) []string {
		return operations[s.op]
	}))
	missing := lo.Reject(requiredOperations, func(op string, _ int) bool {
		return lo.Contains(covered, op)
	})
	if len(missing) > 0 {
		return nil, fmt.Errorf("no system call to intercept %s", strings.Join(missing, ", "))
	}
	return t, nil
}

// Syscalls returns the names of the intercepted system calls, sorted.
func Syscalls() ([]string, error) {
	t, err := syscallTable()
	if err != nil {
		return nil, err
	}
	names := lo.Map(lo.Values(t), func(s syscallSpec, _ int) string { return s.name })
	sort.Strings(names)
	return names, nil
}

// trappedNumbers returns the sorted syscall numbers of t.
func trappedNumbers(t map[uint64]syscallSpec) []uint64 {
	nrs := lo.Keys(t)
	sort.Slice(nrs, func(i, j int) bool { return nrs[i] < nrs[j] })
	return nrs
}

func bug(err error) error {
	return fmt.Errorf("BUG(click-sandbox): should not have happened: %w", err)
}
