//go:build linux && amd64

package trace

import (
	"errors"
	"fmt"

	"github.com/clickpkg/go-clicksandbox/interpose"
	"golang.org/x/sys/unix"
)

var errNotSyscall = errors.New("name service lookups are not system calls")

// stop is the interpose.Ops of one thread stopped at an intercepted
// system call. Forwarding an operation lets the stopped call proceed,
// possibly with edited registers. An operation the Interposer does not
// forward is skipped.
type stop struct {
	proc     tracee
	regs     *registers
	spec     syscallSpec
	workerFD int
	host     interpose.HostOps
	resolve  func() error

	// Decoded from the trapped call.
	path     string
	rawPath  string
	rawAddr  uint64
	modeArg  int
	cloexec  bool
	outcome  string
	forwards bool
}

var (
	_ interpose.Ops      = (*stop)(nil)
	_ interpose.Resolver = (*stop)(nil)
)

func newStop(proc tracee, regs *registers, spec syscallSpec, workerFD int) *stop {
	return &stop{proc: proc, regs: regs, spec: spec, workerFD: workerFD, resolve: Resolve, modeArg: -1}
}

func (s *stop) Resolve() error { return s.resolve() }

func (s *stop) forward(outcome string) {
	s.forwards = true
	s.outcome = outcome
}

func (s *stop) Chown(string, int, int) error       { s.forward("forward"); return nil }
func (s *stop) Fchown(int, int, int) error         { s.forward("forward"); return nil }
func (s *stop) Lchown(string, int, int) error      { s.forward("forward"); return nil }
func (s *stop) Exec(string, []string) error        { s.forward("forward"); return nil }
func (s *stop) Mkdir(string, uint32) error         { s.forward("forward"); return nil }
func (s *stop) Mkfifo(string, uint32) error        { s.forward("forward"); return nil }
func (s *stop) Mknod(string, uint32, uint64) error { s.forward("forward"); return nil }
func (s *stop) Link(string, string) error          { s.forward("forward"); return nil }
func (s *stop) Symlink(string, string) error       { s.forward("forward"); return nil }
func (s *stop) Rename(string, string) error        { s.forward("forward"); return nil }
func (s *stop) Stat(string, *unix.Stat_t) error    { s.forward("forward"); return nil }

func (s *stop) Open(string, int, uint32) (int, error) {
	s.forward("forward")
	return 0, nil
}

func (s *stop) Getpwnam(string) (*interpose.Passwd, error) { return nil, errNotSyscall }
func (s *stop) Getgrnam(string) (*interpose.Group, error)  { return nil, errNotSyscall }

func (s *stop) Chmod(_ string, mode uint32) error { return s.setMode(mode) }
func (s *stop) Fchmod(_ int, mode uint32) error   { return s.setMode(mode) }

func (s *stop) setMode(mode uint32) error {
	if s.modeArg < 0 {
		return bug(fmt.Errorf("%s has no mode argument", s.spec.name))
	}
	s.forward("mode")
	s.regs.setArg(s.modeArg, uint64(mode))
	return nil
}

// Dup turns the trapped open into a duplicate of the worker's copy of
// the package descriptor. It returns fd, the supervisor's descriptor,
// which shares its file description and so its offset with the copy.
func (s *stop) Dup(fd int) (int, error) {
	s.forward("redirect")
	if s.cloexec {
		s.regs.setNr(sysFcntl)
		s.regs.setArg(0, uint64(s.workerFD))
		s.regs.setArg(1, unix.F_DUPFD_CLOEXEC)
		s.regs.setArg(2, 0)
		return fd, nil
	}
	s.regs.setNr(sysDup)
	s.regs.setArg(0, uint64(s.workerFD))
	return fd, nil
}

func (s *stop) Seek(fd int, offset int64, whence int) (int64, error) {
	return s.host.Seek(fd, offset, whence)
}

// Fstat turns the trapped stat into its descriptor form on the worker's
// copy of the package descriptor. The *at forms get an empty path that
// points at the terminating NUL of the original one.
func (s *stop) Fstat(int, *unix.Stat_t) error {
	s.forward("redirect")
	empty := s.rawAddr + uint64(len(s.rawPath))
	switch s.spec.op {
	case opStat:
		s.regs.setNr(sysFstat)
		s.regs.setArg(0, uint64(s.workerFD))
	case opNewfstatat:
		s.regs.setArg(0, uint64(s.workerFD))
		s.regs.setArg(1, empty)
		s.regs.setArg(3, s.regs.arg(3)|unix.AT_EMPTY_PATH)
	case opStatx:
		s.regs.setArg(0, uint64(s.workerFD))
		s.regs.setArg(1, empty)
		s.regs.setArg(2, s.regs.arg(2)|unix.AT_EMPTY_PATH)
	default:
		return bug(fmt.Errorf("%s cannot be redirected to a descriptor", s.spec.name))
	}
	return nil
}

// Exit replaces the trapped call with exit_group.
func (s *stop) Exit(code int) {
	s.forward(fmt.Sprintf("exit %d", code))
	s.regs.setNr(sysExitGroup)
	s.regs.setArg(0, uint64(code))
}

// finish skips the trapped call unless an operation was forwarded. The
// tracee then sees err as the call's result.
func (s *stop) finish(err error) {
	if s.forwards {
		return
	}
	s.outcome = "skip"
	s.regs.skip(syscallReturn(err))
}

func syscallReturn(err error) int64 {
	if err == nil {
		return 0
	}
	var errno unix.Errno
	if errors.As(err, &errno) {
		return -int64(errno)
	}
	return -int64(unix.EPERM)
}

// passThrough lets a call that could not be decoded proceed untouched.
// The kernel then reports the same problem to the tracee.
func (s *stop) passThrough() error {
	s.forward("undecoded")
	return nil
}

// fd returns argument i as a signed int, as for descriptors and ids.
func (s *stop) fd(i int) int { return int(int32(s.regs.arg(i))) }

// pathArg reads the path in argument i and resolves it against the
// directory dirfd.
func (s *stop) pathArg(dirfd, i int) error {
	addr := s.regs.arg(i)
	raw, err := s.proc.readString(addr)
	if err != nil {
		return err
	}
	s.rawAddr, s.rawPath = addr, raw
	if raw == "" {
		s.path = ""
		return nil
	}
	dir := "/"
	if raw[0] != '/' {
		if dir, err = s.proc.dirPath(dirfd); err != nil {
			return err
		}
	}
	s.path = absPath(dir, raw)
	return nil
}

// emptyPath reports whether the call names the directory descriptor
// itself.
func (s *stop) emptyPath(flags uint64) bool {
	return s.rawPath == "" && flags&unix.AT_EMPTY_PATH != 0
}

// dispatch decodes the trapped call into the matching Interposer
// operation.
func (s *stop) dispatch(ip *interpose.Interposer) error {
	a := s.regs.arg

	switch s.spec.op {
	case opChown, opLchown:
		if err := s.pathArg(unix.AT_FDCWD, 0); err != nil {
			return s.passThrough()
		}
		if s.spec.op == opLchown {
			return ip.Lchown(s.path, s.fd(1), s.fd(2))
		}
		return ip.Chown(s.path, s.fd(1), s.fd(2))

	case opFchown:
		return ip.Fchown(s.fd(0), s.fd(1), s.fd(2))

	case opFchownat:
		if err := s.pathArg(s.fd(0), 1); err != nil {
			return s.passThrough()
		}
		flags := a(4)
		switch {
		case s.emptyPath(flags):
			return ip.Fchown(s.fd(0), s.fd(2), s.fd(3))
		case flags&unix.AT_SYMLINK_NOFOLLOW != 0:
			return ip.Lchown(s.path, s.fd(2), s.fd(3))
		}
		return ip.Chown(s.path, s.fd(2), s.fd(3))

	case opChroot:
		if err := s.pathArg(unix.AT_FDCWD, 0); err != nil {
			return s.passThrough()
		}
		return ip.Chroot(s.path)

	case opExecve:
		if err := s.pathArg(unix.AT_FDCWD, 0); err != nil {
			return s.passThrough()
		}
		return ip.Execvp(s.rawPath, nil)

	case opExecveat:
		if err := s.pathArg(s.fd(0), 1); err != nil {
			return s.passThrough()
		}
		file := s.rawPath
		if s.emptyPath(a(4)) {
			dir, err := s.proc.dirPath(s.fd(0))
			if err != nil {
				return s.passThrough()
			}
			file = dir
		}
		return ip.Execvp(file, nil)

	case opFsync:
		return ip.Fsync(s.fd(0))

	case opSyncFileRange:
		return ip.SyncFileRange(s.fd(0), int64(a(1)), int64(a(2)), int(a(3)))

	case opMkdir:
		if err := s.pathArg(unix.AT_FDCWD, 0); err != nil {
			return s.passThrough()
		}
		return ip.Mkdir(s.path, uint32(a(1)))

	case opMkdirat:
		if err := s.pathArg(s.fd(0), 1); err != nil {
			return s.passThrough()
		}
		return ip.Mkdir(s.path, uint32(a(2)))

	case opMknod, opMknodat:
		pathIdx, dirfd := 0, unix.AT_FDCWD
		if s.spec.op == opMknodat {
			pathIdx, dirfd = 1, s.fd(0)
		}
		if err := s.pathArg(dirfd, pathIdx); err != nil {
			return s.passThrough()
		}
		mode, dev := uint32(a(pathIdx+1)), a(pathIdx+2)
		if mode&unix.S_IFMT == unix.S_IFIFO {
			return ip.Mkfifo(s.path, mode)
		}
		return ip.Mknod(s.path, mode, dev)

	case opLink, opLinkat:
		oldIdx, oldDir, newIdx, newDir := 0, unix.AT_FDCWD, 1, unix.AT_FDCWD
		if s.spec.op == opLinkat {
			oldIdx, oldDir, newIdx, newDir = 1, s.fd(0), 3, s.fd(2)
		}
		if err := s.pathArg(oldDir, oldIdx); err != nil {
			return s.passThrough()
		}
		oldpath := s.path
		if err := s.pathArg(newDir, newIdx); err != nil {
			return s.passThrough()
		}
		return ip.Link(oldpath, s.path)

	case opSymlink, opSymlinkat:
		newIdx, newDir := 1, unix.AT_FDCWD
		if s.spec.op == opSymlinkat {
			newIdx, newDir = 2, s.fd(1)
		}
		target, err := s.proc.readString(a(0))
		if err != nil {
			return s.passThrough()
		}
		if err := s.pathArg(newDir, newIdx); err != nil {
			return s.passThrough()
		}
		return ip.Symlink(target, s.path)

	case opRename, opRenameat:
		oldIdx, oldDir, newIdx, newDir := 0, unix.AT_FDCWD, 1, unix.AT_FDCWD
		if s.spec.op == opRenameat {
			oldIdx, oldDir, newIdx, newDir = 1, s.fd(0), 3, s.fd(2)
		}
		if err := s.pathArg(oldDir, oldIdx); err != nil {
			return s.passThrough()
		}
		oldpath := s.path
		if err := s.pathArg(newDir, newIdx); err != nil {
			return s.passThrough()
		}
		// An exchange also moves the old entry to the new name's place.
		if s.spec.nr == unix.SYS_RENAMEAT2 && a(4)&unix.RENAME_EXCHANGE != 0 {
			if err := ip.AssertContained(interpose.VerbRename, oldpath); err != nil {
				return err
			}
		}
		return ip.Rename(oldpath, s.path)

	case opOpen, opOpenat, opCreat, opOpenat2:
		return s.dispatchOpen(ip)

	case opStat:
		if err := s.pathArg(unix.AT_FDCWD, 0); err != nil {
			return s.passThrough()
		}
		return ip.Stat(s.path, nil)

	case opNewfstatat, opStatx:
		flagIdx := 3
		if s.spec.op == opStatx {
			flagIdx = 2
		}
		if err := s.pathArg(s.fd(0), 1); err != nil {
			return s.passThrough()
		}
		// lstat and fstat forms are not redirected.
		flags := a(flagIdx)
		if s.emptyPath(flags) || flags&unix.AT_SYMLINK_NOFOLLOW != 0 {
			s.forward("forward")
			return nil
		}
		return ip.Stat(s.path, nil)

	case opChmod:
		if err := s.pathArg(unix.AT_FDCWD, 0); err != nil {
			return s.passThrough()
		}
		s.modeArg = 1
		return ip.Chmod(s.path, uint32(a(1)))

	case opFchmodat:
		if err := s.pathArg(s.fd(0), 1); err != nil {
			return s.passThrough()
		}
		s.modeArg = 2
		if s.spec.nr == sysFchmodat2 && s.emptyPath(a(3)) {
			return ip.Fchmod(s.fd(0), uint32(a(2)))
		}
		return ip.Chmod(s.path, uint32(a(2)))

	case opFchmod:
		s.modeArg = 1
		return ip.Fchmod(s.fd(0), uint32(a(1)))
	}
	return bug(fmt.Errorf("no decoder for %s", s.spec.name))
}

func (s *stop) dispatchOpen(ip *interpose.Interposer) error {
	a := s.regs.arg
	var (
		err   error
		flags uint64
		mode  uint64
	)
	switch s.spec.op {
	case opOpen:
		err = s.pathArg(unix.AT_FDCWD, 0)
		flags, mode = a(1), a(2)
	case opCreat:
		err = s.pathArg(unix.AT_FDCWD, 0)
		flags, mode = unix.O_CREAT|unix.O_WRONLY|unix.O_TRUNC, a(1)
	case opOpenat:
		err = s.pathArg(s.fd(0), 1)
		flags, mode = a(2), a(3)
	case opOpenat2:
		err = s.pathArg(s.fd(0), 1)
		if err == nil {
			flags, mode, err = readOpenHow(s.proc, a(2))
		}
	}
	if err != nil {
		return s.passThrough()
	}
	s.cloexec = flags&unix.O_CLOEXEC != 0
	_, err = ip.Open(s.path, int(flags), uint32(mode))
	return err
}
