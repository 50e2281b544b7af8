package interpose

import (
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// Interposer applies the sandbox policy to intercepted operations and
// forwards what it allows to an Ops provider.
//
// An Interposer initializes itself lazily, on the first operation that
// needs the Ops provider or the Config. It is safe for concurrent use.
type Interposer struct {
	ops         Ops
	cfg         *Config
	diagnostics io.Writer

	once sync.Once
	err  error
}

// Option configures an Interposer.
type Option func(*Interposer)

// WithConfig makes the Interposer use cfg instead of the process-wide
// configuration returned by Default.
func WithConfig(cfg *Config) Option {
	return func(ip *Interposer) { ip.cfg = cfg }
}

// WithDiagnostics sets where violation diagnostics are written. The
// default is os.Stderr.
func WithDiagnostics(w io.Writer) Option {
	return func(ip *Interposer) { ip.diagnostics = w }
}

// New returns an Interposer forwarding to ops.
func New(ops Ops, opts ...Option) *Interposer {
	ip := &Interposer{ops: ops, diagnostics: os.Stderr}
	for _, opt := range opts {
		opt(ip)
	}
	return ip
}

func (ip *Interposer) init() error {
	ip.once.Do(func() {
		if r, ok := ip.ops.(Resolver); ok {
			if err := r.Resolve(); err != nil {
				ip.fail(err)
				return
			}
		}
		if ip.cfg == nil {
			cfg, err := Default()
			if err != nil {
				ip.fail(err)
				return
			}
			ip.cfg = cfg
		}
	})
	return ip.err
}

// fail terminates the process without a diagnostic. Operations
// attempted after a failed initialization return ErrUnresolved.
func (ip *Interposer) fail(cause error) {
	ip.err = fmt.Errorf("%w: %v", ErrUnresolved, cause)
	ip.ops.Exit(ExitUnresolved)
}

// Config returns the configuration in use, initializing the Interposer
// if needed.
func (ip *Interposer) Config() (*Config, error) {
	if err := ip.init(); err != nil {
		return nil, err
	}
	return ip.cfg, nil
}

// Chown forwards to Ops.Chown when privileged and otherwise succeeds
// without changing anything. The same holds for Fchown and Lchown.
func (ip *Interposer) Chown(path string, uid, gid int) error {
	if err := ip.init(); err != nil {
		return err
	}
	if !ip.cfg.Privileged() {
		return nil
	}
	return ip.ops.Chown(path, uid, gid)
}

func (ip *Interposer) Fchown(fd, uid, gid int) error {
	if err := ip.init(); err != nil {
		return err
	}
	if !ip.cfg.Privileged() {
		return nil
	}
	return ip.ops.Fchown(fd, uid, gid)
}

func (ip *Interposer) Lchown(path string, uid, gid int) error {
	if err := ip.init(); err != nil {
		return err
	}
	if !ip.cfg.Privileged() {
		return nil
	}
	return ip.ops.Lchown(path, uid, gid)
}

// Getpwnam returns a root placeholder entry for any name when
// unprivileged. Each call returns a new value.
func (ip *Interposer) Getpwnam(name string) (*Passwd, error) {
	if err := ip.init(); err != nil {
		return nil, err
	}
	if !ip.cfg.Privileged() {
		return placeholderPasswd(), nil
	}
	return ip.ops.Getpwnam(name)
}

// Getgrnam is the group counterpart of Getpwnam.
func (ip *Interposer) Getgrnam(name string) (*Group, error) {
	if err := ip.init(); err != nil {
		return nil, err
	}
	if !ip.cfg.Privileged() {
		return placeholderGroup(), nil
	}
	return ip.ops.Getgrnam(name)
}

// Chroot does nothing.
func (ip *Interposer) Chroot(path string) error {
	return nil
}

// Execvp exits successfully instead of running the click preinst
// script and forwards every other exec.
func (ip *Interposer) Execvp(file string, argv []string) error {
	if err := ip.init(); err != nil {
		return err
	}
	if file == PreinstPath {
		ip.ops.Exit(ExitPreinst)
		return nil
	}
	return ip.ops.Exec(file, argv)
}

// Fsync does nothing.
func (ip *Interposer) Fsync(fd int) error {
	return nil
}

// SyncFileRange does nothing.
func (ip *Interposer) SyncFileRange(fd int, offset, n int64, flags int) error {
	return nil
}

// AssertContained permits path when it lies inside the sandbox root.
// Otherwise it writes a diagnostic line, terminates the process with
// ExitViolation and returns a *Violation.
func (ip *Interposer) AssertContained(verb, path string) error {
	if err := ip.init(); err != nil {
		return err
	}
	if ip.cfg.Contains(path) || exempt(verb, path) {
		return nil
	}
	v := &Violation{Verb: verb, Path: path, BaseDir: ip.cfg.BaseDir}
	io.WriteString(ip.diagnostics, v.diagnostic())
	ip.ops.Exit(ExitViolation)
	return v
}

func (ip *Interposer) Mkdir(path string, mode uint32) error {
	if err := ip.AssertContained(VerbMkdir, path); err != nil {
		return err
	}
	return ip.ops.Mkdir(path, mode)
}

func (ip *Interposer) Mkfifo(path string, mode uint32) error {
	if err := ip.AssertContained(VerbMkfifo, path); err != nil {
		return err
	}
	return ip.ops.Mkfifo(path, mode)
}

func (ip *Interposer) Mknod(path string, mode uint32, dev uint64) error {
	if err := ip.AssertContained(VerbMknod, path); err != nil {
		return err
	}
	return ip.ops.Mknod(path, mode, dev)
}

// Link checks only the new path. The link target may live anywhere.
func (ip *Interposer) Link(oldpath, newpath string) error {
	if err := ip.AssertContained(VerbLink, newpath); err != nil {
		return err
	}
	return ip.ops.Link(oldpath, newpath)
}

// Symlink checks only the link being created, not its target.
func (ip *Interposer) Symlink(target, linkpath string) error {
	if err := ip.AssertContained(VerbSymlink, linkpath); err != nil {
		return err
	}
	return ip.ops.Symlink(target, linkpath)
}

// Rename checks only the new path: moving an entry out of the sandbox
// root is as much a write as creating it there.
func (ip *Interposer) Rename(oldpath, newpath string) error {
	if err := ip.AssertContained(VerbRename, newpath); err != nil {
		return err
	}
	return ip.ops.Rename(oldpath, newpath)
}

// Open checks write opens against the sandbox root and serves
// read-only opens of the package path from the package descriptor.
//
// The returned duplicate shares its file offset with the package
// descriptor and with every other duplicate, so concurrent readers of
// the package interfere with each other. Open rewinds the offset on
// every call.
func (ip *Interposer) Open(path string, flags int, mode uint32) (int, error) {
	if err := ip.init(); err != nil {
		return -1, err
	}
	if opensForWriting(flags) {
		if err := ip.AssertContained(VerbWriteOpen, path); err != nil {
			return -1, err
		}
		return ip.ops.Open(path, flags, mode)
	}
	if ip.cfg.Redirects(path) {
		return ip.redirect()
	}
	return ip.ops.Open(path, flags, mode)
}

// Open64 is Open with O_LARGEFILE set.
func (ip *Interposer) Open64(path string, flags int, mode uint32) (int, error) {
	return ip.Open(path, flags|unix.O_LARGEFILE, mode)
}

func (ip *Interposer) redirect() (int, error) {
	fd, err := ip.ops.Dup(ip.cfg.PackageFD)
	if err != nil {
		return -1, err
	}
	// A failed rewind, for instance on a pipe, leaves the offset as is.
	_, _ = ip.ops.Seek(fd, 0, io.SeekStart)
	return fd, nil
}

// Fopen opens path as a stream. Writable modes are checked against the
// sandbox root and read-only opens of the package path are served from
// the package descriptor, as with Open.
func (ip *Interposer) Fopen(path, mode string) (*os.File, error) {
	if err := ip.init(); err != nil {
		return nil, err
	}
	flags, err := fopenFlags(mode)
	if err != nil {
		return nil, err
	}
	if opensForWriting(flags) {
		if err := ip.AssertContained(VerbWriteFdopen, path); err != nil {
			return nil, err
		}
	} else if ip.cfg.Redirects(path) {
		fd, err := ip.redirect()
		if err != nil {
			return nil, err
		}
		return os.NewFile(uintptr(fd), path), nil
	}
	fd, err := ip.ops.Open(path, flags, 0o666)
	if err != nil {
		return nil, err
	}
	return os.NewFile(uintptr(fd), path), nil
}

func (ip *Interposer) Fopen64(path, mode string) (*os.File, error) {
	return ip.Fopen(path, mode)
}

// Stat reports on the package descriptor for the package path and
// forwards every other path. It never checks containment.
func (ip *Interposer) Stat(path string, st *unix.Stat_t) error {
	if err := ip.init(); err != nil {
		return err
	}
	if ip.cfg.Redirects(path) {
		return ip.ops.Fstat(ip.cfg.PackageFD, st)
	}
	return ip.ops.Stat(path, st)
}

func (ip *Interposer) Stat64(path string, st *unix.Stat_t) error {
	return ip.Stat(path, st)
}

// ownerWritable is set in every mode forwarded by Chmod and Fchmod.
const ownerWritable = 0o200

// Chmod checks path against the sandbox root and forwards with the
// owner-write bit set.
func (ip *Interposer) Chmod(path string, mode uint32) error {
	if err := ip.AssertContained(VerbChmod, path); err != nil {
		return err
	}
	return ip.ops.Chmod(path, mode|ownerWritable)
}

// Fchmod forwards with the owner-write bit set. The descriptor was
// obtained by an open that has already been checked.
func (ip *Interposer) Fchmod(fd int, mode uint32) error {
	if err := ip.init(); err != nil {
		return err
	}
	return ip.ops.Fchmod(fd, mode|ownerWritable)
}
