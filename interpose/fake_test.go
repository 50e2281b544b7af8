package interpose

import (
	"fmt"
	"strings"

	"golang.org/x/sys/unix"
)

// recorder is an Ops that records every call instead of performing it.
type recorder struct {
	calls []string

	exits      []int
	resolves   int
	resolveErr error
	fstatSize  int64
}

// Descriptors handed out by the recorder. They are far above anything
// the test process has open, so closing them is harmless.
const (
	fakeOpenFD = 1<<20 + 7
	fakeDupFD  = 1<<20 + 42
)

var _ Ops = (*recorder)(nil)

func newRecorder() *recorder { return &recorder{} }

func (r *recorder) record(format string, args ...any) {
	r.calls = append(r.calls, fmt.Sprintf(format, args...))
}

func (r *recorder) String() string { return strings.Join(r.calls, "; ") }

func (r *recorder) Resolve() error {
	r.resolves++
	return r.resolveErr
}

func (r *recorder) Chown(path string, uid, gid int) error {
	r.record("chown %s %d %d", path, uid, gid)
	return nil
}

func (r *recorder) Fchown(fd, uid, gid int) error {
	r.record("fchown %d %d %d", fd, uid, gid)
	return nil
}

func (r *recorder) Lchown(path string, uid, gid int) error {
	r.record("lchown %s %d %d", path, uid, gid)
	return nil
}

func (r *recorder) Exec(file string, argv []string) error {
	r.record("exec %s %v", file, argv)
	return nil
}

func (r *recorder) Getpwnam(name string) (*Passwd, error) {
	r.record("getpwnam %s", name)
	return &Passwd{Name: name, UID: 1000, GID: 1000}, nil
}

func (r *recorder) Getgrnam(name string) (*Group, error) {
	r.record("getgrnam %s", name)
	return &Group{Name: name, GID: 1000}, nil
}

func (r *recorder) Mkdir(path string, mode uint32) error {
	r.record("mkdir %s %#o", path, mode)
	return nil
}

func (r *recorder) Mkfifo(path string, mode uint32) error {
	r.record("mkfifo %s %#o", path, mode)
	return nil
}

func (r *recorder) Mknod(path string, mode uint32, dev uint64) error {
	r.record("mknod %s %#o %d", path, mode, dev)
	return nil
}

func (r *recorder) Link(oldpath, newpath string) error {
	r.record("link %s %s", oldpath, newpath)
	return nil
}

func (r *recorder) Symlink(target, linkpath string) error {
	r.record("symlink %s %s", target, linkpath)
	return nil
}

func (r *recorder) Rename(oldpath, newpath string) error {
	r.record("rename %s %s", oldpath, newpath)
	return nil
}

func (r *recorder) Open(path string, flags int, mode uint32) (int, error) {
	r.record("open %s %#x %#o", path, flags, mode)
	return fakeOpenFD, nil
}

func (r *recorder) Stat(path string, st *unix.Stat_t) error {
	r.record("stat %s", path)
	return nil
}

func (r *recorder) Fstat(fd int, st *unix.Stat_t) error {
	r.record("fstat %d", fd)
	if st != nil {
		st.Size = r.fstatSize
	}
	return nil
}

func (r *recorder) Chmod(path string, mode uint32) error {
	r.record("chmod %s %#o", path, mode)
	return nil
}

func (r *recorder) Fchmod(fd int, mode uint32) error {
	r.record("fchmod %d %#o", fd, mode)
	return nil
}

func (r *recorder) Dup(fd int) (int, error) {
	r.record("dup %d", fd)
	return fakeDupFD, nil
}

func (r *recorder) Seek(fd int, offset int64, whence int) (int64, error) {
	r.record("seek %d %d %d", fd, offset, whence)
	return 0, nil
}

func (r *recorder) Exit(code int) {
	r.record("exit %d", code)
	r.exits = append(r.exits, code)
}
