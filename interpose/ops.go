package interpose

import "golang.org/x/sys/unix"

// Ops performs the real operations behind the Interposer. The
// Interposer decides whether and how a call is forwarded; an Ops
// implementation carries it out.
//
// Exit must not return when the process actually terminates. Test
// doubles and the tracing shim, which only arrange for termination,
// do return, and the Interposer then reports the outcome as an error.
type Ops interface {
	Chown(path string, uid, gid int) error
	Fchown(fd, uid, gid int) error
	Lchown(path string, uid, gid int) error

	// Exec replaces the process image, searching PATH for file like
	// execvp(3).
	Exec(file string, argv []string) error

	Getpwnam(name string) (*Passwd, error)
	Getgrnam(name string) (*Group, error)

	Mkdir(path string, mode uint32) error
	Mkfifo(path string, mode uint32) error
	Mknod(path string, mode uint32, dev uint64) error
	Link(oldpath, newpath string) error
	Symlink(target, linkpath string) error
	Rename(oldpath, newpath string) error

	Open(path string, flags int, mode uint32) (int, error)
	Stat(path string, st *unix.Stat_t) error
	Fstat(fd int, st *unix.Stat_t) error

	Chmod(path string, mode uint32) error
	Fchmod(fd int, mode uint32) error

	Dup(fd int) (int, error)
	Seek(fd int, offset int64, whence int) (int64, error)

	Exit(code int)
}

// Resolver is implemented by Ops providers that must locate their
// underlying operations before first use. The Interposer calls Resolve
// once, before the first forwarded operation.
type Resolver interface {
	Resolve() error
}
