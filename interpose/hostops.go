package interpose

import (
	"os"
	"os/exec"
	"os/user"
	"strconv"

	"golang.org/x/sys/unix"
)

// HostOps performs every operation directly on the host with the
// calling process's credentials.
type HostOps struct{}

var _ Ops = HostOps{}

func (HostOps) Chown(path string, uid, gid int) error  { return unix.Chown(path, uid, gid) }
func (HostOps) Fchown(fd, uid, gid int) error          { return unix.Fchown(fd, uid, gid) }
func (HostOps) Lchown(path string, uid, gid int) error { return unix.Lchown(path, uid, gid) }

func (HostOps) Exec(file string, argv []string) error {
	path, err := exec.LookPath(file)
	if err != nil {
		return err
	}
	return unix.Exec(path, argv, os.Environ())
}

func (HostOps) Getpwnam(name string) (*Passwd, error) {
	u, err := user.Lookup(name)
	if err != nil {
		return nil, err
	}
	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return nil, err
	}
	gid, err := strconv.Atoi(u.Gid)
	if err != nil {
		return nil, err
	}
	return &Passwd{Name: u.Username, UID: uid, GID: gid, Home: u.HomeDir}, nil
}

func (HostOps) Getgrnam(name string) (*Group, error) {
	g, err := user.LookupGroup(name)
	if err != nil {
		return nil, err
	}
	gid, err := strconv.Atoi(g.Gid)
	if err != nil {
		return nil, err
	}
	return &Group{Name: g.Name, GID: gid}, nil
}

func (HostOps) Mkdir(path string, mode uint32) error  { return unix.Mkdir(path, mode) }
func (HostOps) Mkfifo(path string, mode uint32) error { return unix.Mkfifo(path, mode) }

func (HostOps) Mknod(path string, mode uint32, dev uint64) error {
	return unix.Mknod(path, mode, int(dev))
}

func (HostOps) Link(oldpath, newpath string) error    { return unix.Link(oldpath, newpath) }
func (HostOps) Symlink(target, linkpath string) error { return unix.Symlink(target, linkpath) }
func (HostOps) Rename(oldpath, newpath string) error  { return unix.Rename(oldpath, newpath) }

func (HostOps) Open(path string, flags int, mode uint32) (int, error) {
	return unix.Open(path, flags, mode)
}

func (HostOps) Stat(path string, st *unix.Stat_t) error { return unix.Stat(path, st) }
func (HostOps) Fstat(fd int, st *unix.Stat_t) error     { return unix.Fstat(fd, st) }

func (HostOps) Chmod(path string, mode uint32) error { return unix.Chmod(path, mode) }
func (HostOps) Fchmod(fd int, mode uint32) error     { return unix.Fchmod(fd, mode) }

func (HostOps) Dup(fd int) (int, error) { return unix.Dup(fd) }

func (HostOps) Seek(fd int, offset int64, whence int) (int64, error) {
	return unix.Seek(fd, offset, whence)
}

func (HostOps) Exit(code int) { os.Exit(code) }
