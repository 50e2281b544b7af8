// Package trace runs a command under the click install sandbox.
//
// The command runs in a worker process that is traced by the calling
// process. Before the worker executes the command, it installs a seccomp
// filter that stops it at every system call the sandbox cares about.
// The supervisor decodes each stopped call into an operation of
// [interpose.Interposer] and then lets the call proceed, rewrites it or
// skips it, according to what the Interposer did.
//
// Passwd and group lookups such as getpwnam and getgrnam go through the
// name service and reach the kernel only as reads of files like
// /etc/passwd. Run therefore never sees them, and the privilege gate of
// the Interposer does not cover name service lookups.
//
// The command finds the package descriptor at the number named by
// CLICK_PACKAGE_FD in its environment, which Run sets.
//
// Programs that call [Run] must call [MaybeWorkerInit] first thing in
// main, because the worker is the calling program re-executed.
//
// Only linux/amd64 is supported. Elsewhere Run returns [ErrUnsupported].
package trace
