// Package interpose implements the policy side of the click package
// installation sandbox.
//
// A package unpacker such as dpkg assumes it runs as root on an
// unconfined filesystem. When it is instead run as an unprivileged
// worker whose operations are intercepted, the [Interposer] decides
// what each intercepted operation does:
//
//   - Ownership changes and passwd/group lookups are short-circuited
//     when the process is not privileged.
//   - chroot, fsync and sync_file_range succeed without doing anything,
//     and executing the static click preinst script exits successfully.
//   - Operations that create or write filesystem entries terminate the
//     process unless the target lies beneath the sandbox root (see
//     [Contains]).
//   - Read-only opens and stats of the one configured package path are
//     satisfied through a descriptor that was opened by a more
//     privileged parent.
//   - chmod and fchmod never clear the owner-write bit.
//
// The Interposer never performs an operation itself. It forwards to an
// [Ops] provider: [HostOps] calls the host's system calls directly,
// while the interception shim in package trace steers the system call
// that the traced worker is about to make.
//
// Configuration comes from the environment (see [LoadEnv]) and is read
// once per process through [Default], or is supplied explicitly with
// [WithConfig].
package interpose
