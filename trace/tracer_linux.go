//go:build linux && amd64

package trace

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"
	"syscall"
	"unsafe"

	"github.com/clickpkg/go-clicksandbox/interpose"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

const traceOptions = unix.PTRACE_O_TRACESYSGOOD |
	unix.PTRACE_O_TRACEFORK |
	unix.PTRACE_O_TRACEVFORK |
	unix.PTRACE_O_TRACECLONE |
	unix.PTRACE_O_TRACEEXEC |
	unix.PTRACE_O_TRACESECCOMP |
	unix.PTRACE_O_EXITKILL

type tracer struct {
	cfg         *interpose.Config
	table       map[uint64]syscallSpec
	workerFD    int
	diagnostics io.Writer
	log         *logrus.Entry

	// attached records threads whose initial SIGSTOP has been seen.
	attached map[int]bool
}

// Run executes opts.Args in a traced worker and enforces opts.Config on
// it and on every process it starts. It returns the worker's exit
// status, or 128 plus the signal number if the worker was killed by a
// signal.
//
// Run returns an error wrapping interpose.ErrUnresolved if the
// intercepted system calls cannot be set up on this platform.
func Run(ctx context.Context, opts Options) (int, error) {
	if len(opts.Args) == 0 {
		return -1, errors.New("no command to run")
	}
	if opts.Config == nil {
		return -1, errors.New("no sandbox configuration")
	}
	table, err := syscallTable()
	if err != nil {
		return interpose.ExitUnresolved, fmt.Errorf("%w: %v", interpose.ErrUnresolved, err)
	}
	self, err := os.Executable()
	if err != nil {
		return -1, fmt.Errorf("locating worker executable: %w", err)
	}

	t := &tracer{
		cfg:         opts.Config,
		table:       table,
		workerFD:    -1,
		diagnostics: orDefault(opts.Stderr, os.Stderr),
		log:         opts.logger(),
		attached:    map[int]bool{},
	}

	files := []uintptr{
		orDefault(opts.Stdin, os.Stdin).Fd(),
		orDefault(opts.Stdout, os.Stdout).Fd(),
		orDefault(opts.Stderr, os.Stderr).Fd(),
	}
	if opts.Config.PackagePath != "" {
		pkg, err := unix.FcntlInt(uintptr(opts.Config.PackageFD), unix.F_DUPFD_CLOEXEC, 0)
		if err != nil {
			return -1, fmt.Errorf("duplicating package descriptor %d: %w", opts.Config.PackageFD, err)
		}
		defer unix.Close(pkg)
		t.workerFD = workerPackageFD
		files = append(files, uintptr(pkg))
	}

	env := opts.Env
	if env == nil {
		env = os.Environ()
	}
	env = append(env[:len(env):len(env)], envWorker+"=1")
	if t.workerFD >= 0 {
		env = append(env, envPackageFD+"="+strconv.Itoa(len(files)-1))
	}
	if opts.Landlock {
		env = append(env, envLandlockRoot+"="+opts.Config.BaseDir)
	}

	// ptrace requests must come from the thread that started the worker.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	pid, err := syscall.ForkExec(self, append([]string{self}, opts.Args...), &syscall.ProcAttr{
		Dir:   opts.Dir,
		Env:   env,
		Files: files,
		Sys: &syscall.SysProcAttr{
			Ptrace:    true,
			Setpgid:   true,
			Pdeathsig: syscall.SIGKILL,
		},
	})
	if err != nil {
		return -1, fmt.Errorf("starting worker: %w", err)
	}
	t.log.WithFields(logrus.Fields{"pid": pid, "config": t.cfg.String()}).Debug("worker started")

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			unix.Kill(-pid, unix.SIGKILL)
		case <-done:
		}
	}()

	return t.loop(pid)
}

func (t *tracer) loop(root int) (int, error) {
	var ws unix.WaitStatus
	if _, err := wait4(root, &ws); err != nil {
		return -1, fmt.Errorf("waiting for worker: %w", err)
	}
	if !ws.Stopped() || ws.StopSignal() != unix.SIGTRAP {
		return -1, bug(fmt.Errorf("worker did not stop at exec, status %#x", uint32(ws)))
	}
	if err := unix.PtraceSetOptions(root, traceOptions); err != nil {
		unix.Kill(root, unix.SIGKILL)
		return -1, fmt.Errorf("setting ptrace options: %w", err)
	}
	t.attached[root] = true
	t.resume(root, 0)

	status := -1
	for {
		pid, err := wait4(-1, &ws)
		if errors.Is(err, unix.ECHILD) {
			return status, nil
		}
		if err != nil {
			return status, fmt.Errorf("waiting for traced processes: %w", err)
		}
		switch {
		case ws.Exited():
			delete(t.attached, pid)
			if pid == root {
				status = ws.ExitStatus()
				t.log.WithFields(logrus.Fields{"pid": pid, "status": status}).Debug("worker exited")
			}
		case ws.Signaled():
			delete(t.attached, pid)
			if pid == root {
				status = 128 + int(ws.Signal())
				t.log.WithFields(logrus.Fields{"pid": pid, "signal": ws.Signal()}).Debug("worker killed")
			}
		case ws.Stopped():
			t.handleStop(pid, ws)
		}
	}
}

func wait4(pid int, ws *unix.WaitStatus) (int, error) {
	for {
		wpid, err := unix.Wait4(pid, ws, unix.WALL, nil)
		if err != unix.EINTR {
			return wpid, err
		}
	}
}

func (t *tracer) handleStop(pid int, ws unix.WaitStatus) {
	sig := ws.StopSignal()
	switch {
	case sig == unix.SIGTRAP && ws.TrapCause() == unix.PTRACE_EVENT_SECCOMP:
		t.handleSyscall(pid)
		t.resume(pid, 0)
	case sig == unix.SIGTRAP && ws.TrapCause() > 0:
		// fork, vfork, clone and exec events.
		t.resume(pid, 0)
	case sig == unix.SIGSTOP && !t.attached[pid]:
		// New threads and children start with a SIGSTOP that nobody sent.
		t.attached[pid] = true
		t.resume(pid, 0)
	case groupStop(pid):
		t.resume(pid, 0)
	default:
		t.resume(pid, sig)
	}
}

func (t *tracer) resume(pid int, sig unix.Signal) {
	if err := unix.PtraceCont(pid, int(sig)); err != nil && !errors.Is(err, unix.ESRCH) {
		t.log.WithError(err).WithField("pid", pid).Warn("cannot resume traced process")
	}
}

// groupStop reports whether a stop is a group-stop rather than the
// delivery of a signal. Only signal-delivery stops have siginfo.
func groupStop(pid int) bool {
	var info [128]byte
	_, _, errno := unix.Syscall6(unix.SYS_PTRACE, unix.PTRACE_GETSIGINFO, uintptr(pid), 0, uintptr(unsafe.Pointer(&info[0])), 0, 0)
	return errno == unix.EINVAL
}

func (t *tracer) handleSyscall(pid int) {
	var regs registers
	if err := unix.PtraceGetRegs(pid, &regs.PtraceRegs); err != nil {
		if !errors.Is(err, unix.ESRCH) {
			t.log.WithError(err).WithField("pid", pid).Warn("cannot read registers")
		}
		return
	}
	spec, ok := t.table[regs.nr()]
	if !ok {
		t.log.WithFields(logrus.Fields{"pid": pid, "nr": regs.nr()}).Warn("unexpected system call stop")
		return
	}

	s := newStop(procTracee{tid: pid}, &regs, spec, t.workerFD)
	ip := interpose.New(s, interpose.WithConfig(t.cfg), interpose.WithDiagnostics(t.diagnostics))
	s.finish(s.dispatch(ip))

	if regs.dirty {
		if err := unix.PtraceSetRegs(pid, &regs.PtraceRegs); err != nil && !errors.Is(err, unix.ESRCH) {
			// The call must not proceed as it was made.
			t.log.WithError(err).WithField("pid", pid).Error("cannot write registers, killing traced process")
			unix.Kill(pid, unix.SIGKILL)
		}
	}
	t.log.WithFields(logrus.Fields{
		"pid":     pid,
		"syscall": spec.name,
		"path":    s.path,
		"outcome": s.outcome,
	}).Debug("intercepted")
}
