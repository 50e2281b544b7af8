//go:build linux && amd64

package trace

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"

	"github.com/clickpkg/go-clicksandbox/interpose"
	"github.com/clickpkg/go-clicksandbox/landlock"
	"github.com/samber/lo"
	"golang.org/x/sys/unix"
)

// Environment markers by which the worker recognizes itself.
const (
	envWorker       = "_CLICK_SANDBOX_WORKER"
	envLandlockRoot = "_CLICK_SANDBOX_LANDLOCK_ROOT"
	envPackageFD    = "_CLICK_SANDBOX_PACKAGE_FD"
)

// workerPackageFD is where the worker keeps the package descriptor for
// the command it runs, out of the range that shells and tools number
// their own descriptors in.
const workerPackageFD = 1000

// MaybeWorkerInit turns the process into a sandbox worker if it was
// started as one by Run. A worker confines itself and executes the
// command it was given, so MaybeWorkerInit does not return in that
// case. It returns false in any other process.
func MaybeWorkerInit() bool {
	if os.Getenv(envWorker) != "1" {
		return false
	}
	os.Exit(workerMain(os.Args[1:], os.Environ()))
	return true
}

func workerMain(args, environ []string) int {
	// The filter is installed on all threads, but Landlock and
	// no_new_privs act on the calling one first.
	runtime.LockOSThread()

	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "click-sandbox: worker started without a command")
		return 127
	}
	root, passedFD := "", ""
	env := lo.Reject(environ, func(kv string, _ int) bool {
		if v, ok := strings.CutPrefix(kv, envLandlockRoot+"="); ok {
			root = v
			return true
		}
		if v, ok := strings.CutPrefix(kv, envPackageFD+"="); ok {
			passedFD = v
			return true
		}
		return strings.HasPrefix(kv, envWorker+"=")
	})
	if passedFD != "" {
		var err error
		if env, err = movePackageFD(passedFD, env); err != nil {
			fmt.Fprintf(os.Stderr, "click-sandbox: %v\n", err)
			return 1
		}
	}

	path, err := exec.LookPath(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "click-sandbox: %v\n", err)
		return 127
	}
	if root != "" {
		if err := landlock.ConfineWrites(root); err != nil {
			fmt.Fprintf(os.Stderr, "click-sandbox: %v\n", err)
			return 1
		}
	}
	table, err := syscallTable()
	if err != nil {
		return interpose.ExitUnresolved
	}
	if err := installFilter(buildFilter(auditArch, trappedNumbers(table))); err != nil {
		fmt.Fprintf(os.Stderr, "click-sandbox: %v\n", err)
		return 1
	}

	err = unix.Exec(path, args, env)
	fmt.Fprintf(os.Stderr, "click-sandbox: exec %s: %v\n", path, err)
	return 127
}

// movePackageFD moves the descriptor the worker was started with to
// workerPackageFD and points CLICK_PACKAGE_FD in env at it.
func movePackageFD(passed string, env []string) ([]string, error) {
	fd, err := strconv.Atoi(passed)
	if err != nil {
		return nil, fmt.Errorf("invalid package descriptor %q", passed)
	}
	if fd != workerPackageFD {
		if err := unix.Dup3(fd, workerPackageFD, 0); err != nil {
			return nil, fmt.Errorf("moving package descriptor %d: %w", fd, err)
		}
		unix.Close(fd)
	}
	env = lo.Reject(env, func(kv string, _ int) bool {
		return strings.HasPrefix(kv, interpose.EnvPackageFD+"=")
	})
	return append(env, interpose.EnvPackageFD+"="+strconv.Itoa(workerPackageFD)), nil
}
