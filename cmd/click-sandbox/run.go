package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/clickpkg/go-clicksandbox/interpose"
	"github.com/clickpkg/go-clicksandbox/trace"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type runCmd struct {
	cobra.Command
	lookupEnv func(string) (string, bool)

	landlock bool
	debug    bool
}

// envFlags maps the flags that override the environment to the
// variables they replace.
var envFlags = map[string]string{
	"base-dir":   interpose.EnvBaseDir,
	"package":    interpose.EnvPackagePath,
	"package-fd": interpose.EnvPackageFD,
}

func newRunCmd(lookupEnv func(string) (string, bool)) *runCmd {
	cmd := runCmd{
		Command: cobra.Command{
			Use:   "run [flags] -- COMMAND [ARGS...]",
			Short: "Run a command inside the sandbox",
			Long: `Run a command so that every file system write outside the sandbox root
terminates it with a diagnostic.

The sandbox is configured by CLICK_BASE_DIR, CLICK_PACKAGE_PATH and
CLICK_PACKAGE_FD. Flags take precedence over these variables. When a
package path is given without a descriptor, the file is opened here and
reads of that path inside the sandbox are served from it.`,
			Args: cobra.MinimumNArgs(1),
		},
		lookupEnv: lookupEnv,
	}

	flags := cmd.Flags()
	// Everything after COMMAND belongs to it.
	flags.SetInterspersed(false)
	flags.String("base-dir", "", "sandbox root; writes are only permitted beneath it")
	flags.String("package", "", "path whose read-only opens are served from the package descriptor")
	flags.Int("package-fd", interpose.NoPackageFD, "inherited descriptor of the package file")
	flags.BoolVar(&cmd.landlock, "landlock", false, "additionally confine writes with Landlock where the kernel supports it")
	flags.BoolVar(&cmd.debug, "debug", false, "log every intercepted call")
	cmd.RunE = cmd.run

	return &cmd
}

func (c *runCmd) run(cmd *cobra.Command, args []string) error {
	log := newLogger(cmd.ErrOrStderr(), c.debug, c.lookupEnv)

	cfg, pkg, err := loadConfig(cmd.Flags(), c.lookupEnv)
	if err != nil {
		return err
	}
	if pkg != nil {
		defer pkg.Close()
	}
	log.WithField("config", cfg).Debug("starting sandbox")
	if names, err := trace.Syscalls(); err == nil {
		log.WithField("syscalls", strings.Join(names, ",")).Debug("intercepting")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	status, err := trace.Run(ctx, trace.Options{
		Config:   cfg,
		Args:     args,
		Landlock: c.landlock,
		Log:      log,
	})
	if errors.Is(err, interpose.ErrUnresolved) {
		log.WithError(err).Debug("sandbox could not be set up")
		return &exitError{code: interpose.ExitUnresolved}
	}
	if err != nil {
		return err
	}
	log.WithField("status", status).Debug("sandbox finished")
	if status != 0 {
		return &exitError{code: status}
	}
	return nil
}

// loadConfig builds the sandbox configuration from the environment and
// the flags that were set. If a package path comes without a
// descriptor, the package is opened and returned; the caller keeps it
// open while the sandbox runs.
func loadConfig(flags *pflag.FlagSet, lookupEnv func(string) (string, bool)) (*interpose.Config, *os.File, error) {
	vars := map[string]string{}
	for flag, name := range envFlags {
		if f := flags.Lookup(flag); f != nil && f.Changed {
			vars[name] = f.Value.String()
		} else if v, ok := lookupEnv(name); ok {
			vars[name] = v
		}
	}

	if base := vars[interpose.EnvBaseDir]; base != "" {
		canonical, err := canonicalDir(base)
		if err != nil {
			return nil, nil, err
		}
		vars[interpose.EnvBaseDir] = canonical
	}

	var pkg *os.File
	if path := vars[interpose.EnvPackagePath]; path != "" {
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, nil, err
		}
		vars[interpose.EnvPackagePath] = abs
		if fd, ok := vars[interpose.EnvPackageFD]; !ok || fd == strconv.Itoa(interpose.NoPackageFD) {
			pkg, err = os.Open(abs)
			if err != nil {
				return nil, nil, fmt.Errorf("opening package: %w", err)
			}
			vars[interpose.EnvPackageFD] = strconv.Itoa(int(pkg.Fd()))
		}
	}

	cfg, err := interpose.LoadEnv(func(name string) (string, bool) {
		v, ok := vars[name]
		return v, ok
	}, os.Geteuid())
	if err != nil {
		if pkg != nil {
			pkg.Close()
		}
		return nil, nil, err
	}
	return cfg, pkg, nil
}

// canonicalDir returns dir as an absolute path without symbolic links,
// the form in which the kernel reports the working directories that
// relative paths are resolved against.
func canonicalDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	canonical, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("sandbox root: %w", err)
	}
	return canonical, nil
}
