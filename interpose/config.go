package interpose

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

// Environment variables read by LoadEnv. The names are shared with the
// orchestration layer that launches the worker.
const (
	EnvBaseDir     = "CLICK_BASE_DIR"
	EnvPackagePath = "CLICK_PACKAGE_PATH"
	EnvPackageFD   = "CLICK_PACKAGE_FD"
)

// NoPackageFD is the PackageFD value of a Config without redirection.
const NoPackageFD = -1

// Config holds the sandbox parameters of one process. It is immutable
// once constructed.
type Config struct {
	// EffectiveUID is the effective user id the process runs as,
	// captured once when the Config is built.
	EffectiveUID int

	// BaseDir is the sandbox root. Every write-type operation must
	// target BaseDir itself or a path beneath it. An empty BaseDir
	// contains nothing.
	BaseDir string

	// PackagePath is the one path whose read-only opens and stats are
	// redirected to PackageFD. Empty disables redirection.
	PackagePath string

	// PackageFD is a readable descriptor for PackagePath. It is
	// borrowed from the parent process and never closed here.
	PackageFD int
}

// NewConfig validates and normalizes the given parameters. baseDir and
// packagePath must be absolute when set; they are cleaned, so trailing
// separators do not affect containment. packageFD is required when
// packagePath is set.
func NewConfig(euid int, baseDir, packagePath string, packageFD int) (*Config, error) {
	c := &Config{
		EffectiveUID: euid,
		PackageFD:    NoPackageFD,
	}
	if baseDir != "" {
		if !filepath.IsAbs(baseDir) {
			return nil, fmt.Errorf("%s must be an absolute path, got %q", EnvBaseDir, baseDir)
		}
		c.BaseDir = filepath.Clean(baseDir)
	}
	if packagePath != "" {
		if !filepath.IsAbs(packagePath) {
			return nil, fmt.Errorf("%s must be an absolute path, got %q", EnvPackagePath, packagePath)
		}
		if packageFD < 0 {
			return nil, fmt.Errorf("%s is set, but %s is missing", EnvPackagePath, EnvPackageFD)
		}
		c.PackagePath = filepath.Clean(packagePath)
		c.PackageFD = packageFD
	}
	return c, nil
}

// LoadEnv builds a Config from the CLICK_* variables, as returned by
// lookup. CLICK_PACKAGE_FD is only consulted when CLICK_PACKAGE_PATH is
// set.
func LoadEnv(lookup func(string) (string, bool), euid int) (*Config, error) {
	baseDir, _ := lookup(EnvBaseDir)
	packagePath, _ := lookup(EnvPackagePath)

	fd := NoPackageFD
	if packagePath != "" {
		s, ok := lookup(EnvPackageFD)
		if !ok || s == "" {
			return nil, fmt.Errorf("%s is set, but %s is missing", EnvPackagePath, EnvPackageFD)
		}
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid %s %q: want a non-negative descriptor number", EnvPackageFD, s)
		}
		fd = n
	}
	return NewConfig(euid, baseDir, packagePath, fd)
}

// FromEnvironment is LoadEnv over the process environment and the
// process's effective user id.
func FromEnvironment() (*Config, error) {
	return LoadEnv(os.LookupEnv, os.Geteuid())
}

var (
	defaultOnce   sync.Once
	defaultConfig *Config
	defaultErr    error
)

// Default returns the process-wide Config, loading it from the
// environment on first use. Later calls return the same result.
func Default() (*Config, error) {
	defaultOnce.Do(func() {
		defaultConfig, defaultErr = FromEnvironment()
	})
	return defaultConfig, defaultErr
}

// Privileged reports whether ownership changes and identity lookups
// are forwarded.
func (c *Config) Privileged() bool {
	return c.EffectiveUID == 0
}

// Redirects reports whether reads of path are served from PackageFD.
func (c *Config) Redirects(path string) bool {
	return c.PackagePath != "" && path == c.PackagePath
}

// Contains reports whether path lies inside the sandbox root.
func (c *Config) Contains(path string) bool {
	return Contains(c.BaseDir, path)
}

func (c *Config) String() string {
	pkg := "none"
	if c.PackagePath != "" {
		pkg = fmt.Sprintf("%q via fd %d", c.PackagePath, c.PackageFD)
	}
	return fmt.Sprintf("{euid %d; base %q; package %v}", c.EffectiveUID, c.BaseDir, pkg)
}

// ErrUnresolved is returned by every Interposer operation once lazy
// initialization has failed.
var ErrUnresolved = errors.New("interposer initialization failed")
