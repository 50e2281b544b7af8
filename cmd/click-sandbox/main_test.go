package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/clickpkg/go-clicksandbox/interpose"
	"github.com/clickpkg/go-clicksandbox/trace"
	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	trace.MaybeWorkerInit()
	color.NoColor = true
	os.Exit(m.Run())
}

func envOf(vars map[string]string) func(string) (string, bool) {
	return func(name string) (string, bool) {
		v, ok := vars[name]
		return v, ok
	}
}

func canonicalTempDir(t *testing.T) string {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	return dir
}

func TestLoadConfigFromEnv(t *testing.T) {
	base := canonicalTempDir(t)
	cmd := newRunCmd(envOf(map[string]string{
		interpose.EnvBaseDir:     base,
		interpose.EnvPackagePath: "/srv/pkg.click",
		interpose.EnvPackageFD:   "0",
	}))
	require.NoError(t, cmd.Flags().Parse(nil))

	cfg, pkg, err := loadConfig(cmd.Flags(), cmd.lookupEnv)
	require.NoError(t, err)
	assert.Nil(t, pkg)
	assert.Equal(t, base, cfg.BaseDir)
	assert.Equal(t, "/srv/pkg.click", cfg.PackagePath)
	assert.Equal(t, 0, cfg.PackageFD)
	assert.Equal(t, os.Geteuid(), cfg.EffectiveUID)
}

func TestLoadConfigFlagsOverrideEnv(t *testing.T) {
	base := canonicalTempDir(t)
	cmd := newRunCmd(envOf(map[string]string{
		interpose.EnvBaseDir: "/elsewhere",
	}))
	require.NoError(t, cmd.Flags().Parse([]string{"--base-dir", base}))

	cfg, _, err := loadConfig(cmd.Flags(), cmd.lookupEnv)
	require.NoError(t, err)
	assert.Equal(t, base, cfg.BaseDir)
	assert.Empty(t, cfg.PackagePath)
	assert.Equal(t, interpose.NoPackageFD, cfg.PackageFD)
}

func TestLoadConfigCanonicalBase(t *testing.T) {
	real := canonicalTempDir(t)
	link := filepath.Join(canonicalTempDir(t), "link")
	require.NoError(t, os.Symlink(real, link))

	cmd := newRunCmd(envOf(nil))
	require.NoError(t, cmd.Flags().Parse([]string{"--base-dir", link + "/"}))

	cfg, _, err := loadConfig(cmd.Flags(), cmd.lookupEnv)
	require.NoError(t, err)
	assert.Equal(t, real, cfg.BaseDir)
}

func TestLoadConfigMissingBase(t *testing.T) {
	cmd := newRunCmd(envOf(nil))
	require.NoError(t, cmd.Flags().Parse([]string{"--base-dir", filepath.Join(t.TempDir(), "missing")}))

	_, _, err := loadConfig(cmd.Flags(), cmd.lookupEnv)
	assert.ErrorContains(t, err, "sandbox root")
}

func TestLoadConfigOpensPackage(t *testing.T) {
	path := filepath.Join(canonicalTempDir(t), "pkg.click")
	require.NoError(t, os.WriteFile(path, []byte("archive"), 0o644))

	cmd := newRunCmd(envOf(nil))
	require.NoError(t, cmd.Flags().Parse([]string{"--package", path}))

	cfg, pkg, err := loadConfig(cmd.Flags(), cmd.lookupEnv)
	require.NoError(t, err)
	require.NotNil(t, pkg)
	defer pkg.Close()
	assert.Equal(t, path, cfg.PackagePath)
	assert.Equal(t, int(pkg.Fd()), cfg.PackageFD)
}

func TestLoadConfigPackageFDFlag(t *testing.T) {
	cmd := newRunCmd(envOf(map[string]string{
		interpose.EnvPackagePath: "/srv/pkg.click",
	}))
	require.NoError(t, cmd.Flags().Parse([]string{"--package-fd", strconv.Itoa(0)}))

	cfg, pkg, err := loadConfig(cmd.Flags(), cmd.lookupEnv)
	require.NoError(t, err)
	assert.Nil(t, pkg)
	assert.Equal(t, 0, cfg.PackageFD)
}

func TestLoadConfigMissingPackage(t *testing.T) {
	cmd := newRunCmd(envOf(nil))
	require.NoError(t, cmd.Flags().Parse([]string{"--package", filepath.Join(t.TempDir(), "missing.click")}))

	_, _, err := loadConfig(cmd.Flags(), cmd.lookupEnv)
	assert.ErrorContains(t, err, "opening package")
}

func TestCheck(t *testing.T) {
	base := canonicalTempDir(t)
	inside := filepath.Join(base, "usr", "bin")
	sibling := base + "2"

	var stdout, stderr bytes.Buffer
	code := execute([]string{"check", "--base-dir", base, inside, sibling}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Empty(t, stderr.String())
	assert.Equal(t, "inside\t"+inside+"\noutside\t"+sibling+"\n", stdout.String())
}

func TestCheckAllInside(t *testing.T) {
	base := canonicalTempDir(t)

	var stdout, stderr bytes.Buffer
	code := execute([]string{"check", "--base-dir", base, base, base + "/a/../b"}, &stdout, &stderr)
	assert.Equal(t, 0, code)
	assert.Equal(t, 2, strings.Count(stdout.String(), "inside\t"))
}

func TestCheckWithoutBase(t *testing.T) {
	t.Setenv(interpose.EnvBaseDir, "")

	var stdout, stderr bytes.Buffer
	code := execute([]string{"check", "/tmp"}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "no sandbox root")
}

func TestUnknownCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := execute([]string{"frobnicate"}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "click-sandbox: unknown command")
}

func TestABIVersionCmd(t *testing.T) {
	var stdout, stderr bytes.Buffer
	require.Equal(t, 0, execute([]string{"abi-version"}, &stdout, &stderr))
	v, err := strconv.Atoi(strings.TrimSpace(stdout.String()))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, v, 0)
}

func TestLogLevel(t *testing.T) {
	for _, tc := range []struct {
		Name  string
		Env   map[string]string
		Debug bool
		Want  logrus.Level
	}{
		{"Default", nil, false, logrus.WarnLevel},
		{"FromEnv", map[string]string{envLogLevel: "info"}, false, logrus.InfoLevel},
		{"Invalid", map[string]string{envLogLevel: "chatty"}, false, logrus.WarnLevel},
		{"DebugFlag", nil, true, logrus.DebugLevel},
		{"DebugEnv", map[string]string{envDebug: "1", envLogLevel: "error"}, false, logrus.DebugLevel},
	} {
		t.Run(tc.Name, func(t *testing.T) {
			log := newLogger(&bytes.Buffer{}, tc.Debug, envOf(tc.Env))
			assert.Equal(t, tc.Want, log.Logger.GetLevel())
		})
	}
}

func TestRunPropagatesStatus(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("no /bin/sh")
	}
	base := canonicalTempDir(t)

	var stdout, stderr bytes.Buffer
	if code := execute([]string{"run", "--base-dir", base, "--", "/bin/sh", "-c", "exit 0"}, &stdout, &stderr); code != 0 {
		t.Skipf("tracing unavailable: status %d: %s", code, stderr.String())
	}
	assert.Equal(t, 5, execute([]string{"run", "--base-dir", base, "--", "/bin/sh", "-c", "exit 5"}, &stdout, &stderr))
}

func TestRunCommandFlagsNotParsed(t *testing.T) {
	cmd := newRunCmd(envOf(nil))
	require.NoError(t, cmd.Flags().Parse([]string{"--landlock", "/bin/sh", "-c", "exit 0", "--debug"}))
	assert.True(t, cmd.landlock)
	assert.False(t, cmd.debug)
	assert.Equal(t, []string{"/bin/sh", "-c", "exit 0", "--debug"}, cmd.Flags().Args())
}
