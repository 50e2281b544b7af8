package trace

import (
	"io"
	"os"

	"github.com/clickpkg/go-clicksandbox/interpose"
	"github.com/sirupsen/logrus"
)

// Options configure Run.
type Options struct {
	// Config is the sandbox applied to the command. If it names a
	// package, its PackageFD must be open in the calling process.
	Config *interpose.Config

	// Args is the command and its arguments. Args[0] is looked up in
	// PATH.
	Args []string

	// Env is the command's environment. Nil means os.Environ().
	Env []string

	// Dir is the working directory of the command. Empty means the
	// current directory.
	Dir string

	// Standard streams of the command. Nil means the caller's.
	Stdin, Stdout, Stderr *os.File

	// Landlock additionally restricts writes of the command beneath
	// Config.BaseDir through the kernel, where Landlock is available.
	Landlock bool

	// Log receives one debug record per intercepted call.
	Log *logrus.Entry
}

func (o *Options) logger() *logrus.Entry {
	if o.Log != nil {
		return o.Log
	}
	l := logrus.New()
	l.Out = io.Discard
	return logrus.NewEntry(l)
}

func orDefault(f, def *os.File) *os.File {
	if f == nil {
		return def
	}
	return f
}
