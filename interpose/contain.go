package interpose

import (
	"fmt"
	"strings"
)

// Verbs passed to AssertContained. They appear in the violation
// diagnostic.
const (
	VerbMkdir       = "mkdir"
	VerbMkfifo      = "mkfifo"
	VerbMknod       = "mknod"
	VerbSymlink     = "make symbolic link"
	VerbLink        = "make hard link"
	VerbRename      = "rename"
	VerbWriteOpen   = "write-open"
	VerbWriteFdopen = "write-fdopen"
	VerbChmod       = "chmod"
)

// TerminalDevice may always be opened for writing. Shells check at
// startup whether they can write to it, and dpkg-deb may be such a
// wrapper script.
const TerminalDevice = "/dev/tty"

// Contains reports whether path is baseDir itself or lies beneath it.
// The comparison is on strings: a sibling whose name merely starts with
// the same characters ("/x/pkg2" for "/x/pkg") is outside. An empty
// baseDir contains nothing.
func Contains(baseDir, path string) bool {
	if baseDir == "" || !strings.HasPrefix(path, baseDir) {
		return false
	}
	if len(path) == len(baseDir) || strings.HasSuffix(baseDir, "/") {
		return true
	}
	return path[len(baseDir)] == '/'
}

func exempt(verb, path string) bool {
	return verb == VerbWriteOpen && path == TerminalDevice
}

// Violation describes an attempt to modify the filesystem outside the
// sandbox root.
type Violation struct {
	Verb    string
	Path    string
	BaseDir string
}

func (v *Violation) Error() string {
	return fmt.Sprintf("'click install' not permitted to %s '%s'", v.Verb, v.Path)
}

// diagnostic is the single line written before the process exits.
func (v *Violation) diagnostic() string {
	return "Sandbox failure: " + v.Error() + "\n"
}
