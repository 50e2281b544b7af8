// Package syscall provides a low-level interface to the Linux Landlock
// sandboxing feature.
//
// The constants and structures mirror usr/include/linux/landlock.h.
// Only the file system part of Landlock is covered.
package syscall

// Landlock file system access rights, for use in "access" bit fields.
const (
	AccessFSExecute    = (1 << 0)
	AccessFSWriteFile  = (1 << 1)
	AccessFSReadFile   = (1 << 2)
	AccessFSReadDir    = (1 << 3)
	AccessFSRemoveDir  = (1 << 4)
	AccessFSRemoveFile = (1 << 5)
	AccessFSMakeChar   = (1 << 6)
	AccessFSMakeDir    = (1 << 7)
	AccessFSMakeReg    = (1 << 8)
	AccessFSMakeSock   = (1 << 9)
	AccessFSMakeFifo   = (1 << 10)
	AccessFSMakeBlock  = (1 << 11)
	AccessFSMakeSym    = (1 << 12)
	AccessFSRefer      = (1 << 13)
	AccessFSTruncate   = (1 << 14)
)

// Flags for LandlockCreateRuleset.
const (
	CreateRulesetVersion = 1 << 0
)

// The Landlock rule types.
const (
	RuleTypePathBeneath = 1
)

// RulesetAttr is the Landlock ruleset definition.
//
// Argument of LandlockCreateRuleset(). The kernel structure has grown
// over time; only the leading file system field is passed.
type RulesetAttr struct {
	HandledAccessFS uint64
}

// The size of the RulesetAttr struct in bytes.
const rulesetAttrSize = 8

// PathBeneathAttr references a file hierarchy and defines the desired
// extent to which it should be usable when the rule is enforced.
type PathBeneathAttr struct {
	// AllowedAccess is a bitmask of allowed actions for this file
	// hierarchy. The enabled bits must be a subset of the bits
	// handled by the ruleset.
	AllowedAccess uint64

	// ParentFd is a file descriptor, opened with O_PATH, which
	// identifies the parent directory of a file hierarchy, or just a
	// file.
	ParentFd int32
}
