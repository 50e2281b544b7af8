package landlock

import (
	"errors"
	"fmt"

	ll "github.com/clickpkg/go-clicksandbox/landlock/syscall"
	"golang.org/x/sys/unix"
)

// FSRule is a rule which permits access to file system paths.
type FSRule struct {
	accessFS      AccessFSSet
	enforceSubset bool // enforce that accessFS is a subset of cfg.handledAccessFS
	ignoreMissing bool
	paths         []string
}

// withRights adds the given access rights to the rights enforced in the FSRule
// and returns the result as a new FSRule.
func (r FSRule) withRights(a AccessFSSet) FSRule {
	r.accessFS = r.accessFS.union(a)
	return r
}

// intersectRights intersects the given access rights with the rights
// enforced in the FSRule and returns the result as a new FSRule.
func (r FSRule) intersectRights(a AccessFSSet) FSRule {
	r.accessFS = r.accessFS.intersect(a)
	return r
}

// WithRefer adds the "refer" access right to a FSRule, which permits
// renaming and linking files between directories beneath the rule's
// paths.
//
// Asking for the "refer" access right does not work on kernels below
// 5.19. In best effort mode, this will fall back to not using Landlock
// enforcement at all on these kernel versions.
func (r FSRule) WithRefer() FSRule {
	return r.withRights(ll.AccessFSRefer)
}

// IgnoreIfMissing gracefully ignores missing paths.
func (r FSRule) IgnoreIfMissing() FSRule {
	r.ignoreMissing = true
	return r
}

func (r FSRule) String() string {
	var missing string
	if r.ignoreMissing {
		missing = " (ignore if missing)"
	}
	return fmt.Sprintf("REQUIRE %v for paths %v%v", r.accessFS, r.paths, missing)
}

// compatibleWithConfig returns true if the given rule is compatible
// for use with the config c.
func (r FSRule) compatibleWithConfig(c Config) bool {
	a := r.accessFS
	if !r.enforceSubset {
		// This FSRule is potentially overspecifying flags, so the
		// subset property is only checked for "refer".
		a = a.intersect(ll.AccessFSRefer)
	}
	return a.isSubset(c.handledAccessFS)
}

func (r FSRule) addToRuleset(rulesetFD int, c Config) error {
	effectiveAccessFS := r.accessFS
	if !r.enforceSubset {
		effectiveAccessFS = effectiveAccessFS.intersect(c.handledAccessFS)
	}
	for _, path := range r.paths {
		err := addPath(rulesetFD, path, effectiveAccessFS)
		if r.ignoreMissing && errors.Is(err, unix.ENOENT) {
			continue
		}
		if err != nil {
			return fmt.Errorf("populating ruleset for %q with access %v: %w", path, effectiveAccessFS, err)
		}
	}
	return nil
}

// downgrade calculates the actual rule to be enforced given the
// current config (and assuming that the config is going to work under
// the running kernel).
//
// It establishes that rule.accessFS ⊆ c.handledAccessFS.
//
// If ok is false, downgrade is impossible and we need to fall back to doing nothing.
func (r FSRule) downgrade(c Config) (out FSRule, ok bool) {
	// Refer needs V2+. On V1 there is no way to grant it, but
	// reparenting is implicitly forbidden, so the rule can't be
	// honoured at all.
	if hasRefer(r.accessFS) && !hasRefer(c.handledAccessFS) {
		return FSRule{}, false
	}
	return r.intersectRights(c.handledAccessFS), true
}

func hasRefer(a AccessFSSet) bool {
	return a&ll.AccessFSRefer != 0
}

// PathAccess is a rule which grants the access rights specified by
// accessFS to the file hierarchies under the given paths.
//
// accessFS must be a subset of the permissions that the Config
// restricts.
func PathAccess(accessFS AccessFSSet, paths ...string) FSRule {
	return FSRule{
		accessFS:      accessFS,
		paths:         paths,
		enforceSubset: true,
	}
}

// RODirs is a rule which grants common read-only access to files
// and directories and permits executing files.
func RODirs(paths ...string) FSRule {
	return FSRule{
		accessFS: accessFSRead,
		paths:    paths,
	}
}

// RWDirs is a rule which grants full (read and write) access to
// files and directories under the given paths.
func RWDirs(paths ...string) FSRule {
	return FSRule{
		accessFS: accessFSReadWrite,
		paths:    paths,
	}
}

// RWFiles is a rule which grants common read and write access to
// files under the given paths, but it does not permit access to
// directories.
func RWFiles(paths ...string) FSRule {
	return FSRule{
		accessFS: accessFSReadWrite & accessFile,
		paths:    paths,
	}
}
