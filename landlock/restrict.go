package landlock

import (
	"errors"
	"fmt"
	"syscall"

	ll "github.com/clickpkg/go-clicksandbox/landlock/syscall"
	"golang.org/x/sys/unix"
)

// ErrUnavailable reports that the kernel offers no Landlock support.
var ErrUnavailable = errors.New("landlock is not supported by kernel or not enabled at boot time")

// downgrade calculates the actual ruleset to be enforced given the
// current kernel's Landlock ABI level.
//
// It establishes that rule.accessFS ⊆ c.handledAccessFS ⊆ abi.supportedAccessFS.
func downgrade(c Config, rules []FSRule, abi abiInfo) (Config, []FSRule) {
	c.handledAccessFS = c.handledAccessFS.intersect(abi.supportedAccessFS)

	resRules := make([]FSRule, 0, len(rules))
	for _, rule := range rules {
		r, ok := rule.downgrade(c)
		if !ok {
			return v0, nil // Use "ABI V0" (do nothing)
		}
		resRules = append(resRules, r)
	}
	return c, resRules
}

// restrict is the actual RestrictPaths implementation.
func restrict(c Config, rules ...FSRule) error {
	// Check validity of options early.
	if err := c.validate(); err != nil {
		return err
	}
	for _, rule := range rules {
		if !rule.compatibleWithConfig(c) {
			return fmt.Errorf("incompatible rule %v: %w", rule, unix.EINVAL)
		}
	}

	abi := getSupportedABIVersion()
	if c.bestEffort {
		c, rules = downgrade(c, rules, abi)
	}
	if !c.handledAccessFS.isSubset(abi.supportedAccessFS) {
		return fmt.Errorf("missing kernel Landlock support. Got Landlock ABI v%v, wanted %v", abi.version, c)
	}

	if c.handledAccessFS.isEmpty() {
		return nil // Success: Nothing to restrict.
	}

	rulesetAttr := ll.RulesetAttr{
		HandledAccessFS: uint64(c.handledAccessFS),
	}
	fd, err := ll.LandlockCreateRuleset(&rulesetAttr, 0)
	if err != nil {
		// Bug, because these should have been caught up front with the ABI version check.
		return bug(fmt.Errorf("landlock_create_ruleset: %w", kernelSupportError(err)))
	}
	defer syscall.Close(fd)

	for _, rule := range rules {
		if err := rule.addToRuleset(fd, c); err != nil {
			return err
		}
	}

	if err := ll.AllThreadsSetNoNewPrivs(); err != nil {
		// This prctl invocation should always work.
		return bug(fmt.Errorf("prctl(PR_SET_NO_NEW_PRIVS): %v", err))
	}

	if err := ll.AllThreadsLandlockRestrictSelf(fd, 0); err != nil {
		if errors.Is(err, syscall.E2BIG) {
			// Other errors than E2BIG should never happen.
			return fmt.Errorf("the maximum number of stacked rulesets is reached for the current thread: %w", err)
		}
		return bug(fmt.Errorf("landlock_restrict_self: %w", err))
	}
	return nil
}

func kernelSupportError(err error) error {
	switch {
	case errors.Is(err, syscall.ENOSYS), errors.Is(err, syscall.EOPNOTSUPP):
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	case errors.Is(err, syscall.EINVAL):
		return fmt.Errorf("unknown flags, unknown access, or too small size: %w", err)
	}
	return err
}

// Denotes an error that should not have happened.
func bug(err error) error {
	return fmt.Errorf("BUG(click-sandbox/landlock): should not have happened: %w", err)
}
