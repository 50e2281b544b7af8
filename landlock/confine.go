package landlock

// TerminalDevice stays writable under ConfineWrites, matching the
// exemption of the path containment policy.
const TerminalDevice = "/dev/tty"

// ConfineWrites restricts all threads of the calling process, and
// everything it later executes, to reading anywhere but writing only
// beneath baseDir and to TerminalDevice.
//
// It works in best effort mode: on kernels without Landlock it returns
// nil and nothing is enforced.
func ConfineWrites(baseDir string) error {
	return V3.BestEffort().RestrictPaths(confinementRules(baseDir, getSupportedABIVersion())...)
}

func confinementRules(baseDir string, abi abiInfo) []FSRule {
	base := RWDirs(baseDir)
	if hasRefer(abi.supportedAccessFS) {
		// Packages move files between their own directories.
		base = base.WithRefer()
	}
	return []FSRule{
		RODirs("/"),
		base,
		RWFiles(TerminalDevice).IgnoreIfMissing(),
	}
}
