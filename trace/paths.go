package trace

import "path/filepath"

// absPath resolves p against dir, the directory that a relative path in
// the tracee is interpreted in. The result is cleaned lexically.
// Symbolic links are not followed.
func absPath(dir, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(dir, p)
}
