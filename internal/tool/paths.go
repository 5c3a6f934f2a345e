package tool

import (
	"fmt"
	"path/filepath"
	"strings"
)

// pathEscapeMsg is the message prefix for confinement failures.
const pathEscapeMsg = "path escapes the workspace root"

// ResolvePath resolves a tool-supplied path against the workspace root and
// rejects any result outside it. It returns the absolute path and the
// forward-slash normalized workspace-relative path. The operation is
// idempotent: resolving an already-resolved path yields the same result.
func ResolvePath(root, p string) (abs string, rel string, err error) {
	if root == "" {
		return "", "", fmt.Errorf("no workspace root configured")
	}
	if p == "" {
		return "", "", fmt.Errorf("empty path")
	}

	p = filepath.FromSlash(p)
	if !filepath.IsAbs(p) {
		p = filepath.Join(root, p)
	}
	abs = filepath.Clean(p)

	cleanRoot := filepath.Clean(root)
	if abs != cleanRoot && !strings.HasPrefix(abs, cleanRoot+string(filepath.Separator)) {
		return "", "", fmt.Errorf("%s: %s", pathEscapeMsg, filepath.ToSlash(p))
	}

	r, err := filepath.Rel(cleanRoot, abs)
	if err != nil {
		return "", "", err
	}
	return abs, filepath.ToSlash(r), nil
}
