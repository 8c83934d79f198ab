// Package pathutil converts between the absolute paths used internally and
// the root-relative paths shown in reports.
package pathutil

import (
	"path/filepath"
	"strings"
)

// ToRelative converts an absolute path to a slash-separated path relative
// to rootDir. Paths outside the root, already relative paths and paths that
// cannot be made relative are returned slash-separated but otherwise as-is.
//
// Examples:
//   - ToRelative("/home/user/project/Kernel/Main.wl", "/home/user/project") → "Kernel/Main.wl"
//   - ToRelative("/other/Util.m", "/home/user/project") → "/other/Util.m"
//   - ToRelative("Kernel/Main.wl", "/home/user/project") → "Kernel/Main.wl"
func ToRelative(absPath, rootDir string) string {
	if absPath == "" || rootDir == "" || !filepath.IsAbs(absPath) {
		return filepath.ToSlash(absPath)
	}

	absPath = filepath.Clean(absPath)
	relPath, err := filepath.Rel(filepath.Clean(rootDir), absPath)
	if err != nil {
		// Different volumes on Windows
		return filepath.ToSlash(absPath)
	}

	// A leading ".." component means outside the root; "..x" is a name
	if IsOutside(relPath) {
		return filepath.ToSlash(absPath)
	}
	return filepath.ToSlash(relPath)
}

// IsOutside reports whether a filepath.Rel result escapes its base
func IsOutside(relPath string) bool {
	return relPath == ".." || strings.HasPrefix(relPath, ".."+string(filepath.Separator))
}

