package placement

import (
	"path/filepath"
	"strings"
)

// Directory names of the Plex optimized-versions layout.
const (
	VersionsDir  = "Plex Versions"
	OptimizedDir = "Optimized for TV"
)

// ShowName returns the name of the directory two levels above source, the
// show folder in a Show/Season/episode layout.
func ShowName(source string) string {
	dir := filepath.Dir(filepath.Dir(filepath.Clean(toSlash(source))))
	name := filepath.Base(dir)
	if name == "/" || name == "." || name == string(filepath.Separator) {
		return ""
	}
	return name
}

// OptimizedFor returns the optimized-version directory for source:
// <dir>/Plex Versions/Optimized for TV/<show>.
func OptimizedFor(source string) string {
	dir := filepath.Dir(toSlash(source))
	return filepath.Join(dir, VersionsDir, OptimizedDir, ShowName(source))
}

// OptimizedPath returns where the optimized copy of source lives.
func OptimizedPath(source string) string {
	return filepath.Join(OptimizedFor(source), filepath.Base(toSlash(source)))
}

// IsOptimized reports whether source itself sits in an optimized-version
// tree.
func IsOptimized(source string) bool {
	return ShowName(source) == OptimizedDir
}

// Windows-style separators from library paths are treated as slashes.
func toSlash(p string) string {
	return strings.ReplaceAll(p, `\`, "/")
}
