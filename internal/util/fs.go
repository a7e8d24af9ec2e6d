package util

import (
	"path/filepath"
	"strings"
)

// Stem returns the base name of path without its final extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Ext returns the lower-cased final extension of path, including the dot.
func Ext(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

// ReplaceExt swaps the final extension of path for ext. A leading dot on ext
// is optional.
func ReplaceExt(path, ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	return strings.TrimSuffix(path, filepath.Ext(path)) + "." + ext
}
