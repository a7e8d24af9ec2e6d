package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"plexprep/internal/placement"
)

var mediaExts = map[string]struct{}{
	".mkv": {}, ".mp4": {}, ".m4v": {}, ".avi": {}, ".mov": {}, ".ts": {},
	".m2ts": {}, ".wmv": {}, ".webm": {}, ".mpg": {}, ".mpeg": {}, ".flv": {},
}

// collectInputs expands args into the files to process. Files are taken as
// given; directories are walked for video files, skipping optimized-version
// trees.
func collectInputs(fs afero.Fs, args []string) ([]string, error) {
	seen := map[string]bool{}
	var files []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			files = append(files, p)
		}
	}

	for _, arg := range args {
		fi, err := fs.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("input %q: %w", arg, err)
		}
		if !fi.IsDir() {
			add(arg)
			continue
		}
		err = afero.Walk(fs, arg, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() {
				if info.Name() == placement.VersionsDir {
					return filepath.SkipDir
				}
				return nil
			}
			if _, ok := mediaExts[strings.ToLower(filepath.Ext(path))]; ok {
				add(path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scan %q: %w", arg, err)
		}
	}
	return files, nil
}
