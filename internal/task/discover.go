package task

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"firestige.xyz/sipscan/internal/core"
)

// Discover lists the capture files in dir matching pattern, sorted by name.
func Discover(dir, pattern string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", core.ErrTracesDirNotFound, dir)
	}

	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("%w: bad pattern %q: %v", core.ErrConfigInvalid, pattern, err)
	}

	files := matches[:0]
	for _, m := range matches {
		if fi, err := os.Stat(m); err == nil && fi.Mode().IsRegular() {
			files = append(files, m)
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no %s files in %s", core.ErrNoInputFiles, pattern, dir)
	}
	sort.Strings(files)
	return files, nil
}
