package stylesheet

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultExcludes are skipped when discovering stylesheets.
var DefaultExcludes = []string{"node_modules/**", ".git/**", "**/*.min.css"}

// IsCSSFile reports whether path names a stylesheet.
func IsCSSFile(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".css")
}

// DiscoverCSSFiles walks rootDir for .css files, applying exclude patterns
// to paths relative to rootDir.
func DiscoverCSSFiles(rootDir string, excludes []string) ([]string, error) {
	absRoot, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root path: %w", err)
	}

	var files []string

	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}

		relPath, err := filepath.Rel(absRoot, path)
		if err != nil {
			relPath = path
		}
		relPath = filepath.ToSlash(relPath)

		if isExcluded(relPath, excludes) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() || !IsCSSFile(path) {
			return nil
		}

		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return files, nil
}

// ExpandPaths resolves a mix of files and directories into stylesheet
// paths. Files are kept as given; directories are walked.
func ExpandPaths(paths []string, excludes []string) ([]string, error) {
	var files []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("failed to stat '%s': %w", path, err)
		}
		if !info.IsDir() {
			files = append(files, path)
			continue
		}

		found, err := DiscoverCSSFiles(path, excludes)
		if err != nil {
			return nil, err
		}
		files = append(files, found...)
	}
	return files, nil
}

func isExcluded(relPath string, excludes []string) bool {
	for _, pattern := range excludes {
		if matched, _ := doublestar.Match(pattern, relPath); matched {
			return true
		}
	}
	return false
}
