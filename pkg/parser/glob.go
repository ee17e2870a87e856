package parser

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// logExtensions are the file suffixes picked up when a pattern names a
// directory.
var logExtensions = []string{".log", ".txt", ".gz", ".zst", ".zstd"}

// ExpandGlobs expands a list of file paths, directories and glob patterns into
// a deduplicated, sorted list of file paths. A directory contributes the log
// files directly inside it. Patterns that don't match any files are returned
// as-is (the caller should handle file-not-found errors).
func ExpandGlobs(patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var result []string

	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			result = append(result, path)
		}
	}

	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid glob pattern %q: %w", pattern, err)
		}

		if len(matches) == 0 {
			// Keep the literal path so the open error names it later
			add(pattern)
			continue
		}

		for _, match := range matches {
			info, err := os.Stat(match)
			if err != nil || !info.IsDir() {
				add(match)
				continue
			}
			files, err := logFilesIn(match)
			if err != nil {
				return nil, err
			}
			for _, f := range files {
				add(f)
			}
		}
	}

	sort.Strings(result)

	return result, nil
}

func logFilesIn(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading directory %s: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := strings.ToLower(e.Name())
		for _, ext := range logExtensions {
			if strings.HasSuffix(name, ext) {
				files = append(files, filepath.Join(dir, e.Name()))
				break
			}
		}
	}
	return files, nil
}
