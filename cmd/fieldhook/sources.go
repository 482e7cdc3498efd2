package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// collectGoFiles finds all .go files from the given sources.
//
// Sources can be:
//   - .go files directly
//   - directories (scans for .go files, not recursively)
//   - patterns ending in /... (every package directory below)
//   - "." for the working directory
//
// Test files are included only when tests is set. Files named directly
// are always included.
func collectGoFiles(sources []string, workDir string, tests bool) ([]string, error) {
	var goFiles []string
	seen := make(map[string]bool)
	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			goFiles = append(goFiles, path)
		}
	}

	for _, src := range sources {
		if isRecursivePattern(src) {
			dirs, err := resolvePackagePatterns([]string{src}, workDir)
			if err != nil {
				return nil, err
			}
			for _, dir := range dirs {
				files, err := dirGoFiles(dir, tests)
				if err != nil {
					return nil, err
				}
				for _, f := range files {
					add(f)
				}
			}
			continue
		}

		srcPath := src
		if !filepath.IsAbs(srcPath) {
			srcPath = filepath.Join(workDir, src)
		}

		info, err := os.Stat(srcPath)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", src, err)
		}

		if info.IsDir() {
			files, err := dirGoFiles(srcPath, tests)
			if err != nil {
				return nil, err
			}
			for _, f := range files {
				add(f)
			}
		} else if strings.HasSuffix(srcPath, ".go") {
			add(srcPath)
		}
	}

	return goFiles, nil
}

// dirGoFiles lists the .go files of one directory in name order.
func dirGoFiles(dir string, tests bool) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot read directory %s: %w", dir, err)
	}

	var goFiles []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".go") {
			continue
		}
		if strings.HasSuffix(name, "_test.go") && !tests {
			continue
		}
		goFiles = append(goFiles, filepath.Join(dir, name))
	}
	return goFiles, nil
}

func isRecursivePattern(pattern string) bool {
	return pattern == "..." || strings.HasSuffix(pattern, "/...") || strings.HasSuffix(pattern, `\...`)
}

// resolvePackagePatterns resolves package patterns like "./..." to
// directories.
func resolvePackagePatterns(patterns []string, workDir string) ([]string, error) {
	var dirs []string
	seen := make(map[string]bool)

	for _, pattern := range patterns {
		if isRecursivePattern(pattern) {
			baseDir := strings.TrimSuffix(strings.TrimSuffix(strings.TrimSuffix(pattern, "..."), "/"), `\`)
			if baseDir == "." || baseDir == "" {
				baseDir = workDir
			} else if !filepath.IsAbs(baseDir) {
				baseDir = filepath.Join(workDir, baseDir)
			}

			var found []string
			err := filepath.WalkDir(baseDir, func(path string, d fs.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if !d.IsDir() {
					return nil
				}
				if path != baseDir && skipDir(path, d.Name()) {
					return filepath.SkipDir
				}
				if hasGo, _ := hasGoFiles(path); hasGo && !seen[path] {
					found = append(found, path)
					seen[path] = true
				}
				return nil
			})
			if err != nil {
				return nil, fmt.Errorf("failed to walk %s: %w", baseDir, err)
			}
			sort.Strings(found)
			dirs = append(dirs, found...)
			continue
		}

		dir := pattern
		if pattern == "." {
			dir = workDir
		} else if !filepath.IsAbs(dir) {
			dir = filepath.Join(workDir, pattern)
		}
		if !seen[dir] {
			dirs = append(dirs, dir)
			seen[dir] = true
		}
	}

	return dirs, nil
}

// skipDir reports whether a directory below a walk root holds no packages
// of the module: hidden, underscore and vendor directories, testdata, and
// nested modules.
func skipDir(path, name string) bool {
	if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") ||
		name == "vendor" || name == "testdata" {
		return true
	}
	_, err := os.Stat(filepath.Join(path, "go.mod"))
	return err == nil
}

// hasGoFiles checks if a directory contains any .go files.
func hasGoFiles(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false, err
	}

	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".go") {
			return true, nil
		}
	}

	return false, nil
}
