// Package runtime provides runtime library linking for rewritten code.
//
// Rewritten files import the fieldhook hook package. This package prepares
// the go.mod of a rewritten workspace so that import resolves: it requires
// the fieldhook module and, when fieldhook runs from a source checkout,
// replaces it with that checkout.
package runtime

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/mod/modfile"
	"golang.org/x/mod/module"

	"github.com/kolkov/fieldhook/hook"
)

const (
	// ModulePath is the module rewritten code depends on.
	ModulePath = "github.com/kolkov/fieldhook"

	// Version is the fieldhook module version required by rewritten code.
	Version = "v" + hook.Version

	// FallbackModule names the workspace module when the sources have no
	// go.mod of their own.
	FallbackModule = "rewritten"
)

// RuntimePackagePath returns the import path of the runtime package that
// rewritten code imports.
//
// Returns: "github.com/kolkov/fieldhook/hook"
func RuntimePackagePath() string {
	return ModulePath + "/hook"
}

// FindProjectRoot finds the root directory of a fieldhook source checkout.
//
// This walks up the directory tree from the current working directory
// looking for fieldhook's own marker (the internal/hook/pipeline
// directory next to hook/api.go). Any go.mod is not enough: that would
// match the user's project.
//
// Returns:
//   - Project root path
//   - Error if no checkout is found (published mode)
func FindProjectRoot() (string, error) {
	var candidates []string
	if cwd, err := os.Getwd(); err == nil {
		for dir := cwd; ; {
			candidates = append(candidates, dir)
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}

	// The executable might live in the checkout or its bin directory.
	if exePath, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exePath)
		candidates = append(candidates, exeDir, filepath.Dir(exeDir), filepath.Dir(filepath.Dir(exeDir)))
	}

	for _, dir := range candidates {
		if isProjectRoot(dir) {
			return dir, nil
		}
	}
	return "", fmt.Errorf("could not find fieldhook project root")
}

func isProjectRoot(dir string) bool {
	if _, err := os.Stat(filepath.Join(dir, "internal", "hook", "pipeline")); err != nil {
		return false
	}
	_, err := os.Stat(filepath.Join(dir, "hook", "api.go"))
	return err == nil
}

// FindGoMod returns the go.mod governing startDir, or "" if there is none.
func FindGoMod(startDir string) string {
	dir := startDir
	for {
		modPath := filepath.Join(dir, "go.mod")
		if _, err := os.Stat(modPath); err == nil {
			return modPath
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// ReadModulePath returns the module path declared in goModPath.
func ReadModulePath(goModPath string) (string, error) {
	data, err := os.ReadFile(goModPath)
	if err != nil {
		return "", err
	}
	p := modfile.ModulePath(data)
	if p == "" {
		return "", fmt.Errorf("%s: no module directive", goModPath)
	}
	return p, nil
}

// ImportPath returns the import path of the package in dir, given the
// module rooted at moduleRoot. It returns "" for directories outside the
// module.
func ImportPath(modulePath, moduleRoot, dir string) string {
	rel, err := filepath.Rel(moduleRoot, dir)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return ""
	}
	if rel == "." {
		return modulePath
	}
	return modulePath + "/" + filepath.ToSlash(rel)
}

// BuildFlags returns the flags go build needs for rewritten code.
//
// -mod=mod lets the go command add checksums for the fieldhook module's
// own dependencies that the original go.sum does not carry.
func BuildFlags() []string {
	return []string{"-mod=mod"}
}

// WriteModFile writes the go.mod of a rewritten workspace to dst.
//
// The file is the original go.mod (or a fresh one for module-less
// sources) with:
//   - a requirement on the fieldhook module
//   - a replace directive to projectRoot, when running from a checkout
//   - relative replace paths made absolute, since the workspace lives in
//     a different directory
//
// Parameters:
//   - dst: Path of the go.mod to write
//   - originalGoMod: Path of the source go.mod, "" if none
//   - projectRoot: fieldhook checkout, "" in published mode
func WriteModFile(dst, originalGoMod, projectRoot string) error {
	var f *modfile.File
	if originalGoMod != "" {
		data, err := os.ReadFile(originalGoMod)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", originalGoMod, err)
		}
		f, err = modfile.Parse(originalGoMod, data, nil)
		if err != nil {
			return fmt.Errorf("failed to parse %s: %w", originalGoMod, err)
		}
		if err := absolutizeReplaces(f, filepath.Dir(originalGoMod)); err != nil {
			return err
		}
	} else {
		f = new(modfile.File)
		if err := f.AddModuleStmt(FallbackModule); err != nil {
			return err
		}
		if err := f.AddGoStmt("1.22"); err != nil {
			return err
		}
	}

	if f.Module != nil && f.Module.Mod.Path == ModulePath {
		return fmt.Errorf("fieldhook does not rewrite its own module")
	}

	if err := f.AddRequire(ModulePath, Version); err != nil {
		return fmt.Errorf("failed to require %s: %w", ModulePath, err)
	}
	if projectRoot != "" {
		if err := f.AddReplace(ModulePath, "", projectRoot, ""); err != nil {
			return fmt.Errorf("failed to replace %s: %w", ModulePath, err)
		}
	}

	f.Cleanup()
	out, err := f.Format()
	if err != nil {
		return fmt.Errorf("failed to format go.mod: %w", err)
	}
	if err := os.WriteFile(dst, out, 0o644); err != nil {
		return fmt.Errorf("failed to write go.mod: %w", err)
	}
	return nil
}

// absolutizeReplaces rewrites local replacement paths relative to dir.
func absolutizeReplaces(f *modfile.File, dir string) error {
	for _, rep := range f.Replace {
		if rep.New.Version != "" || !isLocalPath(rep.New.Path) || filepath.IsAbs(rep.New.Path) {
			continue
		}
		abs, err := filepath.Abs(filepath.Join(dir, rep.New.Path))
		if err != nil {
			return err
		}
		// AddReplace updates the existing directive in place.
		if err := f.AddReplace(rep.Old.Path, rep.Old.Version, abs, ""); err != nil {
			return err
		}
	}
	return nil
}

// isLocalPath reports whether a replacement path is a filesystem path
// rather than a module path.
//
// Local paths start with ./, ../, /, or a drive letter on Windows.
func isLocalPath(path string) bool {
	if strings.HasPrefix(path, "./") || strings.HasPrefix(path, "../") ||
		strings.HasPrefix(path, `.\`) || strings.HasPrefix(path, `..\`) {
		return true
	}
	if filepath.IsAbs(path) {
		return true
	}
	// Windows drive letter (e.g., C:\)
	if len(path) >= 2 && path[1] == ':' {
		return true
	}
	return module.CheckPath(path) != nil
}
