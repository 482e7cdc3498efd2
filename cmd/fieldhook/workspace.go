package main

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/xid"
	"github.com/tebeka/atexit"

	"github.com/kolkov/fieldhook/cmd/fieldhook/rewrite"
	"github.com/kolkov/fieldhook/cmd/fieldhook/runtime"
	"github.com/kolkov/fieldhook/internal/logging"
)

// workspace represents a temporary copy of a module with rewritten sources.
type workspace struct {
	// Root directory of workspace
	dir string

	// Source directory, mirroring the module root
	srcDir string

	// Module being rewritten
	moduleRoot string
	modulePath string

	// Original go.mod, "" when the sources have none
	goMod string

	once sync.Once
}

// createWorkspace creates a temporary workspace for the module containing
// workDir. Sources outside any module are treated as a module of their
// own rooted at workDir.
//
// The workspace is removed by cleanup, or at exit if cleanup is never
// reached.
func createWorkspace(workDir string) (*workspace, error) {
	w := &workspace{
		moduleRoot: workDir,
		modulePath: runtime.FallbackModule,
	}
	if goMod := runtime.FindGoMod(workDir); goMod != "" {
		modulePath, err := runtime.ReadModulePath(goMod)
		if err != nil {
			return nil, err
		}
		w.goMod = goMod
		w.moduleRoot = filepath.Dir(goMod)
		w.modulePath = modulePath
	}

	w.dir = filepath.Join(os.TempDir(), "fieldhook-"+xid.New().String())
	w.srcDir = filepath.Join(w.dir, "src")
	if err := os.MkdirAll(w.srcDir, 0o755); err != nil {
		_ = os.RemoveAll(w.dir)
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}
	atexit.Register(w.cleanup)

	logging.Logger("workspace").Debugf("workspace for %s at %s", w.modulePath, w.dir)
	return w, nil
}

// cleanup removes the temporary workspace. It is safe to call repeatedly.
func (w *workspace) cleanup() {
	w.once.Do(func() {
		if w.dir != "" {
			_ = os.RemoveAll(w.dir) // Best effort cleanup, ignore errors
		}
	})
}

// mirror copies the module into the workspace, rewriting its Go sources.
//
// Hidden, underscore and vendor directories and nested modules are left
// out. Test files are rewritten when tests is set and left out otherwise.
// Files under testdata are copied verbatim. A file that fails to rewrite is
// copied unchanged and reported.
func (w *workspace) mirror(ctx context.Context, opts rewrite.Options, tests bool, rep *reporter) error {
	var goFiles []string
	err := filepath.WalkDir(w.moduleRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path == w.moduleRoot {
				return nil
			}
			if d.Name() == "testdata" {
				return w.copyTree(path)
			}
			if skipDir(path, d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		name := d.Name()
		switch {
		case filepath.Dir(path) == w.moduleRoot && (name == "go.mod" || name == "go.sum"):
			return nil
		case strings.HasSuffix(name, "_test.go"):
			if tests {
				goFiles = append(goFiles, path)
			}
			return nil
		case strings.HasSuffix(name, ".go"):
			goFiles = append(goFiles, path)
			return nil
		}
		return w.copyFile(path)
	})
	if err != nil {
		return fmt.Errorf("failed to mirror %s: %w", w.moduleRoot, err)
	}

	if len(goFiles) == 0 {
		return fmt.Errorf("no Go source files found in %s", w.moduleRoot)
	}

	t := rewrite.NewTransformer(opts,
		rewrite.WithConcurrency(opts.Concurrency),
		rewrite.WithListener(rep.report),
		rewrite.WithImportPaths(func(dir string) string {
			return runtime.ImportPath(w.modulePath, w.moduleRoot, dir)
		}),
	)
	results, err := t.RewriteFiles(ctx, goFiles)
	if err != nil {
		return err
	}

	for _, r := range results {
		if err := w.writeFile(r.Filename, []byte(r.Code)); err != nil {
			return err
		}
	}
	return nil
}

// target returns the workspace path of a module file.
func (w *workspace) target(path string) (string, error) {
	rel, err := filepath.Rel(w.moduleRoot, path)
	if err != nil {
		return "", fmt.Errorf("%s is outside module %s: %w", path, w.moduleRoot, err)
	}
	return filepath.Join(w.srcDir, rel), nil
}

func (w *workspace) writeFile(path string, data []byte) error {
	dst, err := w.target(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", dst, err)
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", dst, err)
	}
	return nil
}

func (w *workspace) copyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	return w.writeFile(path, data)
}

// copyTree copies every regular file below dir and skips the walk over it.
func (w *workspace) copyTree(dir string) error {
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			return w.copyFile(path)
		}
		return nil
	})
	if err != nil {
		return err
	}
	return filepath.SkipDir
}

// setupRuntimeLinking writes the workspace go.mod so rewritten code can
// import the fieldhook runtime, and tidies it.
func (w *workspace) setupRuntimeLinking() error {
	projectRoot, err := runtime.FindProjectRoot()
	if err != nil {
		// Published mode: the required version is fetched.
		logging.Logger("workspace").Debugf("%v, requiring %s %s", err, runtime.ModulePath, runtime.Version)
		projectRoot = ""
	}

	if err := runtime.WriteModFile(filepath.Join(w.srcDir, "go.mod"), w.goMod, projectRoot); err != nil {
		return err
	}

	if w.goMod != "" {
		goSum := filepath.Join(w.moduleRoot, "go.sum")
		if _, err := os.Stat(goSum); err == nil {
			if err := w.copyFile(goSum); err != nil {
				return err
			}
		}
	}

	tidyCmd := exec.Command("go", "mod", "tidy")
	tidyCmd.Dir = w.srcDir
	tidyCmd.Stdout = os.Stdout
	tidyCmd.Stderr = os.Stderr
	if err := tidyCmd.Run(); err != nil {
		return fmt.Errorf("failed to tidy go.mod: %w", err)
	}
	return nil
}

// translate maps source arguments given relative to workDir to arguments
// for the go command running in the workspace.
//
// .go files become absolute workspace paths; directories and ./...
// patterns become paths relative to the workspace root; import paths are
// passed through.
func (w *workspace) translate(sources []string, workDir string) ([]string, error) {
	targets := make([]string, 0, len(sources))
	for _, src := range sources {
		base, suffix := src, ""
		if isRecursivePattern(src) {
			base = strings.TrimSuffix(strings.TrimSuffix(strings.TrimSuffix(src, "..."), "/"), `\`)
			suffix = "/..."
		}
		if !isFilesystemArg(base) {
			targets = append(targets, src)
			continue
		}

		path := base
		if !filepath.IsAbs(path) {
			path = filepath.Join(workDir, path)
		}
		rel, err := filepath.Rel(w.moduleRoot, path)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return nil, fmt.Errorf("%s is outside module %s", src, w.moduleRoot)
		}

		if strings.HasSuffix(base, ".go") {
			targets = append(targets, filepath.Join(w.srcDir, rel))
			continue
		}
		if rel == "." {
			targets = append(targets, "."+suffix)
		} else {
			targets = append(targets, "./"+filepath.ToSlash(rel)+suffix)
		}
	}
	return targets, nil
}

// isFilesystemArg reports whether a go command argument names a file or
// directory rather than an import path.
func isFilesystemArg(arg string) bool {
	return arg == "" || arg == "." || arg == ".." || filepath.IsAbs(arg) ||
		strings.HasPrefix(arg, "./") || strings.HasPrefix(arg, "../") ||
		strings.HasPrefix(arg, `.\`) || strings.HasPrefix(arg, `..\`) ||
		strings.HasSuffix(arg, ".go")
}

// goCommand prepares a go command running in the workspace with the
// runtime build flags appended to flags.
func (w *workspace) goCommand(verb string, flags, targets []string) *exec.Cmd {
	args := []string{verb}
	args = append(args, flags...)
	args = append(args, runtime.BuildFlags()...)
	args = append(args, targets...)

	cmd := exec.Command("go", args...)
	cmd.Dir = w.srcDir
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd
}

// prepareWorkspace creates a workspace for the module containing workDir,
// mirrors it with rewritten sources and links the runtime.
func prepareWorkspace(ctx context.Context, workDir string, tests bool, out io.Writer) (*workspace, error) {
	ws, err := createWorkspace(workDir)
	if err != nil {
		return nil, err
	}

	rep := newReporter(out, workDir, verbose())
	if err := ws.mirror(ctx, rewriteOptions(settings), tests, rep); err != nil {
		ws.cleanup()
		return nil, fmt.Errorf("failed to rewrite sources: %w", err)
	}
	if verbose() {
		rep.printSummary()
	}

	if err := ws.setupRuntimeLinking(); err != nil {
		ws.cleanup()
		return nil, fmt.Errorf("failed to set up runtime: %w", err)
	}
	return ws, nil
}
