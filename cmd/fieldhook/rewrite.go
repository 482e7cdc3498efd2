package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kolkov/fieldhook/cmd/fieldhook/rewrite"
	"github.com/kolkov/fieldhook/cmd/fieldhook/runtime"
)

var rewriteCmd = &cobra.Command{
	Use:   "rewrite [-o dir] [--packages] [--tests] [sources]",
	Short: "Print or write rewritten Go sources",
	Long: `Rewrite inserts field notifications into Go sources without building
them. Sources are .go files, directories or ./... patterns; in package mode
they are package patterns loaded with full type information.

Without -o, rewritten files are printed to stdout. With -o, every processed
file is written below dir at its path relative to the working directory.

Examples:
  fieldhook rewrite box.go
  fieldhook rewrite -o out ./...
  fieldhook rewrite --packages --tests -o out ./...`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get working directory: %w", err)
		}
		flags := cmd.Flags()
		config := &rewriteConfig{
			sources: args,
			workDir: cwd,
			opts:    rewriteOptions(settings),
			verbose: verbose(),
		}
		config.outputDir, _ = flags.GetString("output")
		config.packages, _ = flags.GetBool("packages")
		config.tests, _ = flags.GetBool("tests")

		return runRewrite(cmd.Context(), config, cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

func init() {
	rewriteCmd.Flags().StringP("output", "o", "", "directory to write rewritten files to")
	rewriteCmd.Flags().Bool("packages", false, "load packages with type information")
	rewriteCmd.Flags().Bool("tests", false, "include test files")
	rootCmd.AddCommand(rewriteCmd)
}

// rewriteConfig holds configuration for the rewrite command.
type rewriteConfig struct {
	sources   []string
	workDir   string
	outputDir string
	packages  bool
	tests     bool
	verbose   bool
	opts      rewrite.Options
}

// runRewrite rewrites config's sources. Code goes to out, progress and
// failures to errOut. It fails when any file failed to rewrite.
func runRewrite(ctx context.Context, config *rewriteConfig, out, errOut io.Writer) error {
	sources := config.sources
	if len(sources) == 0 {
		sources = []string{"."}
	}
	rep := newReporter(errOut, config.workDir, config.verbose)

	var results []*rewrite.Result
	var err error
	if config.packages {
		opts := config.opts
		opts.Dir = config.workDir
		opts.Tests = config.tests
		results, err = rewrite.RewritePackages(ctx, opts, sources...)
		if err != nil {
			return err
		}
		for _, r := range results {
			rep.report(r)
		}
	} else {
		results, err = rewriteFiles(ctx, config, sources, rep)
		if err != nil {
			return err
		}
	}

	if config.outputDir != "" {
		if err := writeResults(results, config.workDir, config.outputDir); err != nil {
			return err
		}
	} else {
		printResults(out, results, rep)
	}

	if config.verbose {
		rep.printSummary()
	}
	if rep.failed > 0 {
		return fmt.Errorf("%d files failed to rewrite", rep.failed)
	}
	return nil
}

// rewriteFiles rewrites sources in file mode. Import paths are derived from
// the module containing the working directory.
func rewriteFiles(ctx context.Context, config *rewriteConfig, sources []string, rep *reporter) ([]*rewrite.Result, error) {
	files, err := collectGoFiles(sources, config.workDir, config.tests)
	if err != nil {
		return nil, fmt.Errorf("failed to collect source files: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no Go source files found")
	}

	options := []rewrite.TransformerOption{
		rewrite.WithConcurrency(config.opts.Concurrency),
		rewrite.WithListener(rep.report),
	}
	if goMod := runtime.FindGoMod(config.workDir); goMod != "" {
		if modulePath, err := runtime.ReadModulePath(goMod); err == nil {
			moduleRoot := filepath.Dir(goMod)
			options = append(options, rewrite.WithImportPaths(func(dir string) string {
				return runtime.ImportPath(modulePath, moduleRoot, dir)
			}))
		}
	}

	return rewrite.NewTransformer(config.opts, options...).RewriteFiles(ctx, files)
}

// writeResults writes every result below outputDir at its path relative to
// workDir.
func writeResults(results []*rewrite.Result, workDir, outputDir string) error {
	for _, r := range results {
		rel, err := filepath.Rel(workDir, r.Filename)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return fmt.Errorf("%s is outside %s", r.Filename, workDir)
		}
		dst := filepath.Join(outputDir, rel)
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return fmt.Errorf("failed to create directory for %s: %w", dst, err)
		}
		if err := os.WriteFile(dst, []byte(r.Code), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", dst, err)
		}
	}
	return nil
}

// printResults prints the code of every rewritten file, each preceded by a
// comment naming it.
func printResults(out io.Writer, results []*rewrite.Result, rep *reporter) {
	for _, r := range results {
		if r.Status != rewrite.StatusRewritten {
			continue
		}
		fmt.Fprintf(out, "// fieldhook: %s\n%s", rep.relative(r.Filename), r.Code)
	}
}
