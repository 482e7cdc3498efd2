package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	goruntime "runtime"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [build flags] file.go... [arguments...]",
	Short: "Run Go program with field notifications",
	Long: `Run rewrites the module containing the working directory, builds the
given files into a temporary binary and executes it with the remaining
arguments. The exit code of the program is returned.

Examples:
  fieldhook run main.go
  fieldhook run main.go arg1 arg2
  fieldhook run main.go --program-flag=value`,
	DisableFlagParsing: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) > 0 && wantsHelp(args[:1]) {
			return cmd.Help()
		}
		config, programArgs, err := parseRunArgs(args)
		if err != nil {
			return err
		}

		tempBinary, cleanup, err := buildTemporary(cmd.Context(), config)
		if err != nil {
			return err
		}
		defer cleanup()

		if code := executeBinary(tempBinary, programArgs); code != 0 {
			return exitStatus(code)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

// parseRunArgs separates source files from program arguments.
//
// The 'go run' command format is:
//
//	go run [build flags] [-exec xprog] package [arguments...]
//
// We support:
//
//	fieldhook run file.go [arguments...]
//	fieldhook run file1.go file2.go [arguments...]
//
// Build flags (if any) come before source files.
// Everything after source files are program arguments.
func parseRunArgs(args []string) (*buildConfig, []string, error) {
	if len(args) == 0 {
		return nil, nil, fmt.Errorf("no source files specified")
	}

	var sourceFiles []string
	var programArgs []string
	var buildFlags []string
	verbose := false

	sawGoFile := false
	inProgramArgs := false

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if inProgramArgs {
			programArgs = append(programArgs, arg)
			continue
		}

		if !sawGoFile && arg == "-v" {
			verbose = true
			continue
		}

		// Build flags come before source files
		if !sawGoFile && needsValue(arg) {
			buildFlags = append(buildFlags, arg)
			if i+1 < len(args) {
				i++
				buildFlags = append(buildFlags, args[i])
			}
			continue
		}

		if filepath.Ext(arg) == ".go" {
			sourceFiles = append(sourceFiles, arg)
			sawGoFile = true
			continue
		}

		// Not a .go file and we've seen .go files → program args start here
		if sawGoFile {
			inProgramArgs = true
			programArgs = append(programArgs, arg)
			continue
		}

		buildFlags = append(buildFlags, arg)
	}

	if len(sourceFiles) == 0 {
		return nil, nil, fmt.Errorf("no Go source files specified")
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get working directory: %w", err)
	}

	config := &buildConfig{
		sourceFiles: sourceFiles,
		buildFlags:  buildFlags,
		workDir:     cwd,
		verbose:     verbose,
	}

	return config, programArgs, nil
}

// buildTemporary builds the rewritten code to a temporary binary.
//
// Returns:
//   - Path to temporary binary
//   - Cleanup function removing it
//   - Error if build fails
func buildTemporary(ctx context.Context, config *buildConfig) (string, func(), error) {
	dir, err := os.MkdirTemp("", "fieldhook-run-*")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	cleanup := func() { _ = os.RemoveAll(dir) }

	name := "main"
	if goruntime.GOOS == "windows" {
		name += ".exe"
	}
	config.outputFile = filepath.Join(dir, name)

	if err := runBuild(ctx, config); err != nil {
		cleanup()
		return "", nil, err
	}
	return config.outputFile, cleanup, nil
}

// executeBinary runs the rewritten binary with given arguments.
//
// This forwards stdin/stdout/stderr to the child process and
// returns the process exit code.
func executeBinary(binaryPath string, args []string) int {
	cmd := exec.Command(binaryPath, args...)

	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode()
		}
		// Other error (failed to start, etc.)
		fmt.Fprintf(os.Stderr, "Error executing binary: %v\n", err)
		return 1
	}

	return 0
}
