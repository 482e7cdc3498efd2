package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"
)

var testCmd = &cobra.Command{
	Use:   "test [test flags] [packages]",
	Short: "Test Go packages with field notifications",
	Long: `Test rewrites the module containing the working directory, test files
included, and runs 'go test' on the rewritten copy. It accepts the flags of
'go test' and forwards its exit code.

Examples:
  fieldhook test ./...
  fieldhook test -v ./internal/...
  fieldhook test -run=TestMyFunction ./pkg/mypackage
  fieldhook test -cover -coverprofile=coverage.out ./...`,
	DisableFlagParsing: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if wantsHelp(args) {
			return cmd.Help()
		}
		config, err := parseTestArgs(args)
		if err != nil {
			return err
		}
		if code := runTests(cmd.Context(), config); code != 0 {
			return exitStatus(code)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(testCmd)
}

// testConfig holds configuration for the test command.
type testConfig struct {
	// Package patterns to test (e.g., "./...", "./internal/...")
	packages []string

	// Test flags to pass to go test (-v, -run, -bench, etc.)
	testFlags []string

	// Working directory
	workDir string

	// Verbose output flag (-v)
	verbose bool
}

// parseTestArgs parses command-line arguments for 'fieldhook test'.
//
// The 'go test' command format is:
//
//	go test [build/test flags] [packages] [test binary flags]
func parseTestArgs(args []string) (*testConfig, error) {
	config := &testConfig{
		packages:  []string{},
		testFlags: []string{},
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	config.workDir = cwd

	for i := 0; i < len(args); i++ {
		arg := args[i]

		// -v is ours and go test's
		if arg == "-v" {
			config.verbose = true
			config.testFlags = append(config.testFlags, arg)
			continue
		}

		if strings.HasPrefix(arg, "-") {
			config.testFlags = append(config.testFlags, arg)
			if testFlagNeedsValue(arg) && i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				i++
				config.testFlags = append(config.testFlags, args[i])
			}
			continue
		}

		config.packages = append(config.packages, arg)
	}

	if len(config.packages) == 0 {
		config.packages = []string{"."}
	}

	return config, nil
}

// testFlagNeedsValue returns true if the test flag expects a following value.
func testFlagNeedsValue(flag string) bool {
	// Already has = format (e.g., -run=TestFoo)
	if strings.Contains(flag, "=") {
		return false
	}

	valueFlags := []string{
		"-run", "-skip", "-bench", "-benchtime", "-blockprofile", "-blockprofilerate",
		"-coverprofile", "-covermode", "-coverpkg", "-count", "-cpu", "-cpuprofile",
		"-memprofile", "-memprofilerate", "-mutexprofile", "-mutexprofilefraction",
		"-outputdir", "-parallel", "-timeout", "-trace", "-shuffle",
		// Build flags that may appear
		"-ldflags", "-gcflags", "-tags", "-mod", "-modfile",
	}

	for _, vf := range valueFlags {
		if flag == vf {
			return true
		}
	}

	return false
}

// runTests rewrites the module, test files included, and runs 'go test' in
// the workspace. It returns the exit code of go test.
func runTests(ctx context.Context, config *testConfig) int {
	if config.verbose {
		verbosity++
		configureLogging()
	}

	ws, err := prepareWorkspace(ctx, config.workDir, true, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer ws.cleanup()

	targets, err := ws.translate(config.packages, config.workDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if err := ws.goCommand("test", config.testFlags, targets).Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode()
		}
		fmt.Fprintf(os.Stderr, "Error executing tests: %v\n", err)
		return 1
	}

	return 0
}
