package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

var buildCmd = &cobra.Command{
	Use:   "build [-o output] [build flags] [sources]",
	Short: "Build Go program with field notifications",
	Long: `Build rewrites the module containing the working directory and runs
'go build' on the rewritten copy. It accepts the flags of 'go build'.

Flow:
  1. Parse arguments (sources + go build flags)
  2. Create temporary workspace
  3. Rewrite the module's sources into the workspace
  4. Set up runtime linking (workspace go.mod)
  5. Call 'go build' on the rewritten code
  6. Clean up the workspace

Examples:
  fieldhook build main.go
  fieldhook build -o myapp main.go helper.go
  fieldhook build -ldflags="-s -w" .`,
	DisableFlagParsing: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if wantsHelp(args) {
			return cmd.Help()
		}
		config, err := parseBuildArgs(args)
		if err != nil {
			return err
		}
		if err := runBuild(cmd.Context(), config); err != nil {
			return err
		}
		if config.outputFile != "" {
			fmt.Printf("Built successfully: %s\n", config.outputFile)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(buildCmd)
}

// buildConfig holds configuration for the build command.
type buildConfig struct {
	// Sources to build (.go files, directories or patterns)
	sourceFiles []string

	// Output binary name (from -o flag)
	outputFile string

	// Additional go build flags
	buildFlags []string

	// Working directory for build
	workDir string

	// Verbose output flag (-v)
	verbose bool
}

// parseBuildArgs parses command-line arguments for 'fieldhook build'.
//
// It separates:
//   - Sources (.go files, directories or patterns)
//   - Output file (-o flag)
//   - Go build flags (everything else)
func parseBuildArgs(args []string) (*buildConfig, error) {
	config := &buildConfig{
		sourceFiles: []string{},
		buildFlags:  []string{},
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	config.workDir = cwd

	expectingValue := false
	for i := 0; i < len(args); i++ {
		arg := args[i]

		// A flag value, even if it starts with -
		// Example: -ldflags "-s -w"
		if expectingValue {
			config.buildFlags = append(config.buildFlags, arg)
			expectingValue = false
			continue
		}

		if arg == "-o" {
			if i+1 >= len(args) {
				return nil, fmt.Errorf("-o flag requires an argument")
			}
			i++
			config.outputFile = args[i]
			continue
		}

		if strings.HasPrefix(arg, "-o=") {
			config.outputFile = strings.TrimPrefix(arg, "-o=")
			continue
		}

		if arg == "-v" {
			config.verbose = true
			continue
		}

		if strings.HasPrefix(arg, "-") {
			config.buildFlags = append(config.buildFlags, arg)
			expectingValue = needsValue(arg)
			continue
		}

		config.sourceFiles = append(config.sourceFiles, arg)
	}

	if expectingValue {
		return nil, fmt.Errorf("%s flag requires an argument", config.buildFlags[len(config.buildFlags)-1])
	}

	// Default: build current directory if no sources specified
	if len(config.sourceFiles) == 0 {
		config.sourceFiles = []string{"."}
	}

	return config, nil
}

// needsValue returns true if the flag expects a following value.
func needsValue(flag string) bool {
	valueFlags := []string{
		"-ldflags", "-gcflags", "-asmflags", "-gccgoflags",
		"-tags", "-installsuffix", "-buildmode", "-mod",
		"-modfile", "-overlay", "-pkgdir", "-toolexec",
		"-p", "-pgo", "-covermode", "-coverpkg",
	}

	for _, vf := range valueFlags {
		// Already has = format (e.g., -ldflags=-s)
		if strings.HasPrefix(flag, vf+"=") {
			return false
		}
		if flag == vf {
			return true
		}
	}

	return false
}

// wantsHelp reports whether a command parsing its own flags was asked for
// help.
func wantsHelp(args []string) bool {
	for _, arg := range args {
		if arg == "-h" || arg == "--help" {
			return true
		}
	}
	return false
}

// runBuild rewrites the module and builds config's sources in a workspace.
func runBuild(ctx context.Context, config *buildConfig) error {
	if config.verbose {
		verbosity++
		configureLogging()
	}

	ws, err := prepareWorkspace(ctx, config.workDir, false, os.Stdout)
	if err != nil {
		return err
	}
	defer ws.cleanup()

	targets, err := ws.translate(config.sourceFiles, config.workDir)
	if err != nil {
		return err
	}

	var flags []string
	if config.outputFile != "" {
		outputPath := config.outputFile
		if !filepath.IsAbs(outputPath) {
			outputPath = filepath.Join(config.workDir, outputPath)
		}
		flags = append(flags, "-o", outputPath)
	}
	flags = append(flags, config.buildFlags...)

	if err := ws.goCommand("build", flags, targets).Run(); err != nil {
		return fmt.Errorf("build failed: %w", err)
	}
	return nil
}
