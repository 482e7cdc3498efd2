package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kolkov/fieldhook/cmd/fieldhook/rewrite"
	"github.com/kolkov/fieldhook/internal/config"
	"github.com/kolkov/fieldhook/internal/logging"
)

// settings is the configuration in effect, loaded before every command.
var settings = config.Default()

// verbosity counts -v flags given to commands that parse their own flags.
var verbosity int

var rootCmd = &cobra.Command{
	Use:   "fieldhook",
	Short: "Observe field writes on Go types",
	Long: `fieldhook rewrites Go sources so that every write to a field of an
eligible type notifies the instance's interceptor. A type is eligible when
it declares the reserved interceptor field or is listed in force_types.

Configuration is read from fieldhook.toml (searched upwards from the working
directory), then FIELDHOOK_* environment variables and .env, then flags.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadSettings,
}

func init() {
	addSettingsFlags(rootCmd)
}

// addSettingsFlags registers the flags overriding fieldhook.toml.
func addSettingsFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.String("field", "", "reserved interceptor field name")
	flags.String("method", "", "notification method name")
	flags.StringSlice("force", nil, "types rewritten without the reserved field")
	flags.StringSlice("exclude", nil, "import path prefixes never rewritten")
	flags.IntP("concurrency", "j", 0, "files rewritten at once")
	flags.CountVarP(&verbosity, "verbose", "v", "verbose output (repeat for debug logs)")
}

// exitStatus is returned by commands that forward a child process's exit
// code. It is not printed.
type exitStatus int

func (e exitStatus) Error() string {
	return fmt.Sprintf("exit status %d", int(e))
}

// execute runs the root command and returns the process exit code.
func execute() int {
	err := rootCmd.Execute()
	if err == nil {
		return 0
	}
	var status exitStatus
	if errors.As(err, &status) {
		return int(status)
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return 1
}

// loadSettings loads fieldhook.toml and applies flag overrides.
func loadSettings(cmd *cobra.Command, _ []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}
	cfg, err := config.FindAndLoad(cwd)
	if err != nil {
		return err
	}
	if err := applyFlags(cfg, cmd); err != nil {
		return err
	}
	settings = cfg
	configureLogging()
	return nil
}

// applyFlags overrides cfg with the flags set on the command line.
func applyFlags(cfg *config.Config, cmd *cobra.Command) error {
	flags := cmd.Flags()
	if flags.Changed("field") {
		cfg.Field, _ = flags.GetString("field")
	}
	if flags.Changed("method") {
		cfg.Method, _ = flags.GetString("method")
	}
	if flags.Changed("force") {
		cfg.ForceTypes, _ = flags.GetStringSlice("force")
	}
	if flags.Changed("exclude") {
		cfg.Exclude, _ = flags.GetStringSlice("exclude")
	}
	if flags.Changed("concurrency") {
		cfg.Concurrency, _ = flags.GetInt("concurrency")
	}
	return cfg.Validate()
}

func configureLogging() {
	logging.Configure(verbosity)
}

// verbose reports whether per-file reporting is enabled.
func verbose() bool {
	return verbosity > 0 || settings.Verbose
}

// rewriteOptions converts the settings in effect to rewrite options. The
// fieldhook module itself is always excluded.
func rewriteOptions(cfg *config.Config) rewrite.Options {
	exclude := append([]string{}, rewrite.DefaultExclude...)
	exclude = append(exclude, cfg.Exclude...)
	return rewrite.Options{
		FieldName:   cfg.Field,
		MethodName:  cfg.Method,
		ForceTypes:  cfg.ForceTypes,
		Exclude:     exclude,
		Concurrency: cfg.Concurrency,
	}
}
