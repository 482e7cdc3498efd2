package main

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kolkov/fieldhook/cmd/fieldhook/rewrite"
	"github.com/kolkov/fieldhook/hook"
	"github.com/kolkov/fieldhook/internal/config"
)

// flagCommand returns a command with the settings flags parsed from args.
func flagCommand(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "x"}
	addSettingsFlags(cmd)
	require.NoError(t, cmd.ParseFlags(args))
	return cmd
}

func TestApplyFlags(t *testing.T) {
	cfg := config.Default()
	cfg.ForceTypes = []string{"FromFile"}

	cmd := flagCommand(t, "--field", "obs", "--method", "Changed", "--exclude", "a/b,c", "-j", "3")
	require.NoError(t, applyFlags(cfg, cmd))

	assert.Equal(t, "obs", cfg.Field)
	assert.Equal(t, "Changed", cfg.Method)
	assert.Equal(t, []string{"FromFile"}, cfg.ForceTypes)
	assert.Equal(t, []string{"a/b", "c"}, cfg.Exclude)
	assert.Equal(t, 3, cfg.Concurrency)
}

func TestApplyFlags_Invalid(t *testing.T) {
	cmd := flagCommand(t, "--field", "not an identifier")
	assert.Error(t, applyFlags(config.Default(), cmd))
}

func TestRewriteOptions(t *testing.T) {
	cfg := config.Default()
	cfg.Field = "obs"
	cfg.ForceTypes = []string{"Box"}
	cfg.Exclude = []string{"example.com/gen"}
	cfg.Concurrency = 2

	opts := rewriteOptions(cfg)
	assert.Equal(t, "obs", opts.FieldName)
	assert.Equal(t, "SetField", opts.MethodName)
	assert.Equal(t, []string{"Box"}, opts.ForceTypes)
	assert.Equal(t, 2, opts.Concurrency)
	assert.True(t, opts.Excluded("example.com/gen/x"))
	assert.True(t, opts.Excluded(rewrite.ModulePath+"/hook"))
	assert.False(t, opts.Excluded("example.com/app"))
}

func TestExitStatus(t *testing.T) {
	err := fmt.Errorf("run: %w", exitStatus(3))
	var status exitStatus
	require.ErrorAs(t, err, &status)
	assert.Equal(t, 3, int(status))
	assert.Equal(t, "exit status 3", status.Error())
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	defer func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	}()

	assert.Equal(t, 0, execute())
	assert.Contains(t, out.String(), "fieldhook version "+hook.Version)
}
