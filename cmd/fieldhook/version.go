package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kolkov/fieldhook/cmd/fieldhook/runtime"
	"github.com/kolkov/fieldhook/hook"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, _ []string) {
		out := cmd.OutOrStdout()
		info := hook.GetInfo()
		fmt.Fprintf(out, "fieldhook version %s\n", info.Version)
		if verbose() {
			fmt.Fprintf(out, "  runtime:  %s\n", runtime.RuntimePackagePath())
			fmt.Fprintf(out, "  field:    %s\n", settings.Field)
			fmt.Fprintf(out, "  method:   %s\n", settings.Method)
			if settings.Dir != "" {
				fmt.Fprintf(out, "  config:   %s\n", settings.Dir)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.Version = hook.Version
}
