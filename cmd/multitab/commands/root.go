package commands

import (
	"fmt"

	"github.com/dyluth/multitab/internal/config"
	"github.com/spf13/cobra"
)

var (
	version string
	commit  string
	date    string

	configPath string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "multitab",
	Short: "multitab - keep state in sync across execution contexts",
	Long: `multitab shares a JSON state between execution contexts through a
common key-value store (Redis or a local SQLite file).

Every context saves its state after each mutation and merges the saves of
the other contexts back in, optionally restricted to a set of dotted paths.
The commands below read, write and watch that shared state.`,
	Version: version,
	// Unknown root flags must not be silently accepted
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
	FParseErrWhitelist: cobra.FParseErrWhitelist{},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	// Errors are printed by the printer package
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "f", config.DefaultFile, "Path to multitab.yml")
}
