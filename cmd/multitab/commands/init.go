package commands

import (
	"fmt"

	"github.com/dyluth/multitab/internal/scaffold"
	"github.com/spf13/cobra"
)

var (
	forceInit bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default multitab.yml",
	Long: `Create a commented multitab.yml in the current directory.

The generated file syncs the whole state through Redis at
redis://localhost:6379 under the "default" scope.

Use --force to overwrite an existing multitab.yml.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	// No -f shorthand: it belongs to the global --config flag
	initCmd.Flags().BoolVar(&forceInit, "force", false, "Overwrite an existing multitab.yml")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	if err := scaffold.Initialize(".", forceInit); err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	scaffold.PrintSuccess()
	return nil
}
