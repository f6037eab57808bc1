package commands

import (
	"fmt"

	"github.com/dyluth/multitab/internal/printer"
	"github.com/dyluth/multitab/pkg/container"
	"github.com/dyluth/multitab/pkg/statetree"
	"github.com/spf13/cobra"
)

var (
	getOutputFormat string
)

var getCmd = &cobra.Command{
	Use:   "get [selector...]",
	Short: "Print the shared state",
	Long: `Join the sync scope as a fresh context and print the state it receives.

Selectors are dotted paths ("user.name", "todos.0") that restrict the
output to those parts of the state.

Examples:
  # Print everything as JSON
  multitab get

  # Print two slices as YAML
  multitab get user settings.theme -o yaml`,
	RunE: runGet,
}

func init() {
	getCmd.Flags().StringVarP(&getOutputFormat, "output", "o", printer.FormatJSON, "Output format (json or yaml)")
	rootCmd.AddCommand(getCmd)
}

func runGet(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if err := validateOutputFormat(getOutputFormat); err != nil {
		return err
	}
	paths, err := statetree.ParsePaths(args)
	if err != nil {
		return printer.Error("invalid selector", err.Error(), []string{"Selectors are dotted paths, e.g. user.name or todos.0"})
	}

	rt, err := openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	host := container.New(statetree.Absent())
	session, err := rt.install(ctx, host)
	if err != nil {
		return err
	}
	defer session.Close()

	state := host.State()
	if len(paths) > 0 {
		state = statetree.Filter(paths, state)
	}
	return printer.State(printer.Out, state, getOutputFormat)
}

func validateOutputFormat(format string) error {
	switch format {
	case printer.FormatJSON, printer.FormatYAML:
		return nil
	default:
		return printer.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", format),
			[]string{"Valid formats: json, yaml"},
		)
	}
}
