package commands

import (
	"fmt"

	"github.com/dyluth/multitab/internal/printer"
	"github.com/dyluth/multitab/pkg/container"
	"github.com/dyluth/multitab/pkg/statetree"
	jsonpatch "github.com/evanphx/json-patch"
	"github.com/spf13/cobra"
)

var (
	setMerge bool
)

var setCmd = &cobra.Command{
	Use:   "set <selector> <json>",
	Short: "Write a value into the shared state",
	Long: `Join the sync scope, commit one mutation that sets selector to the given
JSON value, and leave. Every watching context receives the change.

With --merge the value is applied as a JSON merge patch (RFC 7386) to the
current value at selector instead of replacing it.

Examples:
  multitab set user.name '"ada"'
  multitab set settings '{"theme":"dark"}' --merge`,
	Args: cobra.ExactArgs(2),
	RunE: runSet,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <selector>",
	Short: "Remove a value from the shared state",
	Long: `Join the sync scope, commit one mutation that deletes selector, and leave.
Deleting an array element shifts the following elements down.`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

func init() {
	setCmd.Flags().BoolVar(&setMerge, "merge", false, "Apply the value as a JSON merge patch")
	rootCmd.AddCommand(setCmd)
	rootCmd.AddCommand(deleteCmd)
}

func runSet(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	selector, raw := args[0], []byte(args[1])

	if _, err := statetree.ParsePath(selector); err != nil {
		return printer.Error("invalid selector", err.Error(), nil)
	}
	value, err := statetree.Decode(raw)
	if err != nil {
		return printer.Error(
			"invalid JSON value",
			err.Error(),
			[]string{"Quote strings for the shell, e.g. '\"ada\"'"},
		)
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

	if setMerge {
		if value, err = mergeAt(host.State(), selector, raw); err != nil {
			return err
		}
	}

	if err := host.Set(selector, value); err != nil {
		return printer.Error("failed to set value", err.Error(), nil)
	}
	printer.Success("Set %s\n", selector)
	return nil
}

// mergeAt applies patch to the value currently stored at selector.
func mergeAt(state statetree.Value, selector string, patch []byte) (statetree.Value, error) {
	current := state.Get(statetree.MustPath(selector))

	doc := []byte("{}")
	if current.Kind() == statetree.KindMap {
		encoded, err := statetree.Encode(current)
		if err != nil {
			return statetree.Value{}, fmt.Errorf("failed to encode current value: %w", err)
		}
		doc = encoded
	}

	merged, err := jsonpatch.MergePatch(doc, patch)
	if err != nil {
		return statetree.Value{}, printer.Error("failed to apply merge patch", err.Error(), nil)
	}
	return statetree.Decode(merged)
}

func runDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	selector := args[0]

	if _, err := statetree.ParsePath(selector); err != nil {
		return printer.Error("invalid selector", err.Error(), nil)
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

	if err := host.Delete(selector); err != nil {
		return printer.Error("failed to delete value", err.Error(), nil)
	}
	printer.Success("Deleted %s\n", selector)
	return nil
}
