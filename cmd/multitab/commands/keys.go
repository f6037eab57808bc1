package commands

import (
	"github.com/dyluth/multitab/internal/printer"
	"github.com/dyluth/multitab/pkg/broadcast"
	"github.com/spf13/cobra"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List the namespaces saved in per-namespace mode",
	Long: `Print the namespaces recorded in the shared namespace index, one per
line, along with the storage key each one lives under.`,
	Args: cobra.NoArgs,
	RunE: runKeys,
}

func init() {
	rootCmd.AddCommand(keysCmd)
}

func runKeys(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	rt, err := openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	names, _ := rt.store.ListNamespaces(ctx)
	if len(names) == 0 {
		printer.Info("No namespaces saved (index key %s is empty)\n", broadcast.IndexKey)
		return nil
	}
	for _, name := range names {
		printer.Info("%s\t%s\n", name, broadcast.NamespaceKey(name))
	}
	return nil
}
