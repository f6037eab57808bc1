package commands

import (
	"github.com/dyluth/multitab/internal/config"
	"github.com/dyluth/multitab/internal/printer"
	"github.com/dyluth/multitab/pkg/multitab"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the shared store is reachable and writable",
	Long: `Load the configuration, connect to the backend and perform the probe
write every context performs before it starts syncing.`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	rt, err := openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	details := map[string]string{
		"driver": rt.cfg.Backend.Driver,
		"scope":  rt.cfg.Scope,
	}
	if rt.cfg.Backend.Driver == config.DriverSQLite {
		details["path"] = rt.cfg.Backend.Path
	} else {
		details["redis_url"] = rt.cfg.Backend.RedisURL
	}

	if !rt.store.Available(ctx) {
		return printer.ErrorWithContext(
			"storage is not available",
			"The probe write was rejected by the backend.",
			details,
			[]string{"Check the backend's logs and permissions"},
		)
	}

	p, err := rt.plugin(ctx)
	if err != nil {
		return err
	}

	printer.Success("Store is available\n")
	printer.Info("  driver: %s\n", details["driver"])
	printer.Info("  scope:  %s\n", rt.cfg.Scope)
	printer.Info("  mode:   %s\n", p.Mode())
	if p.Mode() == multitab.ModeSingleBlob {
		printer.Info("  key:    %s\n", rt.cfg.Sync.Key)
	}
	return nil
}
