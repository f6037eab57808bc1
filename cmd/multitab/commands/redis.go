package commands

import (
	"errors"
	"fmt"

	"github.com/dyluth/multitab/internal/config"
	dockerpkg "github.com/dyluth/multitab/internal/docker"
	"github.com/dyluth/multitab/internal/instance"
	"github.com/dyluth/multitab/internal/printer"
	"github.com/spf13/cobra"
)

var (
	redisImage string
)

var redisCmd = &cobra.Command{
	Use:   "redis",
	Short: "Manage a local dev Redis for a scope",
	Long: `Start, stop and inspect a Docker-hosted Redis dedicated to the configured
scope. Each scope gets its own container on the first free port from 6379.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var redisUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Start the scope's Redis container",
	Args:  cobra.NoArgs,
	RunE:  runRedisUp,
}

var redisDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Stop and remove the scope's Redis container",
	Args:  cobra.NoArgs,
	RunE:  runRedisDown,
}

var redisStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the scope's Redis container",
	Args:  cobra.NoArgs,
	RunE:  runRedisStatus,
}

func init() {
	redisUpCmd.Flags().StringVar(&redisImage, "image", instance.DefaultRedisImage, "Redis image to run")
	redisCmd.AddCommand(redisUpCmd, redisDownCmd, redisStatusCmd)
	rootCmd.AddCommand(redisCmd)
}

// redisScope resolves the scope the redis commands act on.
func redisScope() (string, error) {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return "", printer.Error("invalid configuration", err.Error(), nil)
	}
	return cfg.Scope, nil
}

func dockerUnavailable(err error) error {
	return printer.Error(
		"Docker is not available",
		err.Error(),
		[]string{"Start Docker, or run Redis yourself and set " + config.EnvRedisURL},
	)
}

func runRedisUp(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	scope, err := redisScope()
	if err != nil {
		return err
	}

	cli, err := dockerpkg.NewClient(ctx)
	if err != nil {
		return dockerUnavailable(err)
	}
	defer cli.Close()

	printer.Step("Starting Redis for scope %s...\n", scope)
	info, err := instance.StartRedis(ctx, cli, scope, redisImage)
	if errors.Is(err, instance.ErrRedisExists) {
		return printer.ErrorWithContext(
			"Redis already exists",
			fmt.Sprintf("Scope '%s' already has a Redis container.", scope),
			map[string]string{"container": info.Container, "status": string(info.Status), "url": info.URL},
			[]string{"Remove it first:\n  multitab redis down"},
		)
	}
	if err != nil {
		return fmt.Errorf("failed to start Redis: %w", err)
	}

	printer.Success("Redis is running at %s\n", info.URL)
	printer.Info("\nPoint multitab at it:\n  export %s=%s\n", config.EnvRedisURL, info.URL)
	return nil
}

func runRedisDown(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	scope, err := redisScope()
	if err != nil {
		return err
	}

	cli, err := dockerpkg.NewClient(ctx)
	if err != nil {
		return dockerUnavailable(err)
	}
	defer cli.Close()

	removed, err := instance.StopRedis(ctx, cli, scope)
	if err != nil {
		return fmt.Errorf("failed to stop Redis: %w", err)
	}
	if removed == 0 {
		printer.Info("No Redis container for scope %s\n", scope)
		return nil
	}

	printer.Success("Removed Redis for scope %s\n", scope)
	return nil
}

func runRedisStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	scope, err := redisScope()
	if err != nil {
		return err
	}

	cli, err := dockerpkg.NewClient(ctx)
	if err != nil {
		return dockerUnavailable(err)
	}
	defer cli.Close()

	info, err := instance.FindRedis(ctx, cli, scope)
	if err != nil {
		return err
	}
	if info == nil {
		printer.Info("No Redis container for scope %s\n", scope)
		printer.Info("\nStart one:\n  multitab redis up\n")
		return nil
	}

	printer.Info("Scope:     %s\n", info.Scope)
	printer.Info("Container: %s\n", info.Container)
	printer.Info("Status:    %s\n", info.Status)
	if info.URL != "" {
		printer.Info("URL:       %s\n", info.URL)
	}
	return nil
}
