package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dyluth/multitab/internal/config"
	"github.com/dyluth/multitab/internal/hooks"
	"github.com/dyluth/multitab/internal/logging"
	"github.com/dyluth/multitab/internal/printer"
	"github.com/dyluth/multitab/pkg/broadcast"
	"github.com/dyluth/multitab/pkg/multitab"
	"github.com/dyluth/multitab/pkg/storage"
	"github.com/dyluth/multitab/pkg/storage/redisstore"
	"github.com/dyluth/multitab/pkg/storage/sqlitestore"
)

// runtime is everything a command needs to talk to the shared store.
type runtime struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *broadcast.Store

	// closed in reverse order
	closers []func() error
}

// openRuntime loads the config, builds the logger and connects to the
// configured backend.
func openRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return nil, printer.ErrorWithContext(
			"invalid configuration",
			err.Error(),
			map[string]string{"config": configPath},
			[]string{"Regenerate the default configuration:\n  multitab init --force"},
		)
	}

	logger, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	rt := &runtime{cfg: cfg, logger: logger}
	backend, err := rt.openBackend(ctx)
	if err != nil {
		rt.Close()
		return nil, err
	}

	rt.store = broadcast.NewStore(backend, broadcast.WithLogger(logger))
	rt.closers = append(rt.closers, rt.store.Close)
	return rt, nil
}

func (rt *runtime) openBackend(ctx context.Context) (storage.Backend, error) {
	switch rt.cfg.Backend.Driver {
	case config.DriverSQLite:
		medium, persister, err := sqlitestore.OpenMedium(ctx, rt.cfg.Backend.Path)
		if err != nil {
			return nil, printer.ErrorWithContext(
				"failed to open SQLite store",
				err.Error(),
				map[string]string{"path": rt.cfg.Backend.Path},
				[]string{"Check that the directory exists and is writable"},
			)
		}
		rt.closers = append(rt.closers, persister.Close)
		backend := medium.Attach()
		rt.closers = append(rt.closers, backend.Close)
		return backend, nil

	default:
		opts, err := rt.cfg.Backend.RedisOptions()
		if err != nil {
			return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		backend, err := redisstore.New(opts, rt.cfg.Scope)
		if err != nil {
			return nil, fmt.Errorf("failed to create Redis backend: %w", err)
		}
		rt.closers = append(rt.closers, backend.Close)

		if err := backend.Ping(ctx); err != nil {
			return nil, printer.ErrorWithContext(
				"Redis connection failed",
				fmt.Sprintf("Could not connect to Redis at %s", rt.cfg.Backend.RedisURL),
				map[string]string{"scope": rt.cfg.Scope},
				[]string{
					"Start a dev Redis for this scope:\n  multitab redis up",
					fmt.Sprintf("Or point %s at a running server", config.EnvRedisURL),
				},
			)
		}
		return backend, nil
	}
}

// plugin builds a multitab.Plugin from the sync and hooks sections.
func (rt *runtime) plugin(ctx context.Context) (*multitab.Plugin, error) {
	opts := rt.cfg.Options()
	opts.Logger = rt.logger

	var err error
	if opts.OnBeforeSave, err = hooks.Compile(rt.cfg.Hooks.BeforeSave, rt.logger); err != nil {
		return nil, printer.Error("invalid hooks.before_save", err.Error(), nil)
	}
	if opts.OnBeforeReplace, err = hooks.Compile(rt.cfg.Hooks.BeforeReplace, rt.logger); err != nil {
		return nil, printer.Error("invalid hooks.before_replace", err.Error(), nil)
	}

	p, err := multitab.New(ctx, rt.store, opts)
	if errors.Is(err, multitab.ErrStorageUnavailable) {
		return nil, printer.ErrorWithContext(
			"storage is not available",
			"The shared store rejected a probe write.",
			map[string]string{"driver": rt.cfg.Backend.Driver, "scope": rt.cfg.Scope},
			[]string{"Check the store:\n  multitab check"},
		)
	}
	if err != nil {
		return nil, printer.Error("invalid sync configuration", err.Error(), nil)
	}
	return p, nil
}

// install builds the plugin and installs it into host.
func (rt *runtime) install(ctx context.Context, host multitab.Container) (*multitab.Session, error) {
	p, err := rt.plugin(ctx)
	if err != nil {
		return nil, err
	}
	session, err := p.Install(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("failed to start sync: %w", err)
	}
	return session, nil
}

// Close releases everything openRuntime acquired.
func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			rt.logger.Debug("close failed", "error", err)
		}
	}
	rt.closers = nil
}
