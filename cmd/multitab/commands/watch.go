package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dyluth/multitab/internal/config"
	"github.com/dyluth/multitab/internal/printer"
	"github.com/dyluth/multitab/pkg/container"
	"github.com/dyluth/multitab/pkg/statetree"
	"github.com/spf13/cobra"
)

var (
	watchDiffMode     string
	watchOutputFormat string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream changes made by other contexts",
	Long: `Join the sync scope, print the current state, then print a diff every
time another context's save is merged into it. Runs until interrupted.

Diff modes:
  patch - JSON merge patch (RFC 7386) from the previous state to the new one
  text  - line diff of the indented JSON

Examples:
  # Follow changes as merge patches
  multitab watch

  # Follow changes as a coloured line diff
  multitab watch --diff text`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchDiffMode, "diff", printer.DiffPatch, "Diff mode (patch or text)")
	watchCmd.Flags().StringVarP(&watchOutputFormat, "output", "o", printer.FormatJSON, "Format of the initial state (json or yaml)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	switch watchDiffMode {
	case printer.DiffPatch, printer.DiffText:
	default:
		return printer.Error(
			"invalid diff mode",
			fmt.Sprintf("Unknown mode: %s", watchDiffMode),
			[]string{"Valid modes: patch, text"},
		)
	}
	if err := validateOutputFormat(watchOutputFormat); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	if rt.cfg.Backend.Driver == config.DriverSQLite {
		printer.Warning("The sqlite backend only delivers changes made inside this process\n")
	}

	host := newObserver(container.New(statetree.Absent()), printer.Out, watchDiffMode, rt.logger.Warn)
	session, err := rt.install(ctx, host)
	if err != nil {
		return err
	}
	defer session.Close()

	printer.Step("Watching scope %s (%s)\n", rt.cfg.Scope, session.Mode())
	if err := printer.State(printer.Out, host.State(), watchOutputFormat); err != nil {
		return err
	}
	host.start()

	<-ctx.Done()
	if ctx.Err() == context.Canceled {
		printer.Info("\nStopped watching\n")
	}
	return nil
}

// observer is a container that prints a diff whenever its state is replaced.
// Replaces before start are applied silently.
type observer struct {
	*container.Store

	mu      sync.Mutex
	w       io.Writer
	mode    string
	started bool
	warn    func(msg string, args ...any)
}

func newObserver(store *container.Store, w io.Writer, mode string, warn func(string, ...any)) *observer {
	return &observer{Store: store, w: w, mode: mode, warn: warn}
}

func (o *observer) start() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started = true
}

// ReplaceState applies state and reports the change.
func (o *observer) ReplaceState(state statetree.Value) {
	before := o.Store.State()
	o.Store.ReplaceState(state)
	after := o.Store.State()

	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.started || before.Equal(after) {
		return
	}

	fmt.Fprintf(o.w, "[%s] remote change\n", time.Now().Format("15:04:05"))
	if err := printer.Diff(o.w, before, after, o.mode); err != nil {
		o.warn("failed to print diff", "error", err)
	}
}
