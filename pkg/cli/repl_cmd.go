package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"taotie/internal/app"
)

// runREPL wires the app, connects the configured datasets, and runs the
// shell on stdin until it ends.
func runREPL(cmd *cobra.Command, opts *globalOptions) error {
	cfg, user, err := loadSettings(cmd, opts)
	if err != nil {
		return err
	}
	logger := newTextLogger(cmd.ErrOrStderr(), cfg.SlogLevel())

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := app.New(ctx, app.Deps{Cfg: cfg, Logger: logger, Persist: true})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			logger.Warn("close app", "error", cerr)
		}
	}()

	if _, errs := a.ConnectDatasets(ctx, user.datasetSpecs()); len(errs) > 0 {
		for _, e := range errs {
			logger.Warn("connect configured dataset", "error", e)
		}
	}

	history, err := LoadHistory(user.HistoryFile, user.HistorySize)
	if err != nil {
		logger.Warn("history unavailable", "error", err)
		history = NewHistory(user.HistorySize)
	}

	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) { //nolint:gosec
		err = runTerminal(ctx, a.Worker, f, cmd.OutOrStdout(), history, opts.output, user.HeadSize)
		if serr := history.Save(user.HistoryFile); serr != nil {
			logger.Warn("save history", "error", serr)
		}
		return err
	}

	repl := NewREPL(a.Worker, cmd.OutOrStdout(), cmd.ErrOrStderr(), opts.output, user.HeadSize)
	return repl.Run(ctx, newScanReader(cmd.InOrStdin()))
}

func runTerminal(ctx context.Context, worker Submitter, in *os.File, out io.Writer, history *History, format outputFormat, headSize int) error {
	t, restore, err := newTerminal(in, out, history)
	if err != nil {
		return err
	}
	defer restore()

	repl := NewREPL(worker, t, t, format, headSize)
	err = repl.Run(ctx, t)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("repl: %w", err)
	}
	return nil
}
