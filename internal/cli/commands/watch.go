package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/tflog/internal/watcher"
	"github.com/ccollicutt/tflog/pkg/analyzer"
	"github.com/ccollicutt/tflog/pkg/output"
	"github.com/ccollicutt/tflog/pkg/parser"
)

// DefaultDebounce is how long a file must stay quiet before it is re-analyzed.
const DefaultDebounce = 500 * time.Millisecond

// WatchOptions holds command-line options for the watch command.
type WatchOptions struct {
	Debounce time.Duration
	NoColor  bool
}

// NewWatchCommand creates the watch command.
func NewWatchCommand() *cobra.Command {
	opts := &WatchOptions{}

	cmd := &cobra.Command{
		Use:   "watch [log-file|glob]...",
		Short: "Re-analyze Terraform logs as they are written",
		Long: `Watch Terraform JSON logs and print a one-line summary each time a
file changes. Configured webhooks fire after every re-analysis, subject
to their trigger.

With no arguments the log_sources from the config file are watched.
Files are resolved once at startup. Stop with Ctrl-C.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, cmd, args, opts)
		},
	}

	cmd.Flags().DurationVar(&opts.Debounce, "debounce", DefaultDebounce, "Quiet period before a changed file is re-analyzed")
	cmd.Flags().BoolVar(&opts.NoColor, "no-color", false, "Disable colored output")

	return cmd
}

func runWatch(ctx context.Context, cmd *cobra.Command, args []string, opts *WatchOptions) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	patterns := args
	if len(patterns) == 0 {
		patterns = cfg.LogSources
	}
	if len(patterns) == 0 {
		return fmt.Errorf("no log files given (pass files or set log_sources in the config)")
	}

	w, err := watcher.New(patterns)
	if err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}
	if len(w.Paths()) == 0 {
		_ = w.Close()
		return fmt.Errorf("none of the log files could be watched")
	}

	formatter, err := output.ForName("text", output.FormatOptions{Quiet: true, NoColor: opts.NoColor})
	if err != nil {
		_ = w.Close()
		return err
	}

	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()
	a := analyzer.New(analyzer.WithTimeline(cfg.Timeline))

	fmt.Fprintf(out, "Watching %d file(s) (debounce %s)\n", len(w.Paths()), opts.Debounce)

	go w.Start(ctx)

	for path := range watcher.Debounce(ctx, w.Events, opts.Debounce) {
		result, err := a.Analyze(ctx, parser.NewFileSource(path))
		if err != nil {
			fmt.Fprintf(errOut, "Error: %v\n", err)
			continue
		}

		report := output.NewReport(result)
		if err := formatter.Format(ctx, report, out); err != nil {
			return fmt.Errorf("formatting output: %w", err)
		}
		sendWebhooks(ctx, cfg.Webhooks, report, errOut)

		// Editors and log rotation replace files, which drops the watch
		if err := w.ReWatch(path); err != nil {
			fmt.Fprintf(errOut, "Warning: cannot re-watch %s: %v\n", path, err)
		}
	}

	return nil
}
