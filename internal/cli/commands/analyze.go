package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/tflog/pkg/analyzer"
	"github.com/ccollicutt/tflog/pkg/config"
	"github.com/ccollicutt/tflog/pkg/output"
	"github.com/ccollicutt/tflog/pkg/parser"
	"github.com/ccollicutt/tflog/pkg/webhook"
)

// ExitCode is set by commands to indicate the result
var ExitCode = 0

// stdinArg reads the log from standard input.
const stdinArg = "-"

// AnalyzeOptions holds command-line options for the analyze command.
type AnalyzeOptions struct {
	Output   string
	Verbose  bool
	Quiet    bool
	NoColor  bool
	Timeline bool

	// Record filters
	RequestID string
	Resource  string
	Grep      string
	Since     string
	Until     string

	// Webhook options
	WebhookURL     string
	WebhookToken   string
	WebhookTrigger string
}

// NewAnalyzeCommand creates the analyze command.
func NewAnalyzeCommand() *cobra.Command {
	opts := &AnalyzeOptions{}

	cmd := &cobra.Command{
		Use:   "analyze [log-file|glob|-]...",
		Short: "Analyze Terraform JSON logs",
		Long: `Parse Terraform JSON-line logs (TF_LOG=json) and report statistics.

Each file is analyzed on its own: lines are normalized into records,
non-JSON lines are parsed heuristically, records are tagged with the
plan/apply phase they belong to, and level, phase and time range
statistics are computed. Provider requests are grouped by tf_req_id into
a timeline.

With no arguments the log_sources from the config file are used.
Use "-" to read from standard input.

Filters narrow the records before statistics are computed. --since and
--until take an RFC 3339 timestamp or a YYYY-MM-DD date; a date given to
--until covers the whole day.

Exit codes:
  0 - No error-level records
  1 - Error-level records found
  2 - Configuration or runtime error`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, args, opts)
		},
	}

	// Flags
	cmd.Flags().StringVarP(&opts.Output, "output", "o", config.DefaultOutput, "Output format (text|json)")
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "List every record, not just the summary")
	cmd.Flags().BoolVarP(&opts.Quiet, "quiet", "q", false, "One summary line per file")
	cmd.Flags().BoolVar(&opts.NoColor, "no-color", false, "Disable colored output")
	cmd.Flags().BoolVar(&opts.Timeline, "timeline", true, "Build the provider request timeline")

	// Filter flags
	cmd.Flags().StringVar(&opts.RequestID, "req-id", "", "Only records with this tf_req_id")
	cmd.Flags().StringVar(&opts.Resource, "resource", "", "Only records mentioning this resource type")
	cmd.Flags().StringVar(&opts.Grep, "grep", "", "Only records containing this text (case-insensitive)")
	cmd.Flags().StringVar(&opts.Since, "since", "", "Only records at or after this time")
	cmd.Flags().StringVar(&opts.Until, "until", "", "Only records at or before this time")

	// Webhook flags
	cmd.Flags().StringVar(&opts.WebhookURL, "webhook-url", "", "Webhook endpoint URL")
	cmd.Flags().StringVar(&opts.WebhookToken, "webhook-token", "", "Bearer token for webhook auth")
	cmd.Flags().StringVar(&opts.WebhookTrigger, "webhook-trigger", string(config.WebhookTriggerOnErrors), "When to fire webhook (on_errors|always|never)")

	return cmd
}

func runAnalyze(cmd *cobra.Command, args []string, opts *AnalyzeOptions) error {
	ctx := commandContext(cmd)

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// Flags given on the command line win over the config file
	if !cmd.Flags().Changed("output") {
		opts.Output = cfg.Output
	}
	if !cmd.Flags().Changed("timeline") {
		opts.Timeline = cfg.Timeline
	}

	formatter, err := createFormatter(opts)
	if err != nil {
		return err
	}

	filter, err := buildFilter(opts)
	if err != nil {
		return err
	}

	webhooks, err := collectWebhooks(cfg, opts)
	if err != nil {
		return err
	}

	sources, err := resolveSources(cmd, args, cfg)
	if err != nil {
		return err
	}

	a := analyzer.New(analyzer.WithTimeline(opts.Timeline), analyzer.WithFilter(filter))

	for _, source := range sources {
		result, err := a.Analyze(ctx, source)
		if err != nil {
			return fmt.Errorf("analysis failed: %w", err)
		}

		report := output.NewReport(result)

		if err := formatter.Format(ctx, report, cmd.OutOrStdout()); err != nil {
			return fmt.Errorf("formatting output: %w", err)
		}

		// Send webhooks (errors logged but don't fail analysis)
		sendWebhooks(ctx, webhooks, report, cmd.ErrOrStderr())

		if report.HasErrors() {
			ExitCode = 1
		}
	}

	return nil
}

// resolveSources turns arguments, or the configured log sources when
// there are none, into log sources in a stable order.
func resolveSources(cmd *cobra.Command, args []string, cfg *config.Config) ([]parser.LogSource, error) {
	patterns := args
	if len(patterns) == 0 {
		patterns = cfg.LogSources
	}
	if len(patterns) == 0 {
		return nil, fmt.Errorf("no log files given (pass files or set log_sources in the config)")
	}

	var sources []parser.LogSource
	var globs []string
	for _, p := range patterns {
		if p == stdinArg {
			sources = append(sources, parser.NewReaderSource("", cmd.InOrStdin()))
			continue
		}
		globs = append(globs, p)
	}

	if len(globs) > 0 {
		files, err := parser.ExpandGlobs(globs)
		if err != nil {
			return nil, fmt.Errorf("expanding log sources: %w", err)
		}
		for _, f := range files {
			sources = append(sources, parser.NewFileSource(f))
		}
	}

	return sources, nil
}

// dateLayout is the day-only form accepted by --since and --until.
const dateLayout = "2006-01-02"

// buildFilter turns the filter flags into analyzer options.
func buildFilter(opts *AnalyzeOptions) (analyzer.FilterOptions, error) {
	filter := analyzer.FilterOptions{
		RequestID:    opts.RequestID,
		ResourceType: opts.Resource,
		Query:        opts.Grep,
	}

	if opts.Since != "" {
		t, _, err := parseBound(opts.Since)
		if err != nil {
			return filter, fmt.Errorf("invalid --since: %w", err)
		}
		filter.Since = t
	}
	if opts.Until != "" {
		t, dateOnly, err := parseBound(opts.Until)
		if err != nil {
			return filter, fmt.Errorf("invalid --until: %w", err)
		}
		if dateOnly {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		filter.Until = t
	}

	if !filter.Since.IsZero() && !filter.Until.IsZero() && filter.Until.Before(filter.Since) {
		return filter, fmt.Errorf("--until %s is before --since %s", opts.Until, opts.Since)
	}
	return filter, nil
}

// parseBound parses a timestamp or a UTC date and reports which it was.
func parseBound(s string) (time.Time, bool, error) {
	if t, ok := analyzer.ParseTimestamp(s); ok {
		return t, false, nil
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, true, nil
	}
	return time.Time{}, false, fmt.Errorf("%q is neither an RFC 3339 timestamp nor a %s date", s, dateLayout)
}

func createFormatter(opts *AnalyzeOptions) (output.Formatter, error) {
	return output.ForName(opts.Output, output.FormatOptions{
		Verbose: opts.Verbose,
		Quiet:   opts.Quiet,
		NoColor: opts.NoColor,
	})
}

// sendWebhooks sends the report to all configured webhooks.
// Errors are logged to w but don't fail the analysis.
func sendWebhooks(ctx context.Context, webhooks []config.WebhookConfig, report *output.Report, w io.Writer) {
	if len(webhooks) == 0 {
		return
	}

	client := webhook.NewClient()
	for _, d := range client.Deliver(ctx, report, report.HasErrors(), webhooks) {
		name := d.Webhook.DisplayName()
		if d.Response.Success() {
			fmt.Fprintf(w, "Webhook %s: sent (%d, %s)\n", name, d.Response.StatusCode, d.Response.Duration)
		} else {
			fmt.Fprintf(w, "Webhook %s: failed (%v)\n", name, d.Response.Error)
		}
	}
}

// collectWebhooks merges config file webhooks with the CLI webhook.
func collectWebhooks(cfg *config.Config, opts *AnalyzeOptions) ([]config.WebhookConfig, error) {
	webhooks := make([]config.WebhookConfig, 0, len(cfg.Webhooks)+1)
	webhooks = append(webhooks, cfg.Webhooks...)

	if opts.WebhookURL == "" {
		return webhooks, nil
	}

	trigger := config.WebhookTrigger(opts.WebhookTrigger)
	if trigger == "" {
		trigger = config.WebhookTriggerOnErrors
	}

	wh := config.WebhookConfig{
		Name:    "cli",
		URL:     opts.WebhookURL,
		Token:   opts.WebhookToken,
		Trigger: trigger,
		Timeout: config.DefaultWebhookTimeout,
	}
	// Run the CLI webhook through the same checks as the config file
	check := config.DefaultConfig()
	check.Webhooks = []config.WebhookConfig{wh}
	if err := config.Validate(check); err != nil {
		return nil, fmt.Errorf("invalid --webhook-url/--webhook-trigger: %w", err)
	}

	return append(webhooks, check.Webhooks[0]), nil
}
