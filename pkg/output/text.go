package output

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ccollicutt/tflog/pkg/analyzer"
	"github.com/ccollicutt/tflog/pkg/parser"
)

// slowestShown is how many timeline entries the text report lists.
const slowestShown = 10

var (
	styleTrace   = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Faint(true)
	styleDebug   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	styleInfo    = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	styleWarn    = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	styleError   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	styleUnknown = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	styleBanner  = lipgloss.NewStyle().Foreground(lipgloss.Color("170")).Bold(true)
)

// TextFormatter formats reports as human-readable text.
type TextFormatter struct {
	opts FormatOptions
}

// NewTextFormatter creates a new text formatter with the given options.
func NewTextFormatter(opts FormatOptions) *TextFormatter {
	return &TextFormatter{opts: opts}
}

// Name returns the format name.
func (f *TextFormatter) Name() string {
	return "text"
}

// Format renders the report as text.
func (f *TextFormatter) Format(ctx context.Context, report *Report, w io.Writer) error {
	if f.opts.Quiet {
		return f.formatQuiet(report, w)
	}
	return f.formatFull(report, w)
}

func (f *TextFormatter) formatQuiet(report *Report, w io.Writer) error {
	_, err := fmt.Fprintf(w, "tflog: %s: %d records, %d errors, %d warnings\n",
		sourceName(report),
		report.Summary.Total,
		report.Summary.Errors,
		report.Summary.Warnings)
	return err
}

func (f *TextFormatter) formatFull(report *Report, w io.Writer) error {
	stats := &report.Statistics

	fmt.Fprintf(w, "=== Terraform Log Analysis: %s ===\n", sourceName(report))
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Records: %d (%d unstructured)\n", report.Summary.Total, report.Summary.Unstructured)
	if report.Summary.Filtered > 0 {
		fmt.Fprintf(w, "Filtered out: %d\n", report.Summary.Filtered)
	}
	if stats.TimeRange != nil {
		fmt.Fprintf(w, "Time range: %s .. %s\n", stats.TimeRange.Start, stats.TimeRange.End)
	} else {
		fmt.Fprintln(w, "Time range: n/a")
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Levels:")
	if len(stats.LevelCounts) == 0 {
		fmt.Fprintln(w, "  none")
	}
	for _, level := range parser.Levels {
		n, ok := stats.LevelCounts[level]
		if !ok {
			continue
		}
		fmt.Fprintf(w, "  %s %d\n", f.levelTag(level), n)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Phases:")
	fmt.Fprintf(w, "  %-7s %d\n", "plan", stats.PhaseCounts.Plan)
	fmt.Fprintf(w, "  %-7s %d\n", "apply", stats.PhaseCounts.Apply)
	fmt.Fprintf(w, "  %-7s %d\n", "other", stats.PhaseCounts.Other)
	fmt.Fprintln(w)

	if len(report.Timeline) > 0 {
		f.formatTimeline(report, w)
	}

	if f.opts.Verbose {
		f.formatRecords(report.Records, w)
	}

	fmt.Fprintln(w, "---")
	fmt.Fprintf(w, "Summary: %d records, %d errors, %d warnings, %d request groups\n",
		report.Summary.Total,
		report.Summary.Errors,
		report.Summary.Warnings,
		report.Summary.RequestGroups)

	if f.opts.Verbose {
		_, err := fmt.Fprintf(w, "Duration: %s\n", report.Metadata.Duration.Round(1e6))
		return err
	}

	return nil
}

func (f *TextFormatter) formatTimeline(report *Report, w io.Writer) {
	fmt.Fprintf(w, "Slowest requests (%d total):\n", len(report.Timeline))
	for _, span := range analyzer.Slowest(report.Timeline, slowestShown) {
		resource := span.ResourceType
		if resource == "" {
			resource = "-"
		}
		fmt.Fprintf(w, "  - %s %s %s (%d records)\n",
			span.RequestID, resource, span.Duration(), span.Records)
	}
	fmt.Fprintln(w)
}

func (f *TextFormatter) formatRecords(records []parser.Record, w io.Writer) {
	fmt.Fprintln(w, "Log:")
	for i := range records {
		rec := &records[i]

		if rec.PhaseStart {
			fmt.Fprintln(w, f.style(styleBanner, ">>> "+strings.ToUpper(string(rec.Phase))))
		}

		ts := rec.Timestamp
		if ts == "" {
			ts = "-"
		}
		marker := " "
		if !rec.Structured {
			marker = "~"
		}
		fmt.Fprintf(w, "  %5d %s %s %s %s\n", rec.Index, marker, ts, f.levelTag(rec.Level), singleLine(rec.Message))
	}
	fmt.Fprintln(w)
}

// levelTag renders a fixed-width, styled level label.
func (f *TextFormatter) levelTag(level parser.Level) string {
	padded := fmt.Sprintf("%-7s", strings.ToUpper(string(level)))
	switch level {
	case parser.LevelError:
		return f.style(styleError, padded)
	case parser.LevelWarn:
		return f.style(styleWarn, padded)
	case parser.LevelInfo:
		return f.style(styleInfo, padded)
	case parser.LevelDebug:
		return f.style(styleDebug, padded)
	case parser.LevelTrace:
		return f.style(styleTrace, padded)
	default:
		return f.style(styleUnknown, padded)
	}
}

func (f *TextFormatter) style(s lipgloss.Style, text string) string {
	if f.opts.NoColor {
		return text
	}
	return s.Render(text)
}

func sourceName(report *Report) string {
	if report.Metadata.Source == "" {
		return "<stdin>"
	}
	return report.Metadata.Source
}

// singleLine keeps multi-line messages on one output row.
func singleLine(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "\r", ""), "\n", `\n`)
}
