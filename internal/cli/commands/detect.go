package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/tflog/pkg/config"
	"github.com/ccollicutt/tflog/pkg/detector"
)

// DetectOptions holds command-line options for the detect command.
type DetectOptions struct {
	Output      string
	SampleSize  int
	ShowAll     bool
	WriteConfig string
}

// NewDetectCommand creates the detect command.
func NewDetectCommand() *cobra.Command {
	opts := &DetectOptions{}

	cmd := &cobra.Command{
		Use:   "detect <log-file>",
		Short: "Check whether a file is a Terraform JSON log",
		Long: `Sample a log file and report how well it fits the Terraform JSON log format.

Reports:
  - Format verdict: jsonl (90% or more JSON objects), mixed, or text
  - Coverage of @message, @level, @timestamp and tf_req_id
  - Plan/apply phase markers seen in the sample
  - The timestamp format in use, with a confidence score

Optionally generates a starter config file with --write-config.

Example:
  tflog detect terraform.log
  tflog detect --sample 500 apply.json
  tflog detect -w .tflog.yaml apply.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDetect(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "text", "Output format (text|json)")
	cmd.Flags().IntVarP(&opts.SampleSize, "sample", "n", 100, "Number of lines to sample")
	cmd.Flags().BoolVar(&opts.ShowAll, "all", false, "Show all detected timestamp formats, not just the best match")
	cmd.Flags().StringVarP(&opts.WriteConfig, "write-config", "w", "", "Write starter config to file (will not overwrite)")

	return cmd
}

func runDetect(cmd *cobra.Command, args []string, opts *DetectOptions) error {
	logFile := args[0]

	if _, err := os.Stat(logFile); os.IsNotExist(err) {
		return fmt.Errorf("log file not found: %s", logFile)
	}

	d := detector.New(detector.WithSampleSize(opts.SampleSize))

	result, err := d.DetectFromFile(commandContext(cmd), logFile)
	if err != nil {
		return fmt.Errorf("detection failed: %w", err)
	}

	if opts.WriteConfig != "" {
		if err := writeStarterConfig(cmd.OutOrStdout(), result, logFile, opts.WriteConfig); err != nil {
			return err
		}
	}

	switch opts.Output {
	case "json":
		return outputDetectJSON(cmd.OutOrStdout(), result, logFile, opts)
	case "text":
		return outputDetectText(cmd.OutOrStdout(), result, logFile, opts)
	default:
		return fmt.Errorf("unknown output format %q (use text or json)", opts.Output)
	}
}

func outputDetectText(w io.Writer, result *detector.DetectionResult, logFile string, opts *DetectOptions) error {
	fmt.Fprintln(w, "=== Log Format Detection ===")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "File: %s\n", logFile)
	fmt.Fprintf(w, "Lines sampled: %d\n", result.SampledLines)
	fmt.Fprintf(w, "Format: %s (%.1f%% JSON objects, %d/%d lines)\n",
		result.Format, result.StructuredShare()*100, result.StructuredLines, result.SampledLines)
	fmt.Fprintln(w)

	if result.SampledLines == 0 {
		fmt.Fprintln(w, "The file has no non-blank lines.")
		return nil
	}

	if len(result.KeyCoverage) > 0 {
		fmt.Fprintln(w, "Key coverage (structured lines):")
		for _, kc := range result.KeyCoverage {
			fmt.Fprintf(w, "  %-11s %5.1f%% (%d)\n", kc.Key, kc.Coverage*100, kc.Count)
		}
		fmt.Fprintln(w)
	}

	if len(result.PhaseMarkers) > 0 {
		fmt.Fprintln(w, "Phase markers:")
		for _, m := range result.PhaseMarkers {
			fmt.Fprintf(w, "  line %d: %s\n", m.Line+1, m.Phase)
		}
	} else {
		fmt.Fprintln(w, "Phase markers: none (records will not be tagged plan/apply)")
	}
	fmt.Fprintln(w)

	if !result.HasMatch() {
		fmt.Fprintln(w, "No timestamp format detected.")
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Tip: the time range and request timeline need ISO 8601 timestamps.")
		return nil
	}

	best := result.BestMatch()
	fmt.Fprintf(w, "Timestamp format: %s\n", best.Format.Name)
	fmt.Fprintf(w, "Confidence: %.1f%% (%d/%d lines matched)\n",
		best.Confidence*100, best.MatchCount, result.SampledLines)
	fmt.Fprintf(w, "Sample match: %s\n", best.SampleLine)
	fmt.Fprintf(w, "Parsed as: %s\n", best.ParsedTime.Format("2006-01-02 15:04:05.000 MST"))
	fmt.Fprintln(w)

	if result.Format == detector.FormatText {
		fmt.Fprintln(w, "Tip: set TF_LOG=json to get structured Terraform logs.")
		fmt.Fprintln(w)
	}

	if opts.ShowAll && len(result.Matches) > 1 {
		fmt.Fprintln(w, "--- Alternative timestamp formats ---")
		for i, m := range result.Matches[1:] {
			fmt.Fprintf(w, "%d. %s (%.1f%% confidence)\n", i+2, m.Format.Name, m.Confidence*100)
			fmt.Fprintf(w, "   layout: \"%s\"\n", m.Format.Layout)
		}
		fmt.Fprintln(w)
	}

	return nil
}

// JSONMatch represents a timestamp format match in JSON output.
type JSONMatch struct {
	Name       string  `json:"name"`
	Pattern    string  `json:"pattern"`
	Layout     string  `json:"layout"`
	Confidence float64 `json:"confidence"`
	MatchCount int     `json:"match_count"`
	SampleLine string  `json:"sample_line"`
}

// JSONKeyCoverage represents key coverage in JSON output.
type JSONKeyCoverage struct {
	Key      string  `json:"key"`
	Count    int     `json:"count"`
	Coverage float64 `json:"coverage"`
}

// JSONPhaseMarker represents a phase marker in JSON output.
type JSONPhaseMarker struct {
	Line  int    `json:"line"`
	Phase string `json:"phase"`
}

// JSONOutput represents the full JSON output.
type JSONOutput struct {
	File            string            `json:"file"`
	Format          string            `json:"format"`
	SampledLines    int               `json:"sampled_lines"`
	StructuredLines int               `json:"structured_lines"`
	HeuristicLines  int               `json:"heuristic_lines"`
	KeyCoverage     []JSONKeyCoverage `json:"key_coverage"`
	PhaseMarkers    []JSONPhaseMarker `json:"phase_markers"`
	Matches         []JSONMatch       `json:"matches"`
	ParsedLines     int               `json:"parsed_lines"`
}

func outputDetectJSON(w io.Writer, result *detector.DetectionResult, logFile string, opts *DetectOptions) error {
	out := JSONOutput{
		File:            logFile,
		Format:          string(result.Format),
		SampledLines:    result.SampledLines,
		StructuredLines: result.StructuredLines,
		HeuristicLines:  result.HeuristicLines,
		ParsedLines:     result.ParsedLines,
		KeyCoverage:     make([]JSONKeyCoverage, 0, len(result.KeyCoverage)),
		PhaseMarkers:    make([]JSONPhaseMarker, 0, len(result.PhaseMarkers)),
		Matches:         make([]JSONMatch, 0),
	}

	for _, kc := range result.KeyCoverage {
		out.KeyCoverage = append(out.KeyCoverage, JSONKeyCoverage{Key: kc.Key, Count: kc.Count, Coverage: kc.Coverage})
	}
	for _, m := range result.PhaseMarkers {
		out.PhaseMarkers = append(out.PhaseMarkers, JSONPhaseMarker{Line: m.Line + 1, Phase: string(m.Phase)})
	}

	matches := result.Matches
	if !opts.ShowAll && len(matches) > 1 {
		matches = matches[:1] // Only show best match
	}
	for _, m := range matches {
		out.Matches = append(out.Matches, JSONMatch{
			Name:       m.Format.Name,
			Pattern:    m.Format.PatternStr,
			Layout:     m.Format.Layout,
			Confidence: m.Confidence,
			MatchCount: m.MatchCount,
			SampleLine: m.SampleLine,
		})
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

// writeStarterConfig generates a starter config file for the sampled log.
func writeStarterConfig(w io.Writer, result *detector.DetectionResult, logFile, configPath string) error {
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config file already exists: %s (will not overwrite)", configPath)
	}

	if result.StructuredLines == 0 {
		return fmt.Errorf("cannot generate config: %s contains no JSON log lines (set TF_LOG=json)", logFile)
	}

	content := generateStarterConfig(logFile, result)

	// #nosec G306 - config file doesn't need restrictive permissions
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintf(w, "Wrote starter config to: %s\n\n", configPath)
	return nil
}

// generateStarterConfig creates a YAML config template.
func generateStarterConfig(logFile string, result *detector.DetectionResult) string {
	absLogFile := logFile
	if abs, err := filepath.Abs(logFile); err == nil {
		absLogFile = abs
	}

	var timestamp string
	if best := result.BestMatch(); best != nil {
		timestamp = fmt.Sprintf("\n# Timestamp format: %s (%.0f%% confidence)", best.Format.Name, best.Confidence*100)
	}

	return fmt.Sprintf(`# tflog configuration
# Generated by: tflog detect
# Detected format: %s (%.0f%% JSON objects)%s

log_sources:
  - %s
  # Add more log files or use globs:
  # - logs/**/*.json

output: text
timeline: true

server:
  listen: "%s"
  max_upload_bytes: %d
  allowed_extensions: [%s]

# webhooks:
#   - name: incidents
#     url: https://hooks.example.com/tflog
#     token: ${TFLOG_WEBHOOK_TOKEN}
#     trigger: on_errors
#     timeout: 10s
`, result.Format, result.StructuredShare()*100, timestamp,
		absLogFile,
		config.DefaultListen,
		config.DefaultMaxUploadBytes,
		quoteList(config.DefaultAllowedExtensions))
}

func quoteList(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = fmt.Sprintf("%q", s)
	}
	return strings.Join(quoted, ", ")
}
