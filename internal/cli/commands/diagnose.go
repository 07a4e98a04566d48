package commands

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ccollicutt/tflog/pkg/config"
	"github.com/ccollicutt/tflog/pkg/detector"
	"github.com/ccollicutt/tflog/pkg/parser"
)

// maxDiagnosedFiles caps how many log files get a format check.
const maxDiagnosedFiles = 5

// DiagnoseOptions holds options for the diagnose command
type DiagnoseOptions struct {
	Verbose bool
}

// DiagnosticResult represents the result of a single diagnostic check
type DiagnosticResult struct {
	Check    string
	Status   string // "ok", "warning", "error"
	Message  string
	Details  []string
	Suggests []string
}

// NewDiagnoseCommand creates the diagnose command
func NewDiagnoseCommand() *cobra.Command {
	opts := &DiagnoseOptions{}

	cmd := &cobra.Command{
		Use:   "diagnose [config-file]",
		Short: "Diagnose common configuration issues",
		Long: `Diagnose common configuration issues.

This command checks your setup for common problems:
- Config file syntax and structure
- Log source file existence and accessibility
- Whether the log files are Terraform JSON logs (TF_LOG=json)
- HTTP API settings
- Webhook settings, and reachability with -v

With no argument the config file found through --config, ./.tflog.yaml
or ~/.tflog.yaml is checked; without any, the defaults are.

Example:
  tflog diagnose .tflog.yaml
  tflog diagnose -v .tflog.yaml  # verbose output`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath := viper.ConfigFileUsed()
			if len(args) == 1 {
				configPath = args[0]
			}
			return runDiagnose(commandContext(cmd), cmd.OutOrStdout(), configPath, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Show detailed diagnostic output")

	return cmd
}

func runDiagnose(ctx context.Context, w io.Writer, configPath string, opts *DiagnoseOptions) error {
	results := []DiagnosticResult{}

	// 1. Locate and parse the config file
	var cfg *config.Config
	if configPath == "" {
		results = append(results, DiagnosticResult{
			Check:   "Config File",
			Status:  "warning",
			Message: "No config file found, using defaults",
			Suggests: []string{
				"Use 'tflog detect <log-file> --write-config .tflog.yaml' to generate a starter config",
			},
		})
		defaults, err := config.LoadOrDefault(ctx, "")
		if err != nil {
			results = append(results, DiagnosticResult{
				Check:   "Config Defaults",
				Status:  "error",
				Message: err.Error(),
			})
			printDiagnostics(w, results, opts)
			return nil
		}
		cfg = defaults
	} else {
		result := checkConfigExists(configPath)
		results = append(results, result)
		if result.Status == "error" {
			printDiagnostics(w, results, opts)
			return nil
		}

		var parsed *config.Config
		parsed, result = checkConfigParseable(ctx, configPath)
		results = append(results, result)
		if result.Status == "error" {
			printDiagnostics(w, results, opts)
			return nil
		}
		cfg = parsed
	}

	// 2. Check log sources
	logResults, files := checkLogSources(cfg)
	results = append(results, logResults...)

	// 3. Check the files really are Terraform JSON logs
	results = append(results, checkLogFormat(ctx, files, opts)...)

	// 4. Check HTTP API settings
	results = append(results, checkServer(cfg, opts))

	// 5. Check webhooks configuration
	results = append(results, checkWebhooks(ctx, cfg, opts)...)

	printDiagnostics(w, results, opts)
	return nil
}

func checkConfigExists(path string) DiagnosticResult {
	result := DiagnosticResult{
		Check: "Config File",
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		result.Status = "error"
		result.Message = fmt.Sprintf("Config file not found: %s", path)
		result.Suggests = []string{
			"Check the file path is correct",
			"Use 'tflog detect <log-file> --write-config .tflog.yaml' to generate a starter config",
		}
		return result
	}
	if err != nil {
		result.Status = "error"
		result.Message = fmt.Sprintf("Cannot access config file: %v", err)
		result.Suggests = []string{"Check file permissions"}
		return result
	}
	if info.IsDir() {
		result.Status = "error"
		result.Message = "Path is a directory, not a file"
		return result
	}
	if info.Size() == 0 {
		result.Status = "warning"
		result.Message = "Config file is empty, defaults apply"
		return result
	}

	result.Status = "ok"
	result.Message = fmt.Sprintf("Found: %s (%d bytes)", path, info.Size())
	return result
}

func checkConfigParseable(ctx context.Context, path string) (*config.Config, DiagnosticResult) {
	result := DiagnosticResult{
		Check: "Config Syntax",
	}

	cfg, err := config.Load(ctx, path)
	if err != nil {
		result.Status = "error"
		result.Message = fmt.Sprintf("Failed to parse config: %v", err)
		switch {
		case strings.Contains(err.Error(), "yaml"):
			result.Suggests = []string{
				"Check YAML syntax - ensure proper indentation (use spaces, not tabs)",
			}
		case strings.Contains(err.Error(), "toml"):
			result.Suggests = []string{
				"Check TOML syntax - strings must be quoted and tables declared with [name]",
			}
		}
		return nil, result
	}

	result.Status = "ok"
	result.Message = "Config file parsed successfully"
	result.Details = []string{
		fmt.Sprintf("Log sources: %d", len(cfg.LogSources)),
		fmt.Sprintf("Webhooks: %d", len(cfg.Webhooks)),
	}
	return cfg, result
}

// checkLogSources reports on every log source and returns the readable files.
func checkLogSources(cfg *config.Config) ([]DiagnosticResult, []string) {
	results := []DiagnosticResult{}

	if len(cfg.LogSources) == 0 {
		results = append(results, DiagnosticResult{
			Check:   "Log Sources",
			Status:  "warning",
			Message: "No log sources defined, files must be passed on the command line",
			Suggests: []string{
				"Add a log_sources section to your config",
				"Example: log_sources:\n  - logs/**/*.json",
			},
		})
		return results, nil
	}

	var files []string
	for _, source := range cfg.LogSources {
		result := DiagnosticResult{
			Check: fmt.Sprintf("Log Source: %s", source),
		}

		if strings.ContainsAny(source, "*?[{") {
			matches, err := parser.ExpandGlobs([]string{source})
			switch {
			case err != nil:
				result.Status = "error"
				result.Message = fmt.Sprintf("Invalid glob pattern: %v", err)
			case len(matches) == 1 && matches[0] == source:
				result.Status = "warning"
				result.Message = "Glob pattern matches no files"
				result.Suggests = []string{
					"Check if the log files exist at this path",
					"Verify the glob pattern syntax (** matches any number of directories)",
				}
			default:
				result.Status = "ok"
				result.Message = fmt.Sprintf("Matches %d file(s)", len(matches))
				result.Details = append(result.Details, matches...)
				files = append(files, matches...)
			}
			results = append(results, result)
			continue
		}

		// Direct file path
		info, err := os.Stat(source)
		switch {
		case os.IsNotExist(err):
			result.Status = "error"
			result.Message = "File does not exist"
			result.Suggests = []string{
				"Check if the log file path is correct",
				"Set TF_LOG_PATH when running terraform to write the log to a file",
			}
		case err != nil:
			result.Status = "error"
			result.Message = fmt.Sprintf("Cannot access file: %v", err)
			result.Suggests = []string{"Check file permissions"}
		case info.IsDir():
			result.Status = "error"
			result.Message = "Path is a directory, not a file"
			result.Suggests = []string{
				"Use a glob pattern to match files in directory",
				"Example: " + filepath.Join(source, "*.json"),
			}
		case info.Size() == 0:
			result.Status = "warning"
			result.Message = "File is empty (0 bytes)"
		default:
			result.Status = "ok"
			result.Message = fmt.Sprintf("File exists (%d bytes)", info.Size())
			files = append(files, source)
		}
		results = append(results, result)
	}

	if len(files) == 0 {
		results = append(results, DiagnosticResult{
			Check:   "Log Files Summary",
			Status:  "error",
			Message: "No accessible log files found",
			Suggests: []string{
				"Ensure at least one log file exists and is readable",
			},
		})
	}

	return results, files
}

// checkLogFormat samples each file and grades how much of it is Terraform JSON.
func checkLogFormat(ctx context.Context, files []string, opts *DiagnoseOptions) []DiagnosticResult {
	results := []DiagnosticResult{}

	if len(files) > maxDiagnosedFiles {
		files = files[:maxDiagnosedFiles]
	}

	d := detector.New()
	for _, logFile := range files {
		result := DiagnosticResult{
			Check: fmt.Sprintf("Log Format: %s", filepath.Base(logFile)),
		}

		det, err := d.DetectFromFile(ctx, logFile)
		if err != nil {
			result.Status = "warning"
			result.Message = fmt.Sprintf("Cannot read file: %v", err)
			results = append(results, result)
			continue
		}

		share := fmt.Sprintf("%d/%d sampled lines are JSON objects", det.StructuredLines, det.SampledLines)
		switch det.Format {
		case detector.FormatJSONL:
			result.Status = "ok"
			result.Message = "Terraform JSON log (" + share + ")"
		case detector.FormatMixed:
			result.Status = "warning"
			result.Message = "Mixed log (" + share + ")"
			result.Suggests = []string{
				"Non-JSON lines are parsed heuristically and may lose level or timestamp",
				"Make sure only terraform writes to TF_LOG_PATH",
			}
		default:
			result.Status = "error"
			result.Message = "Not a JSON log (" + share + ")"
			result.Suggests = []string{
				"Run terraform with TF_LOG=json",
				"Use 'tflog detect " + logFile + "' for details",
			}
		}

		for _, kc := range det.KeyCoverage {
			result.Details = append(result.Details, fmt.Sprintf("%s: %.0f%%", kc.Key, kc.Coverage*100))
		}
		if len(det.PhaseMarkers) == 0 && det.StructuredLines > 0 {
			result.Details = append(result.Details, "No plan/apply phase marker in the sample")
		}
		if best := det.BestMatch(); best != nil && opts.Verbose {
			result.Details = append(result.Details,
				fmt.Sprintf("Timestamp format: %s", best.Format.Name),
				fmt.Sprintf("Sample: %s", truncate(best.SampleLine, 80)),
			)
		}

		results = append(results, result)
	}

	return results
}

func checkServer(cfg *config.Config, opts *DiagnoseOptions) DiagnosticResult {
	result := DiagnosticResult{
		Check: "HTTP API",
	}

	host, port, err := net.SplitHostPort(cfg.Server.Listen)
	if err != nil {
		result.Status = "error"
		result.Message = fmt.Sprintf("Invalid listen address %q: %v", cfg.Server.Listen, err)
		result.Suggests = []string{"Use host:port, e.g. " + config.DefaultListen}
		return result
	}

	result.Status = "ok"
	result.Message = fmt.Sprintf("Listens on %s", cfg.Server.Listen)
	if host == "" || host == "0.0.0.0" || host == "::" {
		result.Status = "warning"
		result.Message = fmt.Sprintf("Listens on all interfaces (port %s)", port)
		result.Suggests = []string{
			"The upload API has no authentication; bind to 127.0.0.1 unless it sits behind a proxy",
		}
	}

	if opts.Verbose || result.Status != "ok" {
		result.Details = []string{
			fmt.Sprintf("Upload limit: %d bytes", cfg.Server.MaxUploadBytes),
			fmt.Sprintf("Allowed extensions: %s", strings.Join(cfg.Server.AllowedExtensions, ", ")),
		}
	}
	return result
}

func printDiagnostics(w io.Writer, results []DiagnosticResult, opts *DiagnoseOptions) {
	fmt.Fprintln(w, "=== tflog Configuration Diagnostics ===")
	fmt.Fprintln(w)

	okCount := 0
	warnCount := 0
	errCount := 0

	for _, r := range results {
		// Status icon
		var icon string
		switch r.Status {
		case "ok":
			icon = "PASS"
			okCount++
		case "warning":
			icon = "WARN"
			warnCount++
		case "error":
			icon = "FAIL"
			errCount++
		}

		fmt.Fprintf(w, "[%s] %s\n", icon, r.Check)
		fmt.Fprintf(w, "    %s\n", r.Message)

		if opts.Verbose || r.Status != "ok" {
			for _, d := range r.Details {
				fmt.Fprintf(w, "      - %s\n", d)
			}
		}

		for _, s := range r.Suggests {
			fmt.Fprintf(w, "      Hint: %s\n", s)
		}

		fmt.Fprintln(w)
	}

	// Summary
	fmt.Fprintln(w, "---")
	fmt.Fprintf(w, "Summary: %d passed, %d warnings, %d errors\n", okCount, warnCount, errCount)

	if errCount > 0 {
		fmt.Fprintln(w, "\nFix the errors above before running analysis.")
	} else if warnCount > 0 {
		fmt.Fprintln(w, "\nConfiguration is usable but has warnings.")
	} else {
		fmt.Fprintln(w, "\nConfiguration looks good!")
	}
}

func checkWebhooks(ctx context.Context, cfg *config.Config, opts *DiagnoseOptions) []DiagnosticResult {
	results := []DiagnosticResult{}

	if len(cfg.Webhooks) == 0 {
		// Webhooks are optional, just note they're not configured
		if opts.Verbose {
			results = append(results, DiagnosticResult{
				Check:   "Webhooks",
				Status:  "ok",
				Message: "No webhooks configured (optional)",
			})
		}
		return results
	}

	// URL and trigger were validated when the config loaded
	for i := range cfg.Webhooks {
		wh := &cfg.Webhooks[i]
		result := DiagnosticResult{
			Check: fmt.Sprintf("Webhook: %s", wh.DisplayName()),
		}

		warnings := []string{}
		if wh.Trigger == config.WebhookTriggerNever {
			warnings = append(warnings, "Trigger is 'never', this webhook is disabled")
		}
		if u, err := url.Parse(wh.URL); err == nil && wh.Token != "" && u.Scheme == "http" && !isLoopback(u.Hostname()) {
			warnings = append(warnings, "Token is sent over plain http")
		}

		if len(warnings) > 0 {
			result.Status = "warning"
			result.Message = fmt.Sprintf("%d warning(s)", len(warnings))
			result.Details = warnings
		} else {
			result.Status = "ok"
			result.Message = fmt.Sprintf("Trigger: %s", wh.Trigger)
			if opts.Verbose {
				result.Details = []string{
					fmt.Sprintf("URL: %s", wh.URL),
					fmt.Sprintf("Timeout: %s", wh.Timeout.Std()),
				}
				if wh.Token != "" {
					result.Details = append(result.Details, "Token: configured")
				}
			}
		}

		results = append(results, result)
	}

	// Optionally test webhook connectivity
	if opts.Verbose {
		for i := range cfg.Webhooks {
			wh := &cfg.Webhooks[i]
			result := checkWebhookConnectivity(ctx, wh)
			result.Check = fmt.Sprintf("Webhook Connectivity: %s", wh.DisplayName())
			results = append(results, result)
		}
	}

	return results
}

func checkWebhookConnectivity(ctx context.Context, wh *config.WebhookConfig) DiagnosticResult {
	result := DiagnosticResult{}

	// Just do a HEAD request to check if the endpoint is reachable
	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, wh.URL, nil)
	if err != nil {
		result.Status = "warning"
		result.Message = fmt.Sprintf("Cannot create request: %v", err)
		return result
	}

	if wh.Token != "" {
		req.Header.Set("Authorization", "Bearer "+wh.Token)
	}

	resp, err := client.Do(req)
	if err != nil {
		result.Status = "warning"
		result.Message = fmt.Sprintf("Cannot connect: %v", err)
		result.Suggests = []string{
			"Check if the webhook URL is correct",
			"Verify network connectivity",
		}
		return result
	}
	defer resp.Body.Close()

	// Any response (even 4xx/5xx) means the server is reachable
	if resp.StatusCode >= 200 && resp.StatusCode < 400 {
		result.Status = "ok"
		result.Message = fmt.Sprintf("Reachable (status %d)", resp.StatusCode)
	} else {
		result.Status = "warning"
		result.Message = fmt.Sprintf("Reachable but returned status %d", resp.StatusCode)
		result.Suggests = []string{
			"The endpoint may require POST method (will work during actual webhook send)",
			"Check authentication if using a token",
		}
	}

	return result
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
