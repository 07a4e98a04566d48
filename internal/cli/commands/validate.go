package commands

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ccollicutt/tflog/pkg/config"
	"github.com/ccollicutt/tflog/pkg/parser"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [config-file]",
		Short: "Validate a configuration file",
		Long: `Validate a tflog configuration file without running analysis.

With no argument the file found through --config, ./.tflog.yaml or
~/.tflog.yaml is validated.

Checks:
  - YAML or TOML syntax
  - Output format
  - Server settings (listen address, upload limit, extensions)
  - Webhook URLs and triggers
  - Log source file existence (warning only)`,
		Args: cobra.MaximumNArgs(1),
		RunE: runValidate,
	}
}

func runValidate(cmd *cobra.Command, args []string) error {
	configPath := viper.ConfigFileUsed()
	if len(args) == 1 {
		configPath = args[0]
	}

	cfg, err := config.Load(commandContext(cmd), configPath)
	if errors.Is(err, config.ErrNoConfig) {
		return fmt.Errorf("no config file found (pass a path or create %s.yaml)", configName)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Validating %s...\n", configPath)

	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	// Report what we found
	fmt.Fprintf(w, "\nConfiguration valid!\n")
	fmt.Fprintf(w, "  Log sources:  %d pattern(s)\n", len(cfg.LogSources))
	fmt.Fprintf(w, "  Output:       %s\n", cfg.Output)
	fmt.Fprintf(w, "  Timeline:     %t\n", cfg.Timeline)
	fmt.Fprintf(w, "  Listen:       %s\n", cfg.Server.Listen)
	fmt.Fprintf(w, "  Upload limit: %d bytes\n", cfg.Server.MaxUploadBytes)
	fmt.Fprintf(w, "  Extensions:   %s\n", strings.Join(cfg.Server.AllowedExtensions, ", "))
	fmt.Fprintf(w, "  Webhooks:     %d\n", len(cfg.Webhooks))

	for i := range cfg.Webhooks {
		wh := &cfg.Webhooks[i]
		fmt.Fprintf(w, "  %d. %s [%s, timeout %s]\n", i+1, wh.DisplayName(), wh.Trigger, wh.Timeout.Std())
	}

	if len(cfg.LogSources) == 0 {
		return nil
	}

	// Check if log sources exist (warnings only)
	files, err := parser.ExpandGlobs(cfg.LogSources)
	if err != nil {
		fmt.Fprintf(w, "\nWarning: Error expanding log source patterns: %v\n", err)
	} else if len(files) == 0 {
		fmt.Fprintf(w, "\nWarning: No files match log source patterns\n")
	} else {
		fmt.Fprintf(w, "\nLog files matched: %d\n", len(files))
		for _, f := range files {
			if _, err := os.Stat(f); err != nil {
				fmt.Fprintf(w, "  - %s (warning: not found)\n", f)
				continue
			}
			fmt.Fprintf(w, "  - %s\n", f)
		}
	}

	return nil
}
