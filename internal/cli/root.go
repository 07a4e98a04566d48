// Package cli provides the command-line interface for tflog.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/tflog/internal/cli/commands"
	"github.com/ccollicutt/tflog/internal/cli/plugins"
)

// Execute runs the root command and returns the exit code.
func Execute() int {
	return execute(NewRootCommand(), os.Args[1:])
}

func execute(rootCmd *cobra.Command, args []string) int {
	// Check if the first argument might be a plugin command
	if len(args) > 0 {
		potentialCommand := args[0]
		// Skip flags (start with -)
		if len(potentialCommand) > 0 && potentialCommand[0] != '-' {
			if !isBuiltinCommand(rootCmd, potentialCommand) {
				// Try to find and execute a plugin
				if pluginPath, err := plugins.FindPlugin(potentialCommand); err == nil {
					return plugins.Execute(pluginPath, args[1:])
				}
				// Plugin not found - will fall through to Cobra which will show error
			}
		}
	}

	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		// Check if this was an unknown command that could be a plugin
		if len(args) > 0 {
			potentialCommand := args[0]
			if len(potentialCommand) > 0 && potentialCommand[0] != '-' {
				if !isBuiltinCommand(rootCmd, potentialCommand) {
					_, _ = fmt.Fprintln(rootCmd.ErrOrStderr(), plugins.FormatNotFoundError(potentialCommand))
					return 2
				}
			}
		}
		// Print error to stderr (SilenceErrors prevents Cobra from doing this)
		_, _ = fmt.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
		return 2 // Configuration or runtime error
	}
	return commands.ExitCode
}

// isBuiltinCommand checks if a command name is a built-in cobra command.
func isBuiltinCommand(rootCmd *cobra.Command, name string) bool {
	for _, cmd := range rootCmd.Commands() {
		if cmd.Name() == name || cmd.HasAlias(name) {
			return true
		}
	}
	// Also check for special commands like help and completion
	return name == "help" || name == "completion"
}

// NewRootCommand creates the root cobra command.
func NewRootCommand() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "tflog",
		Short: "Analyze Terraform JSON logs",
		Long: `tflog parses Terraform JSON-line logs (TF_LOG=json) and reports what happened.

It reports:
  - Record counts by level, with errors and warnings called out
  - Which records belong to the plan and which to the apply phase
  - The time range covered by the log
  - A timeline of provider requests grouped by tf_req_id

Logs can be analyzed once, watched as Terraform writes them, or uploaded
to the HTTP API started by 'tflog serve'.

CONFIGURATION:
  Settings are read from --config, or from .tflog.yaml (or .tflog.toml) in
  the working directory or $HOME. TFLOG_LOG_SOURCES and TFLOG_LISTEN
  override the file.

PLUGINS:
  tflog supports plugins for extended functionality. Plugins are standalone
  binaries named tflog-<command> that are automatically discovered and invoked.

  Plugin locations (searched in order):
    1. Same directory as the tflog binary
    2. ~/.tflog/plugins/
    3. Anywhere in PATH`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return commands.InitConfig(cfgFile)
		},
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default: ./.tflog.yaml or ~/.tflog.yaml)")

	// Add subcommands
	rootCmd.AddCommand(commands.NewAnalyzeCommand())
	rootCmd.AddCommand(commands.NewDetectCommand())
	rootCmd.AddCommand(commands.NewDiagnoseCommand())
	rootCmd.AddCommand(commands.NewServeCommand())
	rootCmd.AddCommand(commands.NewWatchCommand())
	rootCmd.AddCommand(commands.NewValidateCommand())
	rootCmd.AddCommand(commands.NewVersionCommand())

	return rootCmd
}
