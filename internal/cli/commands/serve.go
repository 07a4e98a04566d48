package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ccollicutt/tflog/internal/server"
	"github.com/ccollicutt/tflog/pkg/config"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the log analysis HTTP API",
		Long: `Start an HTTP API that analyzes uploaded Terraform JSON logs.

Endpoints:
  GET  /healthz        Liveness and request counters
  POST /upload         Multipart upload (field "file"), returns records,
                       statistics and the request timeline
  POST /api/timeline   Build a timeline from {"logs": [...]}
  POST /api/export     Send {"logs": [...]} to the configured webhooks

The listen address comes from --listen, TFLOG_LISTEN, or server.listen
in the config file, in that order.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}

	cmd.Flags().String("listen", config.DefaultListen, "Address to listen on")
	_ = viper.BindPFlag("listen", cmd.Flags().Lookup("listen"))

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if viper.IsSet("listen") {
		cfg.Server.Listen = viper.GetString("listen")
		if err := config.Validate(cfg); err != nil {
			return fmt.Errorf("invalid --listen: %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return server.New(cfg).Run(ctx)
}
