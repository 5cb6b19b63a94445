// Package realtime implements the live streaming analysis command.
package realtime

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/projectsentinel/sentinel-go/internal/analysis"
	"github.com/projectsentinel/sentinel-go/internal/conf"
)

// Command creates the realtime analysis command.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "realtime",
		Short: "Analyze the live sensor stream",
		Long:  "Connect to the streaming server and evaluate detection rules as records arrive.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return analysis.RunRealtime(settings)
		},
	}

	if err := setupFlags(cmd, settings); err != nil {
		cobra.CheckErr(fmt.Errorf("error setting up flags: %w", err))
	}

	return cmd
}

// setupFlags configures flags specific to the realtime command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().StringVar(&settings.Ingest.Host, "host", viper.GetString("ingest.host"), "Streaming server host")
	cmd.Flags().IntVar(&settings.Ingest.Port, "port", viper.GetInt("ingest.port"), "Streaming server port")
	cmd.Flags().IntVar(&settings.Ingest.QueueSize, "queue", viper.GetInt("ingest.queuesize"), "Bounded record queue depth")
	cmd.Flags().StringVar(&settings.Ingest.OverflowPolicy, "overflow", viper.GetString("ingest.overflowpolicy"), "Queue overflow policy (block or drop-oldest)")
	cmd.Flags().BoolVar(&settings.WebServer.Enabled, "dashboard", viper.GetBool("webserver.enabled"), "Serve the dashboard API")
	cmd.Flags().StringVar(&settings.WebServer.Port, "dashboardport", viper.GetString("webserver.port"), "Dashboard API port")
	cmd.Flags().BoolVar(&settings.Telemetry.Enabled, "telemetry", viper.GetBool("telemetry.enabled"), "Enable Prometheus telemetry endpoint")
	cmd.Flags().StringVar(&settings.Telemetry.Listen, "listen", viper.GetString("telemetry.listen"), "Listen address and port of telemetry endpoint")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}

	return nil
}
