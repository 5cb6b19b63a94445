// Package cmd assembles the sentinel command line interface.
package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/projectsentinel/sentinel-go/cmd/batch"
	"github.com/projectsentinel/sentinel-go/cmd/realtime"
	"github.com/projectsentinel/sentinel-go/internal/conf"
)

// RootCommand creates and returns the root command.
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "sentinel",
		Short: "Sentinel retail anomaly detection",
		Long:  "Correlates retail sensor streams per station and flags operational anomalies.",
	}

	setupFlags(rootCmd, settings)

	rootCmd.AddCommand(
		realtime.Command(settings),
		batch.Command(settings),
	)

	return rootCmd
}

// setupFlags configures the global flags for the root command.
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	rootCmd.PersistentFlags().StringVar(&settings.Catalog.ProductsPath, "products", viper.GetString("catalog.productspath"), "Path to the products catalog CSV")
	rootCmd.PersistentFlags().StringVar(&settings.Catalog.CustomersPath, "customers", viper.GetString("catalog.customerspath"), "Path to the customer registry CSV")
	rootCmd.PersistentFlags().DurationVar(&settings.Correlator.Window.Duration, "window", viper.GetDuration("correlator.window.duration"), "Correlation window duration")
	rootCmd.PersistentFlags().DurationVar(&settings.Correlator.Window.Grace, "grace", viper.GetDuration("correlator.window.grace"), "Lateness bound after window close")
	rootCmd.PersistentFlags().StringVar(&settings.Output.File.Path, "output", viper.GetString("output.file.path"), "Path to the JSON Lines event file")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		cobra.CheckErr(err)
	}
}
