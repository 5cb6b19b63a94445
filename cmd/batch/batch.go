// Package batch implements the recorded input replay command.
package batch

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/projectsentinel/sentinel-go/internal/analysis"
	"github.com/projectsentinel/sentinel-go/internal/conf"
)

// Command creates the batch replay command.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Replay recorded input files",
		Long:  "Replay a directory of captured JSON Lines input through the pipeline, producing the same events as the live run.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return analysis.RunBatch(settings, settings.Ingest.Input.Dir)
		},
	}

	if err := setupFlags(cmd, settings); err != nil {
		cobra.CheckErr(fmt.Errorf("error setting up flags: %w", err))
	}

	return cmd
}

func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().StringVar(&settings.Ingest.Input.Dir, "input", viper.GetString("ingest.input.dir"), "Directory of .jsonl input files")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}

	return nil
}
