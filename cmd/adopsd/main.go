package main

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "adopsd",
	Short: "Ad-ops automation daemon for Meta and Google Ads",
	Long: `adopsd syncs ad performance, regenerates budget strategy, optimizes
campaigns and enforces monthly spend caps on a schedule.

Examples:
  adopsd serve
  adopsd run daily_data_sync
  adopsd automation deploy --client <id> --create-campaigns`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to config file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}
