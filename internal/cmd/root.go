package cmd

import (
	"github.com/spf13/cobra"
)

var (
	cfgFile string

	// Version info set by main package
	versionInfo struct {
		Version   string
		Commit    string
		BuildDate string
	}
)

// SetVersionInfo is called by main package to set version information
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

var rootCmd = &cobra.Command{
	Use:   "reviews-gateway",
	Short: "Serves Google Places reviews for the Zenara Designs site",
	Long: `reviews-gateway fetches the business profile from the Google Places API,
normalizes it and serves it at /api/reviews with CORS and a per-client
rate limit.

Configuration comes from environment variables (and .env), optionally
layered over a config file passed with --config.`,
	SilenceUsage: true,
}

// Execute runs the root command. Called once by main.main().
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (json, yaml or toml; optional)")
}
