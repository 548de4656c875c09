package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/mwrks/plume/config"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Version: version,
	Use:     "plume",
	Short:   "Social feed backend",
	Long: `Plume is a social feed backend: accounts, text posts with optional
images, comments and likes, served over a JSON API. Images live in an
S3-compatible object store or on local disk and are proxied through the
API.`,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		// The setup command writes the config file; it must run without one.
		if cmd.Name() == "setup" {
			return nil
		}

		configFile, _ := cmd.Flags().GetString("config")
		var files []string
		if configFile != "" {
			files = append(files, configFile)
		}

		cfg, err := config.Load(files, cmd.Flags())
		if err != nil {
			return err
		}

		setupLogging(cfg.Log.Level)
		cmd.SetContext(config.WithContext(cmd.Context(), cfg))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config.yaml)")
	rootCmd.PersistentFlags().String("db-type", "", "database type: mongo, sqlite, postgres (env: PLUME_DATABASE_TYPE)")
	rootCmd.PersistentFlags().String("db-dsn", "", "database connection string (env: PLUME_DATABASE_DSN)")
	rootCmd.PersistentFlags().String("db-name", "", "database name, mongo only (env: PLUME_DATABASE_NAME)")
	rootCmd.PersistentFlags().String("blob-type", "", "image storage type: minio, filesystem (env: PLUME_BLOB_TYPE)")
	rootCmd.PersistentFlags().String("blob-path", "", "image storage directory, filesystem only (env: PLUME_BLOB_PATH)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
