package main

import (
	"github.com/spf13/cobra"

	"github.com/viant/sqlite-dedup/app"
	"github.com/viant/sqlite-dedup/config"
	"github.com/viant/sqlite-dedup/logging"
)

var (
	cfgPath string
	dbPath  string

	svc *app.App
)

var rootCmd = &cobra.Command{
	Use:           "dupscan",
	Short:         "Detect near-duplicate media assets",
	Long:          `dupscan groups visually near-identical assets by comparing their embeddings and keeps the groups in a SQLite database.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		provider, err := config.NewProvider(cfgPath)
		if err != nil {
			return err
		}
		if dbPath != "" {
			provider.Override(func(c *config.Config) { c.Store.Path = dbPath })
		}
		logger := logging.New(provider.Config().Log)
		svc, err = app.New(cmd.Context(), provider, logger)
		return err
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if svc == nil {
			return nil
		}
		return svc.Close()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (.yaml or .toml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (overrides the config)")
}
