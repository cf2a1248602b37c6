package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the vendors, rfps, proposals and email_sends tables if missing",
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		logger := newLogger()
		config := loadConfig(logger)

		st, err := openStore(ctx, config)
		if err != nil {
			logger.Fatal("opening the database", zap.Error(err))
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			logger.Fatal("migrating", zap.Error(err))
		}
		logger.Info("schema is up to date")
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
