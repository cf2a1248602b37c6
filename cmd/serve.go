package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/rfp-intake/internal/intake"
	"github.com/spigell/rfp-intake/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the inbound email webhook and proposal API",
	Run: func(_ *cobra.Command, _ []string) {
		serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := newLogger()
	defer logger.Sync()

	config := loadConfig(logger)

	logger.Info("starting the rfp-intake", zap.String("version", version))

	st, err := openStore(ctx, config)
	if err != nil {
		logger.Fatal("opening the database", zap.Error(err))
	}
	defer st.Close()

	pipeline, err := newPipeline(ctx, config, st, logger)
	if err != nil {
		logger.Fatal("creating the pipeline", zap.Error(err))
	}

	secret, err := config.WebhookSecret()
	if err != nil {
		logger.Fatal("loading the webhook secret", zap.Error(err))
	}

	srv := server.New(pipeline, intake.NewSignatureVerifier(secret), logger, server.Options{
		CORSOrigins:     config.Server.CORSOrigins,
		SignatureHeader: config.Webhook.SignatureHeader,
		TimestampHeader: config.Webhook.TimestampHeader,
		MaxBodyBytes:    config.Server.MaxBodyBytes,
		Debug:           config.Debug,
		HealthCheck:     st.Ping,
	})

	if err := srv.Run(ctx, config.Server.ListenAddr()); err != nil {
		logger.Fatal("serving", zap.Error(err))
	}
	logger.Info("stopped")
}
