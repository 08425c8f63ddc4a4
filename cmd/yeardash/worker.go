package main

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"yeardash/internal/backend"
	"yeardash/internal/cli"
	"yeardash/internal/log"
	"yeardash/internal/metrics"
	gsheet "yeardash/internal/sheets/google"
	"yeardash/internal/worker"
)

// Every worker shares one queue so changes are spread across them.
const sheetsWorkerOrigin = "sheets-worker"

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Mirror new transactions into Google Sheets as they are created",
	RunE:  runWorker,
}

func runWorker(cmd *cobra.Command, _ []string) error {
	logger := cli.SetupLogger()
	cfg := cli.LoadAndValidateConfig(logger)

	if !cfg.AMQPEnabled() {
		return errors.New("worker needs AMQP_URL to receive changes")
	}
	if !cfg.SheetsEnabled() {
		return errors.New("worker needs GOOGLE_SPREADSHEET_ID and service account credentials")
	}

	m := metrics.New()
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	bcfg.Origin = sheetsWorkerOrigin
	result, err := backend.NewFactory(logger, m).CreateBackend(cmd.Context(), bcfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", cfg.DataBackend)
		return err
	}
	defer func() {
		if cerr := result.Cleanup(); cerr != nil {
			logger.Error("Backend cleanup error", log.FieldError, cerr)
		}
	}()
	if result.Broker == nil {
		return errors.New("backend started without a broker")
	}

	client, err := gsheet.New(cmd.Context(), gsheet.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	}, logger)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
		return err
	}

	w := worker.NewSyncWorker(result.Store, client, cfg.Location(), logger, m)

	ctx, done := cli.GracefulShutdown(logger, 10*time.Second, nil)

	logger.Info("Starting sheets worker",
		"spreadsheet_id", cfg.GoogleSpreadsheetID,
		"backend", cfg.DataBackend)
	err = result.Broker.ConsumeChanges(ctx, w.HandleChange)
	if ctx.Err() != nil {
		<-done
	}
	logger.Info("Worker stopped gracefully")
	return err
}
