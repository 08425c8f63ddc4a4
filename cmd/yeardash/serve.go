package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"yeardash/internal/amqp"
	"yeardash/internal/auth"
	"yeardash/internal/backend"
	"yeardash/internal/cache"
	"yeardash/internal/cli"
	apphttp "yeardash/internal/http"
	"yeardash/internal/log"
	"yeardash/internal/metrics"
	"yeardash/internal/sheets"
	gsheet "yeardash/internal/sheets/google"
)

const (
	shutdownTimeout = 30 * time.Second
	oauthStateTTL   = 10 * time.Minute
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and websocket API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	logger := cli.SetupLogger()
	cfg := cli.LoadAndValidateConfig(logger)
	m := metrics.New()

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	result, err := backend.NewFactory(logger, m).CreateBackend(cmd.Context(), bcfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", cfg.DataBackend)
		return err
	}

	var federated auth.Federated
	if cfg.GoogleOAuthEnabled() {
		federated = auth.NewGoogleProvider(auth.GoogleConfig{
			ClientID:     cfg.GoogleOAuthClientID,
			ClientSecret: cfg.GoogleOAuthClientSecret,
			RedirectURL:  cfg.GoogleOAuthRedirectURL,
		}, result.Backend)
		logger.Info("Google sign-in enabled")
	}

	var appender sheets.TransactionAppender
	if cfg.SheetsEnabled() {
		client, err := gsheet.New(cmd.Context(), gsheet.Config{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleSheetName,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
			CredentialsFile: cfg.GoogleServiceAccountFile,
		}, logger)
		if err != nil {
			_ = result.Cleanup()
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
			return err
		}
		appender = client
		logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	}

	tokens := auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL, result.Backend)
	states := auth.NewStateStore(oauthStateTTL)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Store:       result.Store,
		Pinger:      result.Backend,
		Provider:    auth.NewLocalProvider(result.Backend),
		Federated:   federated,
		Tokens:      tokens,
		States:      states,
		Sheets:      appender,
		Location:    cfg.Location(),
		CORSOrigins: cfg.CORSOrigins,
		RateLimit:   cfg.RateLimit,
		Logger:      logger,
		Metrics:     m,
	})
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	caches := cache.NewManager(logger)
	caches.Register(tokens)
	caches.Register(states)
	caches.Register(srv.Limiter())

	ctx, done := cli.GracefulShutdown(logger, shutdownTimeout, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting yeardash server", "port", cfg.Port, "backend", cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		if ctx.Err() == nil {
			// Another task failed; take the server down with it.
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		}
		return nil
	})
	g.Go(func() error { return caches.Run(gctx, cfg.CacheCleanupInterval) })
	if result.Broker != nil {
		handler := amqp.RefreshHandler(result.Backend, result.Broker.Origin(), logger, m)
		g.Go(func() error { return result.Broker.ConsumeChanges(gctx, handler) })
	}

	err = g.Wait()
	if ctx.Err() != nil {
		<-done
	}
	if cerr := result.Cleanup(); cerr != nil {
		logger.Error("Backend cleanup error", log.FieldError, cerr)
	}
	logger.Info("Server stopped gracefully")
	return err
}
