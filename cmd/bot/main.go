// Entry point for the shift-tracking bot
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"driverpay.service/internal/api"
	"driverpay.service/internal/config"
	"driverpay.service/internal/core"
	"driverpay.service/internal/core/pricing"
	"driverpay.service/internal/ports/repository"
	"driverpay.service/internal/scheduler"
	"driverpay.service/internal/sweeper"
	"driverpay.service/internal/transport/telegram"
	"driverpay.service/pkg/aws"
	"driverpay.service/pkg/database"
	"driverpay.service/pkg/logger"
	"driverpay.service/pkg/telemetry"
)

func main() {
	// Load config
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Could not load configuration")
	}
	if cfg.BotToken == "" {
		log.Fatal().Msg("BOT_TOKEN is required")
	}

	// Configure structured logging
	logger.Setup(cfg.IsLocalDev)

	// Configure OpenTelemetry Tracing
	shutdownTracer, err := telemetry.InitTracer("driverpay-bot")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to init tracer")
	}
	defer func() {
		_ = shutdownTracer(context.Background())
	}()

	// Entry store
	store, closeStore, err := openStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Error opening entry store")
	}
	defer closeStore()
	log.Info().Str("driver", cfg.StoreDriver).Msg("Entry store ready")

	// Price table with config overrides
	prices := pricing.DefaultTable()
	prices.Base = decimal.NewFromFloat(cfg.PriceBase)
	prices.MK = decimal.NewFromFloat(cfg.PriceMK)
	prices.GabUnit = decimal.NewFromFloat(cfg.PriceGabUnit)

	// Optional SES copy of reports
	var mailer core.ReportMailer
	if cfg.ReportEmailFrom != "" && cfg.ReportEmailTo != "" {
		awsCfg, err := aws.NewAWSConfig(context.Background(), cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("unable to load SDK config")
		}
		mailer = core.NewSESReportMailer(ses.NewFromConfig(awsCfg), cfg.ReportEmailFrom, cfg.ReportEmailTo)
	}

	// Transport first: the core services send through it
	tg, err := telegram.New(cfg.BotToken)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create telegram bot")
	}
	sender := tg.Sender()

	// Core services
	loc := cfg.Location()
	sched := scheduler.New(nil)
	shifts := core.NewShiftService(store, sched, sender, mailer, nil, loc,
		cfg.AdminChatID, cfg.ReadyDelay, cfg.ChatNames())
	intake := core.NewIntakeService(store, sched, sender, nil, loc, prices,
		cfg.AllowedThreads(), cfg.ChatNames(), cfg.CommitDelay, cfg.CleanupDelay)
	tg.Bind(shifts, intake)

	sweep := sweeper.New(store, sender, nil, loc, cfg.AdminChatID,
		cfg.SweepInterval, cfg.InactivityWarn, cfg.InactivityRepeat, cfg.ForceCloseHour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go sched.Start(ctx)
	go sweep.Start(ctx)
	go tg.Start(ctx)

	// Admin API
	router := api.NewRouter(store)
	loggerMiddleware := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqCtx := logger.EnrichContextWithLogger(r.Context())
			next.ServeHTTP(w, r.WithContext(reqCtx))
		})
	}
	handler := otelhttp.NewHandler(loggerMiddleware(router), "admin-api")

	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: handler,
	}
	go func() {
		log.Info().Str("port", cfg.ServerPort).Msg("Admin API starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	// Wait for interrupt signal to gracefully shut everything down.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Bot exiting")
}

// openStore picks the Store implementation from config.
func openStore(cfg config.Config) (repository.Store, func(), error) {
	if cfg.StoreDriver == "postgres" {
		db, err := database.NewInstrumentedConnection(cfg)
		if err != nil {
			return nil, nil, err
		}
		pg := repository.NewPostgresStore(db)
		if err := pg.EnsureSchema(context.Background()); err != nil {
			db.Close()
			return nil, nil, err
		}
		return pg, func() { db.Close() }, nil
	}

	fs, err := repository.NewFileStore(cfg.DataFile)
	if err != nil {
		return nil, nil, err
	}
	return fs, func() {}, nil
}
