package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lexflow/api"
	"lexflow/audit"
	"lexflow/config"
	"lexflow/db"
	"lexflow/logger"
	"lexflow/notify"
	"lexflow/reminder"
	"lexflow/signature"
	"lexflow/tenant"
	"lexflow/trigger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load configuration: %v", err)
	}

	appLog := logger.New(cfg.LogLevel, cfg.Environment)

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		appLog.Fatalf("bootstrap database pool: %v", err)
	}
	defer pool.Close()
	appLog.Info("database connection established")

	requestStore := signature.NewPGStore(pool)
	queueStore := reminder.NewPGStore(pool)
	prefStore := tenant.NewPGPreferenceStore(pool)
	sink := audit.NewPGSink(pool)

	var email reminder.EmailSender
	if cfg.EmailProviderURL != "" {
		email = &notify.HTTPEmailSender{URL: cfg.EmailProviderURL, APIKey: cfg.EmailProviderKey}
	} else {
		appLog.Warn("no email provider configured, using log-only transport")
		email = &notify.LogEmailSender{Log: appLog}
	}

	var sms, whatsapp reminder.TextSender
	if cfg.TextProviderURL != "" {
		sms = &notify.HTTPTextSender{URL: cfg.TextProviderURL, APIKey: cfg.TextProviderKey, Kind: "sms"}
		whatsapp = &notify.HTTPTextSender{URL: cfg.TextProviderURL, APIKey: cfg.TextProviderKey, Kind: "whatsapp"}
	} else {
		appLog.Warn("no text provider configured, using log-only transport")
		sms = &notify.LogTextSender{Log: appLog, Kind: "sms"}
		whatsapp = &notify.LogTextSender{Log: appLog, Kind: "whatsapp"}
	}

	dispatcher := reminder.NewDispatcher(email, sms, whatsapp, cfg.DispatchTimeout)

	engine := reminder.NewService(queueStore, requestStore, prefStore, dispatcher, sink, appLog, reminder.Config{
		SweepWorkers:      cfg.SweepWorkers,
		SweepBatchSize:    cfg.SweepBatchSize,
		RetryLookback:     cfg.RetryLookback,
		StaleClaimHorizon: cfg.StaleClaimHorizon,
	})
	requestService := signature.NewService(pool, engine, sink, appLog)

	crons := trigger.NewCron(engine, appLog,
		cfg.CronSpecSweep, cfg.CronSpecRetry, cfg.CronSpecCleanup, cfg.CleanupMaxAgeDays)
	if err := crons.Start(); err != nil {
		appLog.Fatalf("start cron triggers: %v", err)
	}

	router := api.NewRouter(&api.Handler{
		Reminders: engine,
		Requests:  requestService,
		Log:       appLog,
	})
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		appLog.WithField("addr", cfg.HTTPAddr).Info("http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLog.Fatalf("http server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLog.Info("shutting down")
	crons.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		appLog.WithError(err).Error("http server shutdown")
	}
	appLog.Info("shutdown complete")
}
