package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"descansos/internal/api"
	"descansos/internal/audit"
	"descansos/internal/config"
	"descansos/internal/database"
	"descansos/internal/events"
	"descansos/internal/identity"
	"descansos/internal/metrics"
	"descansos/internal/notify"
	"descansos/internal/schedule"
	"descansos/internal/service"
	"descansos/internal/shift"
)

func main() {
	// Initialize logger
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("DESCANSOS_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	loc, err := cfg.Location()
	if err != nil {
		logger.Fatal().Err(err).Str("timezone", cfg.Scheduling.Timezone).Msg("load timezone")
	}

	shifts, err := cfg.ShiftSet()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid shift configuration")
	}

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer db.Close()

	var rdb *redis.Client
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backups := database.NewBackupService(cfg.Database.Path, cfg.Database.Backup, logger)
	backups.Start(ctx)
	defer backups.Stop()

	feed := events.NewFeed(rdb, logger)
	go feed.Run(ctx)

	cal := shift.NewCalendar(shifts, loc)
	engine := schedule.NewEngine(cfg.Scheduling.AllowedDurations)
	idents := identity.NewService(db, logger)
	breaks := service.New(db, cal, engine, feed, cfg.Scheduling.BudgetCeilingMinutes, logger)

	metrics.Register()

	var notifier notify.Notifier
	if cfg.Notifier.TelegramToken != "" {
		tn, err := notify.NewTelegramNotifier(cfg.Notifier.TelegramToken, cfg.Notifier.TelegramChatID)
		if err != nil {
			logger.Fatal().Err(err).Msg("telegram notifier error")
		}
		notifier = tn
	} else {
		notifier = &notify.LogNotifier{Logger: logger}
	}

	reminders := notify.NewService(notify.Config{
		Lead:          cfg.NotifierLead(),
		CheckInterval: cfg.NotifierInterval(),
		RatePerSecond: cfg.Notifier.RatePerSecond,
		Burst:         cfg.Notifier.Burst,
	}, db, notifier, logger)
	reminders.Start(ctx)
	defer reminders.Stop()

	if cfg.Audit.Enabled {
		exporters := []audit.Exporter{audit.NewExcelExporter(cfg.Audit.ExportDir)}
		if cfg.Audit.Sheets.Enabled {
			se, err := audit.NewSheetsExporter(ctx, cfg.Audit.Sheets.CredentialsFile, cfg.Audit.Sheets.SpreadsheetID)
			if err != nil {
				logger.Fatal().Err(err).Msg("sheets exporter error")
			}
			exporters = append(exporters, se)
		}
		sweeper := audit.NewService(audit.Config{
			RetentionDays: cfg.Audit.RetentionDays,
		}, db, exporters, logger)
		sweeper.Start(ctx)
		defer sweeper.Stop()
	}

	if cfg.Monitoring.HealthCheckPort == 0 {
		cfg.Monitoring.HealthCheckPort = 8090
	}
	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, db, rdb, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		if cfg.Monitoring.PrometheusPort == 0 {
			cfg.Monitoring.PrometheusPort = 9090
		}
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	server := api.NewHTTPServer(cfg.Server.Port, breaks, idents, feed, cfg.Scheduling.SlotMinutes, logger)
	logger.Info().Str("timezone", cfg.Scheduling.Timezone).Msg("break scheduler started")
	if err := server.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("API server error")
	}
}

func startHealthServer(ctx context.Context, port int, db *database.DB, rdb *redis.Client, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := db.PingContext(ctxPing); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		if rdb != nil {
			if err := rdb.Ping(ctxPing).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("health server error")
	}
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
