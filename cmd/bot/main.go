package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"
	"gopkg.in/telebot.v3"

	"github.com/mkondr/salonbot/infrastructure/tracing"
	"github.com/mkondr/salonbot/internal/app/bot"
	"github.com/mkondr/salonbot/internal/app/notifier"
	"github.com/mkondr/salonbot/internal/config"
	"github.com/mkondr/salonbot/internal/metrics"
	reminders_repo "github.com/mkondr/salonbot/internal/repository/reminders"
	"github.com/mkondr/salonbot/internal/service/audit"
	reminders_serv "github.com/mkondr/salonbot/internal/service/reminders"
	"github.com/mkondr/salonbot/internal/yclients"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	metrics.Init()
	metrics.StartMetricsServer(cfg.MetricsPort)

	tgBot, err := telebot.NewBot(telebot.Settings{
		Token:  cfg.TelegramConfig.Token,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
	})
	if err != nil {
		logger.Fatal("failed to init telegram bot", zap.Error(err))
	}

	connStr := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.PostgresConfig.User,
		cfg.PostgresConfig.Password,
		cfg.PostgresConfig.Host,
		cfg.PostgresConfig.Port,
		cfg.PostgresConfig.DBName,
		cfg.PostgresConfig.SSLMode,
	)
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		logger.Fatal("failed to open postgres", zap.Error(err))
	}
	defer db.Close()

	if err = runMigrations(connStr); err != nil {
		logger.Fatal("migration error", zap.Error(err))
	}

	if cfg.TracingConfig.Endpoint != "" {
		_, cleanup, tracingErr := tracing.InitTracing(cfg.TracingConfig.Endpoint)
		if tracingErr != nil {
			logger.Fatal("failed to init tracing", zap.Error(tracingErr))
		}
		defer cleanup()
	}

	bookings := yclients.New(yclients.Config{
		BaseURL:       cfg.YClientsConfig.BaseURL,
		CompanyID:     cfg.YClientsConfig.CompanyID,
		PartnerToken:  cfg.YClientsConfig.PartnerToken,
		UserToken:     cfg.YClientsConfig.UserToken,
		Timeout:       time.Duration(cfg.YClientsConfig.RequestTimeout) * time.Second,
		RatePerMinute: cfg.YClientsConfig.RatePerMinute,
	}, logger)

	remindersServ := reminders_serv.NewDefaultService(reminders_repo.NewDefaultRepository(db))

	var auditPub audit.Publisher = audit.Nop{}
	if len(cfg.KafkaConfig.Brokers) > 0 {
		kafkaServ := audit.New(cfg.KafkaConfig.Brokers, cfg.KafkaConfig.Topic)
		defer kafkaServ.Close() //nolint:errcheck
		auditPub = kafkaServ
	}

	botImpl := bot.New(tgBot, bookings, remindersServ, logger, cfg.TelegramConfig.AdminChatID)

	notifierImpl := notifier.New(
		bookings,
		remindersServ,
		botImpl,
		auditPub,
		logger,
		time.Duration(cfg.ReminderConfig.HoursBefore)*time.Hour,
		cfg.ReminderConfig.CheckSchedule,
	)
	if err = notifierImpl.Start(); err != nil {
		logger.Fatal("failed to start notifier", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go botImpl.Start()

	<-ctx.Done()
	logger.Info("shutting down")
	notifierImpl.Stop()
	botImpl.Stop()
}

func runMigrations(dbURL string) error {
	m, err := migrate.New(
		"file://migrations",
		dbURL,
	)
	if err != nil {
		return fmt.Errorf("failed to init migrations: %w", err)
	}

	if err = m.Up(); !errors.Is(err, migrate.ErrNoChange) && err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	return nil
}
