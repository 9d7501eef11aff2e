package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog/log"

	"github.com/cenfotec-cedula5/energy-monitor/internal/analyzer"
	"github.com/cenfotec-cedula5/energy-monitor/internal/cloud"
	"github.com/cenfotec-cedula5/energy-monitor/internal/config"
	"github.com/cenfotec-cedula5/energy-monitor/internal/database"
	httpHandlers "github.com/cenfotec-cedula5/energy-monitor/internal/http"
	"github.com/cenfotec-cedula5/energy-monitor/internal/logging"
	"github.com/cenfotec-cedula5/energy-monitor/internal/metrics"
	"github.com/cenfotec-cedula5/energy-monitor/internal/mqtt"
	"github.com/cenfotec-cedula5/energy-monitor/internal/repository"
	"github.com/cenfotec-cedula5/energy-monitor/internal/service"
	"github.com/cenfotec-cedula5/energy-monitor/internal/store"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("api exit")
	}
}

// run wires the service and blocks until the listener stops. Startup errors
// are returned so deferred cleanup still runs.
func run() error {
	if err := config.Load(); err != nil {
		return fmt.Errorf("config load: %w", err)
	}
	logger := logging.Setup(os.Stdout, config.LogLevel(), config.LogFormat(), "energy-monitor")
	if err := config.Validate(); err != nil {
		return fmt.Errorf("config invalid: %w", err)
	}
	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gemini, err := analyzer.NewGemini(ctx, config.GoogleAPIKey(), config.GeminiModel(), config.ProviderTimeout(), logger)
	if err != nil {
		return fmt.Errorf("analyzer init: %w", err)
	}

	deps := service.Deps{Analyzer: gemini, Store: store.New(), Logger: logger}

	if dsn := config.DBDSN(); dsn != "" {
		db, err := database.Connect(ctx, dsn)
		if err != nil {
			return fmt.Errorf("db connect: %w", err)
		}
		defer db.Close()
		repos := repository.New(db)
		if n, err := repos.CountReadings(ctx); err == nil {
			log.Info().Int64("readings", n).Msg("reading journal enabled")
		}
		deps.Journal = repos
	}

	if config.UseCloudServices() {
		notifier, err := cloud.NewSNSClient(ctx, config.AWSRegion(), config.SNSTopicArn())
		if err != nil {
			return fmt.Errorf("sns init: %w", err)
		}
		deps.Notifier = notifier
		log.Info().Str("topic", config.SNSTopicArn()).Msg("failure notifications enabled")
	}

	svcs := service.New(deps)

	if config.MQTTEnabled() {
		sub := mqtt.NewSubscriber(mqtt.Options{
			Broker:   config.MQTTBroker(),
			ClientID: config.MQTTClientID(),
			Topic:    config.MQTTTopic(),
			QoS:      1,
		}, svcs.Readings.FromMQTT, logger)

		connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		err := sub.Connect(connectCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("mqtt connect: %w", err)
		}
		defer sub.Disconnect()
	}

	app := fiber.New(fiber.Config{
		AppName:               "energy-monitor",
		ErrorHandler:          httpHandlers.ErrorHandler,
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	httpHandlers.Register(app, svcs, config.StaticDir())

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown")
		}
	}()

	addr := config.APIAddr()
	log.Info().Str("addr", addr).Str("model", config.GeminiModel()).Msg("api listening")
	if err := app.Listen(addr); err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return nil
}
