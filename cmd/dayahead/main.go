package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	cachesqlite "github.com/gridwatch/dayahead/internal/cache/sqlite"
	"github.com/gridwatch/dayahead/internal/config"
	"github.com/gridwatch/dayahead/internal/coordinator"
	"github.com/gridwatch/dayahead/internal/pricing"
	"github.com/gridwatch/dayahead/internal/publish"
	"github.com/gridwatch/dayahead/internal/rates"
	"github.com/gridwatch/dayahead/internal/scheduler"
	"github.com/gridwatch/dayahead/internal/server"
	"github.com/gridwatch/dayahead/internal/upstream"
	"github.com/gridwatch/dayahead/internal/window"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	// Root context: cancelled on SIGINT/SIGTERM so in-flight cycles stop
	// promptly during graceful shutdown.
	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	store, err := cachesqlite.Open(cfg.Database.Path)
	if err != nil {
		slog.Error("failed to open cache database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	// Upstream providers
	registry := upstream.NewRegistry()
	registry.Register(upstream.NewAwattar())
	registry.Register(upstream.NewEnergyCharts(upstream.WithBiddingZone(cfg.Prices.BiddingZone)))

	coord := coordinator.New(store, registry, rates.New(), coordinator.Options{
		Interval:  cfg.Interval(),
		Preferred: cfg.Prices.PreferredProvider,
		KeepDays:  cfg.Prices.KeepDays,
	})
	coord.SetCalculator(pricing.NewCalculator(pricing.TariffConfig{
		GridFee:   cfg.Tariff.GridFee,
		Surcharge: cfg.Tariff.Surcharge,
		VATRate:   cfg.Tariff.VATRate,
		Currency:  cfg.Prices.Currency,
	}, coord.CurrencyRate))

	win := window.NewStore(time.Now)

	// Retained publish surface; optional when no broker is configured.
	var publisher *publish.Controller
	if cfg.MQTT.BrokerURL != "" {
		transport, err := publish.NewMQTTTransport(cfg.MQTT.BrokerURL, cfg.MQTT.ClientID)
		if err != nil {
			slog.Error("failed to connect to broker", "broker", cfg.MQTT.BrokerURL, "error", err)
			os.Exit(1)
		}
		defer transport.Close()
		publisher = publish.NewController(store, transport, cfg.MQTT.TopicPrefix, time.Now)
	} else {
		slog.Warn("no broker configured, retained publishing disabled")
	}

	sched := scheduler.New(rootCtx, coord, win, publisher, cfg.Schedule.TomorrowAfterHour)
	if err := sched.RegisterAll(cfg.Schedule.FetchCron, cfg.Schedule.PublishCron, cfg.Schedule.SweepCron); err != nil {
		slog.Error("failed to register scheduled tasks", "error", err)
		os.Exit(1)
	}
	sched.Start()
	go sched.RunStartup()

	srv := server.New(rootCtx, cfg.Server.Port, coord, win)

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("server started", "port", cfg.Server.Port)
	<-done

	rootCancel()
	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	slog.Info("server stopped")
}
