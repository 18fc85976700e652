package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"freight-tracker/internal/core/cache"
	"freight-tracker/internal/core/config"
	"freight-tracker/internal/core/logger"
	"freight-tracker/internal/core/server"
	addressadapter "freight-tracker/internal/features/addresses/adapters"
	addresshandler "freight-tracker/internal/features/addresses/handler"
	addressservice "freight-tracker/internal/features/addresses/service"
	dashboardadapter "freight-tracker/internal/features/dashboard/adapters"
	dashboardhandler "freight-tracker/internal/features/dashboard/handler"
	dashboardservice "freight-tracker/internal/features/dashboard/service"
	shipmentadapter "freight-tracker/internal/features/shipments/adapters"
	shipmenthandler "freight-tracker/internal/features/shipments/handler"
	shipmentports "freight-tracker/internal/features/shipments/ports"
	shipmentservice "freight-tracker/internal/features/shipments/service"
	trackingadapter "freight-tracker/internal/features/tracking/adapters"
	trackinghandler "freight-tracker/internal/features/tracking/handler"
	trackingports "freight-tracker/internal/features/tracking/ports"
	trackingservice "freight-tracker/internal/features/tracking/service"

	"go.uber.org/zap"
)

// @title Freight Tracker API
// @version 1.0
// @description Shipment registration, live position tracking and delivery dashboard for freight cooperatives.
// @contact.name API Support
// @contact.email suporte@rastreiocargas.com.br
// @license.name MIT
// @host localhost:8080
// @BasePath /
func main() {
	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Init(cfg.Environment, cfg.LogLevel); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync()

	l := logger.Get()
	l.Info("Application starting",
		zap.String("environment", cfg.Environment),
		zap.String("log_level", cfg.LogLevel),
	)

	// Cache is best-effort: a dead redis degrades lookups, it never blocks boot.
	var cacheStore cache.Cache
	if adapter, err := cache.NewRedisAdapter(cfg.Redis.URL); err != nil {
		l.Warn("Redis unavailable, running without cache", zap.Error(err))
	} else {
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := adapter.Ping(pingCtx); err != nil {
			l.Warn("Redis unreachable, running without cache", zap.Error(err))
			adapter.Close()
		} else {
			cacheStore = adapter
			defer adapter.Close()
		}
		cancel()
	}

	// Persistence: PostgreSQL when configured, in-memory otherwise.
	var (
		shipmentRepo shipmentports.ShipmentRepository
		positionRepo shipmentports.PositionRepository
		historyRepo  shipmentports.HistoryRepository
		alertRepo    shipmentports.AlertRepository
	)
	if cfg.Database.URL != "" {
		store, err := shipmentadapter.NewPostgresStore(context.Background(), cfg.Database.URL)
		if err != nil {
			l.Fatal("PostgreSQL connection failed", zap.Error(err))
		}
		defer store.Close()
		shipmentRepo = store.Shipments()
		positionRepo = store.Positions()
		historyRepo = store.History()
		alertRepo = store.Alerts()
		l.Info("PostgreSQL connection verified")
	} else {
		store := shipmentadapter.NewMemoryStore()
		shipmentRepo = store.Shipments()
		positionRepo = store.Positions()
		historyRepo = store.History()
		alertRepo = store.Alerts()
		l.Warn("DATABASE_URL not set, using in-memory store")
	}

	// Broker is optional; without it alerts stay local.
	var events shipmentports.EventPublisher
	if cfg.Broker.URL != "" {
		publisher, err := shipmentadapter.NewAmqpPublisher(cfg.Broker.URL, cfg.Broker.Exchange)
		if err != nil {
			l.Fatal("RabbitMQ connection failed", zap.Error(err))
		}
		defer publisher.Close()
		events = publisher
		l.Info("RabbitMQ connection verified", zap.String("exchange", cfg.Broker.Exchange))
	}

	// Dashboard: snapshot service, websocket hub and the periodic refresher.
	dashboardSvc := dashboardservice.NewDashboardService(shipmentRepo, positionRepo)
	hub := dashboardadapter.NewHub()
	refresher := dashboardservice.NewRefresher(dashboardSvc, hub,
		time.Duration(cfg.Tracking.RefreshIntervalSeconds)*time.Second)
	defer refresher.Close()

	// Shipment changes fan out to the broker and the dashboard refresher.
	notifier := dashboardadapter.NewRefreshNotifier(events, refresher)

	geocoder := shipmentadapter.NewHTTPGeocoder(cfg.Collaborators.GeocoderURL, cfg.Collaborators.GeocoderToken, cacheStore)
	shipmentSvc := shipmentservice.NewShipmentService(
		shipmentRepo, positionRepo, historyRepo, alertRepo,
		geocoder, notifier, cfg.BaseURL,
	)
	shipmentHdl := shipmenthandler.NewShipmentHandler(shipmentSvc)

	// Tracking: gateway-driven capture sessions plus browser-pushed fixes.
	var provider trackingports.GeolocationProvider
	if cfg.Collaborators.GatewayURL != "" {
		provider = trackingadapter.NewGatewayProvider(cfg.Collaborators.GatewayURL, cfg.Collaborators.GatewayToken)
		l.Info("GPS gateway configured", zap.String("url", cfg.Collaborators.GatewayURL))
	}
	trackingSvc := trackingservice.NewTrackingService(
		shipmentRepo, positionRepo, provider,
		time.Duration(cfg.Tracking.CaptureIntervalMinutes)*time.Minute,
		time.Duration(cfg.Tracking.CaptureTimeoutSeconds)*time.Second,
	)
	defer trackingSvc.Shutdown()
	trackingHdl := trackinghandler.NewTrackingHandler(trackingSvc)

	addressSvc := addressservice.NewAddressService(addressadapter.NewViaCepClient(cfg.Collaborators.ViaCepURL, cacheStore))
	addressHdl := addresshandler.NewAddressHandler(addressSvc)

	dashboardHdl := dashboardhandler.NewDashboardHandler(dashboardSvc, refresher, hub)

	srv := server.New(cfg)

	shipmentHdl.RegisterRoutes(srv.App)
	trackingHdl.RegisterRoutes(srv.App)
	dashboardHdl.RegisterRoutes(srv.App)
	addressHdl.RegisterRoutes(srv.App)

	// Stop accepting requests on SIGINT/SIGTERM; the deferred closes drain
	// tracking sessions, the refresher and the connections.
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		l.Info("Shutdown signal received")
		if err := srv.App.Shutdown(); err != nil {
			l.Error("Server shutdown failed", zap.Error(err))
		}
	}()

	if err := srv.Run(); err != nil {
		l.Fatal("Server failed to start", zap.Error(err))
	}
	l.Info("Server stopped")
}
