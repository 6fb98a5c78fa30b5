package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"pizzeria-orders/internal/changefeed"
	"pizzeria-orders/internal/config"
	"pizzeria-orders/internal/database"
	"pizzeria-orders/internal/gateway"
	"pizzeria-orders/internal/logger"
	"pizzeria-orders/internal/notify"
	"pizzeria-orders/internal/projection"
	"pizzeria-orders/internal/repository"
	"pizzeria-orders/internal/services/kitchen"
	"pizzeria-orders/internal/services/ordering"
)

func main() {
	var (
		mode       = flag.String("mode", "", "Service mode (order-service, kitchen-display)")
		port       = flag.Int("port", 3000, "HTTP port")
		configPath = flag.String("config", "config.yaml", "Path to config file")
	)
	flag.Parse()

	if *mode == "" {
		fmt.Fprintf(os.Stderr, "Error: --mode flag is required\n")
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(*mode)
	requestID := logger.GenerateRequestID()

	log.Info("service_started", fmt.Sprintf("Starting %s", *mode), requestID, map[string]any{
		"mode": *mode,
		"port": *port,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch *mode {
	case "order-service":
		err = runOrderService(ctx, cfg, log, *port)
	case "kitchen-display":
		err = runKitchenDisplay(ctx, cfg, log)
	default:
		log.Error("validation_failed", fmt.Sprintf("Unknown mode: %s", *mode), requestID, nil, nil)
		os.Exit(1)
	}

	if err != nil {
		log.Error("service_failed", fmt.Sprintf("%s failed", *mode), requestID, err, nil)
		os.Exit(1)
	}

	log.Info("service_stopped", "Service stopped gracefully", requestID, nil)
}

// runOrderService runs the HTTP API together with the change feed projector.
func runOrderService(ctx context.Context, cfg *config.Config, log *logger.Logger, port int) error {
	requestID := logger.GenerateRequestID()

	db, err := database.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	log.Info("db_connected", "Connected to PostgreSQL database", requestID, nil)

	if err := db.RunMigrations(ctx, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	feedConn, err := changefeed.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize change feed: %w", err)
	}
	defer feedConn.Close()

	log.Info("rabbitmq_connected", "Connected to RabbitMQ", requestID, nil)

	publisher := changefeed.NewPublisher(feedConn, log)
	subscriber := changefeed.NewSubscriber(feedConn, log, "order-service")

	orders := repository.NewOrders(db, publisher, log)
	projector := projection.NewProjector(orders, subscriber, log)

	sender := gateway.New(cfg.Gateway, log)
	dispatcher := notify.NewDispatcher(sender, log, cfg.Gateway.DefaultTo, notify.RetryPolicy{})

	service := ordering.NewService(orders, projector, dispatcher, log)
	health := func(ctx context.Context) bool {
		return db.Ping(ctx) == nil && !feedConn.IsClosed()
	}
	handler := ordering.NewHandler(service, dispatcher, health, log)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: handler.SetupRoutes(),
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return projector.Run(groupCtx)
	})

	group.Go(func() error {
		log.Info("http_started", fmt.Sprintf("Order service listening on port %d", port), requestID, map[string]any{
			"port": port,
		})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return group.Wait()
}

// runKitchenDisplay runs the read-only order board against the same store
// and feed the order service uses.
func runKitchenDisplay(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	requestID := logger.GenerateRequestID()

	db, err := database.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	feedConn, err := changefeed.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize change feed: %w", err)
	}
	defer feedConn.Close()

	log.Info("display_started", "Kitchen display connected", requestID, nil)

	subscriber := changefeed.NewSubscriber(feedConn, log, "kitchen-display")
	orders := repository.NewOrders(db, nil, log)
	projector := projection.NewProjector(orders, subscriber, log)
	display := kitchen.NewDisplay(projector, os.Stdout, log)

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return display.Run(groupCtx)
	})

	group.Go(func() error {
		return projector.Run(groupCtx)
	})

	return group.Wait()
}
