package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/paygate/reconcile/internal/api"
	"github.com/paygate/reconcile/internal/config"
	"github.com/paygate/reconcile/internal/gateway"
	"github.com/paygate/reconcile/internal/ledger"
	"github.com/paygate/reconcile/internal/qr"
	"github.com/paygate/reconcile/internal/repository"
	"github.com/paygate/reconcile/internal/service"
	"github.com/paygate/reconcile/internal/telemetry"
)

func main() {
	// Load configuration
	_ = godotenv.Load()
	cfg := config.Load()

	// Initialize telemetry
	if err := telemetry.InitTelemetry("payment-reconciler"); err != nil {
		panic(fmt.Sprintf("Failed to initialize telemetry: %v", err))
	}
	defer telemetry.Shutdown(context.Background())

	telemetry.Logger.Info("Starting Payment Reconciler",
		zap.Bool("sandbox", cfg.Sandbox),
	)

	// Connect to PostgreSQL
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		telemetry.Logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Initialize repositories
	paymentRepo := repository.NewPaymentRepository(db)
	if err := paymentRepo.InitDB(); err != nil {
		telemetry.Logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	chargeRepo := repository.NewChargeRepository(db)

	// Connect to Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.RedisURL,
	})

	// Connect to NATS
	nc, err := nats.Connect(cfg.NatsURL)
	if err != nil {
		telemetry.Logger.Fatal("Failed to connect to NATS", zap.Error(err))
	}
	defer nc.Close()

	// Connect to Kafka
	kafkaWriter := &kafka.Writer{
		Addr:     kafka.TCP(cfg.KafkaBrokers),
		Topic:    "payment.confirmed",
		Balancer: &kafka.LeastBytes{},
	}
	defer kafkaWriter.Close()

	// External collaborators get their own bounded-timeout clients.
	httpClient := &http.Client{Timeout: 30 * time.Second}
	gatewayClient := gateway.NewClient(cfg.Gateway, chargeRepo, httpClient)
	verifier := gateway.NewVerifier(cfg.Gateway, cfg.Sandbox)
	fetcher := ledger.NewFetcher(cfg.Ledger, httpClient)
	qrBuilder := qr.NewBuilder(cfg.QR, httpClient)

	reconciler := service.NewReconciler(paymentRepo, chargeRepo, fetcher,
		redisClient, nc, kafkaWriter, telemetry.Logger)

	// Setup Gin router
	r := api.NewRouter(cfg, chargeRepo, paymentRepo, gatewayClient, verifier, qrBuilder, reconciler)

	// Setup HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	// Start server in goroutine
	go func() {
		telemetry.Logger.Info("Payment Reconciler starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			telemetry.Logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	telemetry.Logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		telemetry.Logger.Error("Server forced to shutdown", zap.Error(err))
	}

	telemetry.Logger.Info("Server exited")
}
