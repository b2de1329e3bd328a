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

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-booking/internal/auth"
	"ms-booking/internal/boats"
	"ms-booking/internal/config"
	"ms-booking/internal/coupons"
	"ms-booking/internal/gateway"
	"ms-booking/internal/kafka"
	"ms-booking/internal/logger"
	"ms-booking/internal/mailer"
	"ms-booking/internal/poller"
	"ms-booking/internal/reservation"
	"ms-booking/internal/reservation/db"
	"ms-booking/internal/reservation/reservation_api"
	rediswrap "ms-booking/internal/reservation/redis"
	"ms-booking/internal/scheduler"
)

func verifyConnections(ctx context.Context, cfg *config.Config, logger *logger.Logger) (*bun.DB, *redis.Client) {
	dsn := cfg.Database.ConnString()

	var sqldb *sql.DB
	var err error
	maxRetries := 5

	for i := 0; i < maxRetries; i++ {
		logger.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		sqldb, err = sql.Open("postgres", dsn)
		if err != nil {
			logger.Error("DATABASE", fmt.Sprintf("Failed to open PostgreSQL: %v", err))
			time.Sleep(2 * time.Second)
			continue
		}

		err = sqldb.Ping()
		if err == nil {
			break
		}

		logger.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}

	if err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL after %d attempts: %v", maxRetries, err))
	}

	logger.Info("DATABASE", "✅ PostgreSQL connection successful")

	sqldb.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.Database.MaxLifetime)

	bunDB := bun.NewDB(sqldb, pgdialect.New())

	redisAddr := cfg.Redis.Addr
	redisClient := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Redis connection error: %v", err))
	}

	logger.Info("DATABASE", fmt.Sprintf("✅ Redis connection successful to %s (DB: %d)", redisAddr, redisClient.Options().DB))
	return bunDB, redisClient
}

func main() {
	logger := logger.NewLogger()
	defer logger.Close()

	logger.Info("APP", "Starting Booking Engine initialization")

	if err := godotenv.Load(); err != nil {
		logger.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		logger.Info("CONFIG", "Loaded environment variables from .env file")
	}

	cfg := config.Load()
	timings := cfg.Timings()

	client := &http.Client{
		Timeout: time.Second * 10,
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("APP", "Verifying database connections")
	bunDB, redisClient := verifyConnections(ctx, cfg, logger)
	defer bunDB.Close()
	defer redisClient.Close()

	topics := kafka.Topics{
		ReservationCreated: cfg.Kafka.Topics.ReservationCreated,
		ReservationStatus:  cfg.Kafka.Topics.ReservationStatus,
		PaymentCaptured:    cfg.Kafka.Topics.PaymentCaptured,
	}
	kafkaProducer := kafka.NewProducer(cfg.Kafka.Brokers, topics, logger, cfg.Kafka.MockMode)
	logger.Info("KAFKA", "Kafka producer initialized successfully")

	if cfg.Kafka.MockMode {
		logger.Warn("KAFKA", "Mock mode enabled, events are logged but not published")
	} else {
		requiredTopics := []string{
			topics.ReservationCreated,
			topics.ReservationStatus,
			topics.PaymentCaptured,
		}
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, requiredTopics); err != nil {
			logger.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		} else {
			logger.Info("KAFKA", "Required topics ensured successfully")
		}
	}

	store := &db.DB{Bun: bunDB}
	boatStore := &boats.Store{Bun: bunDB}
	couponStore := &coupons.Store{Bun: bunDB}
	locks := rediswrap.NewRedis(redisClient, logger)

	linkGateway := gateway.NewClient(
		cfg.MamoPay.BaseURL,
		cfg.MamoPay.APIKey,
		cfg.App.FrontendURL,
		cfg.Production,
		timings.RateLimitFallback,
		timings.AuthCooldown,
		client,
		logger,
	)
	if linkGateway.MockMode() {
		logger.Warn("GATEWAY", "No payment provider API key configured, payment links run in mock mode")
	}

	notifier := mailer.New(
		cfg.Email.SMTPHost,
		cfg.Email.SMTPPort,
		cfg.Email.SMTPUsername,
		cfg.Email.SMTPPassword,
		cfg.Email.FromAddress,
		logger,
	)

	reservationService := reservation.NewService(
		store,
		boatStore,
		couponStore,
		linkGateway,
		notifier,
		kafkaProducer,
		logger,
		cfg.Email.AdminEmail,
	)

	handler := reservation_api.NewHandler(reservationService, logger)

	logger.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()
	r.Use(reservation_api.RequestLogger(logger))

	// --- Public Routes ---
	r.Post("/api/booking", handler.CreateReservation)
	logger.Info("ROUTER", "Public booking endpoint registered at /api/booking")

	// --- Protected Routes ---
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware())
		logger.Info("AUTH", "JWT middleware applied to protected API routes")

		r.Route("/api/booking", func(r chi.Router) {
			r.Get("/stats", handler.GetStats)
			r.Get("/{reservationId}", handler.GetReservation)
			r.Put("/{reservationId}", handler.UpdateReservation)
			r.Delete("/{reservationId}", handler.DeleteReservation)
		})
		logger.Info("ROUTER", "Operator booking routes registered under /api/booking")
	})

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	logger.Info("APP", "Starting settlement poller")
	settlementPoller := poller.New(
		store,
		linkGateway,
		notifier,
		kafkaProducer,
		locks,
		logger,
		timings.PollInterval,
		timings.CheckThrottle,
		cfg.Email.AdminEmail,
	)
	go settlementPoller.Run(ctx)

	logger.Info("APP", "Starting installment scheduler")
	installmentScheduler := scheduler.New(
		store,
		linkGateway,
		notifier,
		locks,
		logger,
		cfg.Scheduler.Hour,
		cfg.Scheduler.Minute,
		cfg.Email.AdminEmail,
	)
	if err := installmentScheduler.Start(ctx); err != nil {
		logger.Fatal("SCHEDULER", fmt.Sprintf("Failed to start installment scheduler: %v", err))
	}
	defer installmentScheduler.Stop()

	go func() {
		logger.Info("HTTP", fmt.Sprintf("🚀 Booking Engine running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	logger.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	logger.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	cancel()
	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		logger.Info("HTTP", "✅ Booking Engine shutdown complete")
	}
}
