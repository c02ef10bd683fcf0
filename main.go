package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-attendance/internal/auth"
	"ms-attendance/internal/badge"
	"ms-attendance/internal/config"
	"ms-attendance/internal/database/migrations"
	"ms-attendance/internal/kafka"
	"ms-attendance/internal/logger"
	"ms-attendance/internal/mode"
	mode_api "ms-attendance/internal/mode/api"
	"ms-attendance/internal/models"
	"ms-attendance/internal/registry"
	registry_db "ms-attendance/internal/registry/db"
	registry_api "ms-attendance/internal/registry/api"
	"ms-attendance/internal/scan"
	scan_api "ms-attendance/internal/scan/api"
	scan_db "ms-attendance/internal/scan/db"
	scan_redis "ms-attendance/internal/scan/redis"
	"ms-attendance/internal/sse"
	"ms-attendance/internal/stats"
	stats_api "ms-attendance/internal/stats/api"
)

func verifyConnections(ctx context.Context, cfg *config.Config, logger *logger.Logger) (*bun.DB, *redis.Client) {
	var sqldb *sql.DB
	var err error
	maxRetries := 5

	for i := 0; i < maxRetries; i++ {
		logger.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		sqldb, err = sql.Open("postgres", cfg.Database.DSN)
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

	sqldb.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.Database.MaxLifetime)

	logger.Info("DATABASE", "✅ PostgreSQL connection successful")

	bunDB := bun.NewDB(sqldb, pgdialect.New())

	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Redis connection error: %v", err))
	}
	logger.Info("DATABASE", fmt.Sprintf("✅ Redis connection successful to %s", cfg.Redis.Addr))

	return bunDB, redisClient
}

func runMigrations(bunDB *bun.DB, logger *logger.Logger) {
	runner := migrations.NewRunner(bunDB, migrations.DefaultOptions(), logger)
	if err := runner.Initialize(); err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Migration setup failed: %v", err))
	}
	if err := runner.RunMigrations(); err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Migrations failed: %v", err))
	}
	logger.Info("DATABASE", "✅ Schema migrations applied")
}

// statusRecorder captures the response status for the request log. Flush is
// forwarded so the SSE stream endpoint still sees a Flusher.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Flush() {
	if f, ok := s.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func requestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			log.LogAPI(r.Method, r.URL.Path, strconv.Itoa(rec.status), time.Since(start).String())
		})
	}
}

func main() {
	logger := logger.NewLogger()
	defer logger.Close()

	logger.Info("APP", "Starting Attendance Service initialization")

	if err := godotenv.Load(); err != nil {
		logger.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		logger.Info("CONFIG", "Loaded environment variables from .env file")
	}

	cfg := config.Load()
	ctx := context.Background()

	logger.Info("APP", "Verifying database connections")
	bunDB, redisClient := verifyConnections(ctx, cfg, logger)
	defer bunDB.Close()
	defer redisClient.Close()

	runMigrations(bunDB, logger)

	var kafkaProducer *kafka.Producer
	var kafkaConsumer *kafka.Consumer
	if cfg.Kafka.Enabled {
		logger.Info("KAFKA", fmt.Sprintf("Using Kafka brokers: %v", cfg.Kafka.Brokers))
		kafkaProducer = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics.ScanEvents, cfg.Kafka.Topics.ModeUpdated, logger)
		defer kafkaProducer.Close()

		requiredTopics := []string{
			cfg.Kafka.Topics.ScanEvents,
			cfg.Kafka.Topics.ModeUpdated,
		}
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, requiredTopics); err != nil {
			logger.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		} else {
			logger.Info("KAFKA", "Required topics ensured successfully")
		}

		kafkaConsumer = kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topics.ScanEvents, cfg.Kafka.GroupID)
		defer kafkaConsumer.Close()
	} else {
		logger.Warn("KAFKA", "Kafka disabled, scan events will not be streamed")
	}

	scanStore := &scan_db.DB{Bun: bunDB}
	confirmGuard := scan_redis.NewGuard(redisClient, cfg.Scan.ConfirmGuardTTL)
	badgeGen := badge.NewGenerator()

	var scanPublisher scan.EventPublisher
	var modePublisher mode.Publisher
	if kafkaProducer != nil {
		scanPublisher = kafkaProducer
		modePublisher = kafkaProducer
	}

	scanService := scan.NewService(scanStore, confirmGuard, scanPublisher)
	modeService := mode.NewService(scanStore, modePublisher)
	registryService := registry.NewService(&registry_db.DB{Bun: bunDB})
	statsService := stats.NewService(bunDB, redisClient)

	emitter := sse.NewScanEventEmitter()
	if kafkaConsumer != nil {
		go kafkaConsumer.Start(ctx, func(log models.ScanLog) {
			statsService.HandleScanEvent(log)
			emitter.Emit(log)
		})
		logger.Info("KAFKA", "Scan event consumer started")
	}

	scanHandler := scan_api.NewHandler(scanService, logger)
	modeHandler := mode_api.NewHandler(modeService, logger)
	registryHandler := registry_api.NewHandler(registryService, badgeGen, logger)
	statsHandler := stats_api.NewHandler(statsService, emitter, logger)

	logger.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()
	r.Use(requestLogger(logger))

	// --- Public Routes ---
	r.Get("/api/attendance/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// --- Protected Routes ---
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware())
		logger.Info("AUTH", "OIDC middleware applied to protected API routes")

		r.Route("/api/attendance", func(r chi.Router) {
			r.Route("/scan", func(r chi.Router) {
				r.Post("/preview", scanHandler.Preview)
				r.Post("/confirm", scanHandler.Confirm)
			})
			logger.Info("ROUTER", "Scan routes registered under /api/attendance/scan")

			r.Route("/mode", func(r chi.Router) {
				r.Get("/", modeHandler.GetMode)
				r.Put("/", modeHandler.UpdateMode)
			})
			logger.Info("ROUTER", "Mode routes registered under /api/attendance/mode")

			registryHandler.RegisterRoutes(r)
			logger.Info("ROUTER", "Registry routes registered under /api/attendance")

			statsHandler.RegisterRoutes(r)
			logger.Info("ROUTER", "Stats routes registered under /api/attendance")
		})
	})

	// No write timeout: the scan stream endpoint holds its response open.
	server := &http.Server{
		Addr:        cfg.Server.Port,
		Handler:     r,
		ReadTimeout: cfg.Server.ReadTimeout,
		IdleTimeout: cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("HTTP", fmt.Sprintf("🚀 Attendance Service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	logger.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	logger.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		logger.Info("HTTP", "✅ Attendance Service shutdown complete")
	}
}
