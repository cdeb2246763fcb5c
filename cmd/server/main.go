// main wires configuration, storage, brokers, and feature services into the
// HTTP server. Business logic lives in the internal packages; this file only
// assembles them and manages the process lifecycle.
package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"bluecarbon/internal/allometry"
	allometryhandler "bluecarbon/internal/allometry/handler"
	"bluecarbon/internal/audit"
	audithandler "bluecarbon/internal/audit/handler"
	"bluecarbon/internal/issuance"
	"bluecarbon/internal/platform/config"
	"bluecarbon/internal/platform/httpserver"
	"bluecarbon/internal/platform/logger"
	"bluecarbon/internal/platform/redis"
	httptransport "bluecarbon/internal/transport/http"
	"bluecarbon/internal/verification"
	verificationhandler "bluecarbon/internal/verification/handler"
	"bluecarbon/internal/verification/metrics"
	"bluecarbon/pkg/platform/tx"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New(logger.ParseLevel(cfg.LogLevel))

	health := map[string]httptransport.HealthChecker{}

	// Storage: Postgres when configured, in-memory otherwise.
	var (
		verificationStore verification.Store
		auditStore        audit.Store
		runner            tx.Runner
	)
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			log.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			log.Error("database unreachable", "error", err)
			os.Exit(1)
		}
		verificationStore = verification.NewPostgresStore(db)
		auditStore = audit.NewPostgresStore(db)
		runner = tx.NewSQLRunner(db)
		health["postgres"] = func(r *http.Request) error { return db.PingContext(r.Context()) }
	} else {
		log.Warn("DATABASE_URL not set, using in-memory stores")
		verificationStore = verification.NewInMemoryStore()
		auditStore = audit.NewInMemoryStore()
		runner = tx.NewPassthroughRunner()
	}

	recorder := audit.NewRecorder(auditStore)

	// Species table: built-in parameters unless a YAML override is given.
	speciesTable := allometry.DefaultSpeciesTable()
	if cfg.SpeciesFile != "" {
		loaded, err := allometry.LoadSpeciesFile(cfg.SpeciesFile)
		if err != nil {
			log.Error("failed to load species file", "path", cfg.SpeciesFile, "error", err)
			os.Exit(1)
		}
		speciesTable = loaded
		log.Info("species table loaded", "path", cfg.SpeciesFile, "species", len(speciesTable.List()))
	}
	calculator := allometry.NewCalculator(speciesTable,
		allometry.WithAnnualizationYears(cfg.DefaultAnnualizationYears))

	serviceOpts := []verification.Option{
		verification.WithLogger(log),
		verification.WithMetrics(metrics.New()),
	}

	// Reviewer lease: shared via Redis when configured.
	redisClient, err := redis.New(cfg.RedisURL, cfg.Redis)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		serviceOpts = append(serviceOpts, verification.WithLease(verification.NewRedisLease(redisClient)))
		health["redis"] = func(r *http.Request) error { return redisClient.Health(r.Context()) }
	} else {
		serviceOpts = append(serviceOpts, verification.WithLease(verification.NewInMemoryLease()))
	}

	// Issuance trigger: Kafka when brokers are configured.
	if len(cfg.KafkaBrokers) > 0 {
		publisher, err := issuance.NewKafkaPublisher(cfg.KafkaBrokers, cfg.IssuanceTopic)
		if err != nil {
			log.Error("failed to create issuance publisher", "error", err)
			os.Exit(1)
		}
		defer publisher.Close()
		serviceOpts = append(serviceOpts, verification.WithIssuance(publisher))
		log.Info("issuance publisher enabled", "topic", cfg.IssuanceTopic)
	} else {
		log.Warn("KAFKA_BROKERS not set, issuance requests will not be published")
	}

	verificationService := verification.NewService(verificationStore, recorder, runner, serviceOpts...)

	router := httptransport.NewRouter(health,
		verificationhandler.New(verificationService, log),
		allometryhandler.New(calculator, log),
		audithandler.New(recorder, log),
	)
	srv := httpserver.New(cfg.Addr, router)

	go func() {
		log.Info("starting bluecarbon verification service", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
