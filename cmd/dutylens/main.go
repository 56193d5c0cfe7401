package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/dutylens/dutylens/internal/cache"
	"github.com/dutylens/dutylens/internal/config"
	"github.com/dutylens/dutylens/internal/dataset"
	"github.com/dutylens/dutylens/internal/handlers"
	"github.com/dutylens/dutylens/internal/logging"
	"github.com/dutylens/dutylens/internal/middleware"
	"github.com/dutylens/dutylens/internal/notify"
	"github.com/dutylens/dutylens/internal/repository"
	"github.com/dutylens/dutylens/internal/seed"
	"github.com/dutylens/dutylens/internal/service"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	rulesetDir := flag.String("rulesets", "rulesets", "directory of builtin rule set files")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logging.New(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format)
	logging.SetDefault(logger)

	ctx := context.Background()

	var repo repository.Repository
	switch cfg.Database.Type {
	case "memory":
		repo = repository.NewInMemoryRepository()
	default:
		connString := cfg.Database.Postgres.ConnString()

		logger.InfoContext(ctx, "running database migrations")
		m, err := migrate.New("file://migrations", connString)
		if err != nil {
			log.Fatalf("Failed to initialize migrations: %v", err)
		}
		if err := m.Up(); err != nil && err != migrate.ErrNoChange {
			log.Fatalf("Failed to run migrations: %v", err)
		}

		pg, err := repository.NewPostgresRepository(ctx, connString)
		if err != nil {
			log.Fatalf("Failed to connect to PostgreSQL: %v", err)
		}
		repo = pg
	}
	defer repo.Close()

	if err := seed.NewSeeder(*rulesetDir, repo, logger).Seed(ctx); err != nil {
		log.Fatalf("Failed to seed builtin rule sets: %v", err)
	}

	var rowCache service.RowCache
	if cfg.Redis.Enabled {
		rc := cache.New(cfg.Redis.Addr, cfg.Redis.DB, cfg.Redis.TTL)
		defer rc.Close()
		rowCache = rc
	}

	var publisher notify.Publisher = notify.NopPublisher{}
	if cfg.NATS.Enabled {
		natsCfg := notify.DefaultConfig()
		natsCfg.URL = cfg.NATS.URL
		client, err := notify.NewClient(natsCfg)
		if err != nil {
			log.Fatalf("Failed to connect to NATS: %v", err)
		}
		defer client.Close()
		publisher = client
	}

	loader := dataset.NewLoader(cfg.Datasets.Dir)
	svc := service.NewService(repo, loader, rowCache, publisher, logger)
	handler := handlers.NewHandler(svc)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      middleware.RequestID(handler.Routes()),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("dutylens listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.WriteTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	logger.Info("server stopped gracefully")
}
