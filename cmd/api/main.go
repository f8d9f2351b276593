package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"database/sql"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/avitria/disaster-report-service/internal/cache"
	"github.com/avitria/disaster-report-service/internal/config"
	"github.com/avitria/disaster-report-service/internal/handler"
	s3 "github.com/avitria/disaster-report-service/internal/integrations/s3"
	"github.com/avitria/disaster-report-service/internal/observability"
	"github.com/avitria/disaster-report-service/internal/repository"
	"github.com/avitria/disaster-report-service/internal/service"
	"github.com/avitria/disaster-report-service/internal/validation"
)

func main() {
	// Local .env, if present
	_ = godotenv.Load()

	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logLevel, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	// Initialize database
	db, err := sql.Open("postgres", cfg.DBConn)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		logger.Fatalf("Failed to ping database: %v", err)
	}

	// Initialize layers
	metrics := observability.NewMetrics()
	repo := repository.NewRepository(db, cfg.DBTimeout)
	respCache := cache.New(cfg.CacheSize, cfg.CacheDuration, metrics)
	signer := s3.NewSigner(cfg, logger)
	gate := validation.NewGate(cfg)
	svc := service.NewService(repo, signer, respCache, gate, metrics, logger)
	h := handler.NewHandler(svc, respCache, logger)

	// Setup router
	r := mux.NewRouter()
	h.Routes(r)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	logger.Infof("Starting server on %s", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("Server failed: %v", err)
	}
}
