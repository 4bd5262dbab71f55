package server

import (
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"product-catalog/internal/client"
	"product-catalog/internal/config"
	"product-catalog/internal/database"
	custommiddleware "product-catalog/internal/middleware"
	"product-catalog/internal/repository"
	"product-catalog/internal/service"
	"product-catalog/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct {
	*http.Server
	config      *config.Config
	logger      *zap.Logger
	db          *sql.DB
	redisClient *redis.Client
}

func NewServer(cfg *config.Config, logger *zap.Logger, db *sql.DB, redisClient *redis.Client) *Server {
	router := chi.NewRouter()

	// Basic middleware stack
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Compress(5))
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))
	router.Use(custommiddleware.CORSMiddleware(nil, cfg.Server.Env == "development"))

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		custommiddleware.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
			"status":   "ok",
			"database": database.Health(db),
		})
	})

	// Initialize repositories
	productRepo := repository.NewProductRepository(db)

	// Initialize the file-service client with its resilience decorator
	restClient := client.NewRESTClient(cfg.FileService.URL, cfg.FileService.Timeout)
	fileClient := client.NewResilientClient(restClient, client.ResilienceConfig{
		MaxRetries:       cfg.FileService.MaxRetries,
		RetryInterval:    cfg.FileService.RetryInterval,
		FailureThreshold: cfg.FileService.FailureThreshold,
		Cooldown:         cfg.FileService.Cooldown,
		MaxConcurrent:    cfg.FileService.MaxConcurrent,
	}, logger)

	// Initialize services
	productService := service.NewProductService(productRepo, fileClient, logger)

	// Initialize handlers
	adminHandler := transport.NewAdminProductHandler(productService, logger)
	publicHandler := transport.NewProductHandler(productService, logger)

	// Admin surface sits behind bearer auth; the public surface is rate limited
	authMiddleware := custommiddleware.AuthMiddleware(cfg.JWT.Secret, logger)
	requireAdmin := custommiddleware.RequireAdmin(logger)
	rateLimit := custommiddleware.RateLimitMiddleware(redisClient, custommiddleware.RateLimitConfig{
		RequestsPerWindow: 100,
		Window:            time.Minute,
		KeyPrefix:         "catalog_rate_limit",
	}, logger)

	adminHandler.RegisterRoutes(router, authMiddleware, requireAdmin)
	publicHandler.RegisterRoutes(router, rateLimit)

	server := &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      router,
			IdleTimeout:  time.Minute,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		config:      cfg,
		logger:      logger,
		db:          db,
		redisClient: redisClient,
	}

	return server
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			s.logger.Error("Failed to close redis connection", zap.Error(err))
		}
	}

	s.logger.Sync()
	return nil
}
