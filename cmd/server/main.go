package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"momo-service/config"
	"momo-service/internal/handler"
	"momo-service/internal/provider/pesapal"
	"momo-service/internal/repository"
	"momo-service/internal/router"
	"momo-service/internal/usecase"

	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	logger.Info("starting mobile money payment service")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	logger.Info("configuration loaded",
		zap.String("environment", cfg.Server.Env),
		zap.String("port", cfg.Server.Port))

	// Connect to database
	dbConnStr := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.DBName,
		cfg.Database.SSLMode,
	)

	poolCfg, err := pgxpool.ParseConfig(dbConnStr)
	if err != nil {
		logger.Fatal("invalid database configuration", zap.Error(err))
	}
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	dbPool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer dbPool.Close()

	logger.Info("connected to database",
		zap.String("database", cfg.Database.DBName))

	// Initialize repositories
	txRepo := repository.NewTransactionRepository(dbPool)
	billingRepo := repository.NewBillingRepository(dbPool)

	// Initialize gateway client
	gateway := pesapal.NewClient(cfg.Pesapal)

	// Initialize usecases
	paymentUC := usecase.NewPaymentUsecase(txRepo, billingRepo, gateway, cfg.Pesapal, logger)
	callbackUC := usecase.NewCallbackUsecase(txRepo, billingRepo, gateway, logger)

	// Initialize handlers
	paymentHandler := handler.NewPaymentHandler(paymentUC, logger)
	ipnHandler := handler.NewIPNHandler(callbackUC, logger)
	adminHandler := handler.NewAdminHandler(txRepo, callbackUC, cfg.Admin, logger)

	// Setup routes
	r := router.SetupRoutes(paymentHandler, ipnHandler, adminHandler, cfg.Admin.Token, logger)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	logger.Info("payment service started successfully",
		zap.String("port", cfg.Server.Port),
		zap.String("environment", cfg.Server.Env))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
