package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"

	"github.com/dolaglobo/mmf-ledger/internal/auth"
	"github.com/dolaglobo/mmf-ledger/internal/config"
	"github.com/dolaglobo/mmf-ledger/internal/handler"
	"github.com/dolaglobo/mmf-ledger/internal/repository"
	"github.com/dolaglobo/mmf-ledger/internal/service"
)

func main() {
	// Load configuration first so the log level is honoured
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err.Error())
		os.Exit(1)
	}

	// Initialise logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	// Connect to the database
	db, err := connectDB(cfg)
	if err != nil {
		logger.Error("failed to connect to database", "error", err.Error())
		os.Exit(1)
	}
	defer db.Close()

	logger.Info("connected to database successfully")

	// Apply schema migrations
	if err := repository.Migrate(db); err != nil {
		logger.Error("failed to migrate database", "error", err.Error())
		os.Exit(1)
	}

	// Initialise store and token manager
	store := repository.NewStore(db)
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL)

	// Initialise services
	authService := service.NewAuthService(store, tokens, logger)
	accountService := service.NewAccountService(store, cfg.AnnualInterestRate, logger)
	transactionService := service.NewTransactionService(store, cfg.MinDeposit, cfg.MinWithdrawal, cfg.MpesaPaybill, logger)
	interestService := service.NewInterestService(store, cfg.AnnualInterestRate, logger)
	adminService := service.NewAdminService(store, logger)

	// Initialise handlers
	authMW := handler.NewAuthMiddleware(authService, logger)
	authHandler := handler.NewAuthHandler(authService, logger)
	accountHandler := handler.NewAccountHandler(accountService, transactionService, logger)
	transactionHandler := handler.NewTransactionHandler(transactionService, authService, cfg.MpesaPaybill, logger)
	adminHandler := handler.NewAdminHandler(transactionService, interestService, adminService, logger)

	// Setup router
	router := mux.NewRouter()
	api := router.PathPrefix("/api").Subrouter()

	// Register routes
	authHandler.RegisterRoutes(api, authMW)
	accountHandler.RegisterRoutes(api, authMW)
	transactionHandler.RegisterRoutes(api, authMW)
	adminHandler.RegisterRoutes(api, authMW)

	// Add health check endpoint
	api.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","service":"Dolaglobo Finance MMF"}`))
	}).Methods(http.MethodGet)

	// Add middleware for logging
	router.Use(handler.LoggingMiddleware(logger))

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a go routine
	go func() {
		logger.Info("starting server on port " + cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("failed to start server", "error", err.Error())
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server...")

	// Create context with timeout for shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err.Error())
	}

	logger.Info("server exited gracefully")
}

func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// connectDB establishes a connection to the Postgres database
func connectDB(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, err
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(10 * time.Minute)

	// Verify connection
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return db, nil
}
