package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/ksred/dca-vault-api/internal/auth"
	"github.com/ksred/dca-vault-api/internal/bank"
	"github.com/ksred/dca-vault-api/internal/config"
	"github.com/ksred/dca-vault-api/internal/database"
	"github.com/ksred/dca-vault-api/internal/escrow"
	"github.com/ksred/dca-vault-api/internal/events"
	"github.com/ksred/dca-vault-api/internal/fees"
	"github.com/ksred/dca-vault-api/internal/oracle"
	"github.com/ksred/dca-vault-api/internal/scheduler"
	"github.com/ksred/dca-vault-api/internal/vault"
	"github.com/ksred/dca-vault-api/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// init configures the application logging based on environment settings
// In development mode, it enables pretty printing with timestamps
// Debug logging can be enabled via DEBUG environment variable
func init() {
	// Configure pretty logging for development
	if os.Getenv("ENV") != "production" {
		output := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		zlog.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	// Set global log level
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("DEBUG") == "true" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

// main initializes and runs the vault execution engine with graceful shutdown
// support. It sets up all required services, database connections, API routes
// and the background trigger processor.
func main() {
	// Initialize database
	db, err := database.NewDatabase()
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize database")
	}

	// Initialize router
	router := gin.Default()

	// Initialize services and handlers
	authService := auth.NewService("vault-engine-secret-key")
	authHandlers := auth.NewGinHandlers(authService)
	// Register test credentials
	authService.RegisterAPICredentials(auth.TestAPIKey, auth.TestAPISecret)

	configService := config.NewService(db)
	if err := configService.Seed(defaultCollectorAddress()); err != nil {
		zlog.Fatal().Err(err).Msg("Failed to seed engine settings")
	}
	configHandlers := config.NewGinHandlers(configService)

	feeService := fees.NewService(db)
	feeHandlers := fees.NewGinHandlers(feeService)

	escrowService := escrow.NewService(db)
	escrowHandlers := escrow.NewGinHandlers(escrowService)

	eventService := events.NewService(db)
	eventHandlers := events.NewGinHandlers(eventService)

	// The mock pool and ledger stand in for the host platform's exchange and
	// bank adapters until a production integration is wired in
	pool := oracle.NewMockPool(decimal.NewFromFloat(0.0015))
	pool.SetPrice("ukuji", "udemo", decimal.NewFromInt(1), decimal.NewFromInt(1))
	pool.SetPrice("udemo", "ukuji", decimal.NewFromInt(1), decimal.NewFromInt(1))
	ledger := bank.NewMockLedger()

	vaultService := vault.NewService(db, configService, feeService, escrowService, pool, ledger)
	vaultHandlers := vault.NewGinHandlers(vaultService)

	// Create and start the background trigger processor
	triggerProcessor := scheduler.NewProcessor(vaultService.Scheduler(), vaultService)
	processorCtx, processorCancel := context.WithCancel(context.Background())
	defer processorCancel()

	go triggerProcessor.Start(processorCtx)

	// Setup middleware
	router.Use(middleware.RateLimit())

	// Setup API routes
	setupRoutes(router, authHandlers, vaultHandlers, eventHandlers, configHandlers, feeHandlers, escrowHandlers)

	// Get port from env otherwise it's 8080
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Create server
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	// Graceful shutdown setup
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("listen")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info().Msg("Shutting down server...")

	// Give outstanding operations 5 seconds to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	zlog.Info().Msg("Server exiting")
}

func defaultCollectorAddress() string {
	if address := os.Getenv("FEE_COLLECTOR_ADDRESS"); address != "" {
		return address
	}
	return "treasury"
}

// setupRoutes configures all API endpoints and their handlers
// It groups routes by functionality and applies appropriate middleware:
// - Auth routes: Public endpoints for authentication
// - Vault routes: Protected by JWT authentication
// - Event routes: Protected by JWT authentication
// - Internal routes: Protected by internal network authentication
func setupRoutes(
	router *gin.Engine,
	authHandlers *auth.GinHandlers,
	vaultHandlers *vault.GinHandlers,
	eventHandlers *events.GinHandlers,
	configHandlers *config.GinHandlers,
	feeHandlers *fees.GinHandlers,
	escrowHandlers *escrow.GinHandlers,
) {
	v1 := router.Group("/api/v1")
	{
		// Auth routes
		auth := v1.Group("/auth")
		{
			auth.POST("/token", authHandlers.GenerateTokenHandler())
		}

		// Vault routes
		vaults := v1.Group("/vaults")
		vaults.Use(middleware.JWTAuth())
		{
			vaults.POST("", vaultHandlers.CreateVaultHandler())
			vaults.GET("", vaultHandlers.GetVaultsHandler())
			vaults.GET("/:id", vaultHandlers.GetVaultHandler())
			vaults.POST("/:id/deposits", vaultHandlers.DepositHandler())
			vaults.POST("/:id/cancel", vaultHandlers.CancelVaultHandler(false))
		}

		// Event ledger routes
		eventRoutes := v1.Group("/events")
		eventRoutes.Use(middleware.JWTAuth())
		{
			eventRoutes.GET("/:resource_id", eventHandlers.GetEventsByResourceIDHandler())
		}

		// Internal routes (should be protected by internal network)
		internal := v1.Group("/internal")
		internal.Use(middleware.InternalAuth())
		{
			internal.POST("/triggers/:id/execute", vaultHandlers.ExecuteTriggerHandler())
			internal.POST("/vaults/:id/cancel", vaultHandlers.CancelVaultHandler(true))
			internal.POST("/vaults/:id/escrow/disburse", vaultHandlers.DisburseEscrowHandler())
			internal.POST("/swap-adjustments", escrowHandlers.UpdateSwapAdjustmentsHandler())
			internal.GET("/config", configHandlers.GetConfigHandler())
			internal.POST("/config", configHandlers.UpdateConfigHandler())
			internal.GET("/custom-swap-fees", feeHandlers.GetCustomSwapFeesHandler())
			internal.POST("/custom-swap-fees", feeHandlers.SetCustomSwapFeeHandler())
			internal.DELETE("/custom-swap-fees/:denom", feeHandlers.RemoveCustomSwapFeeHandler())
		}
	}
}
