package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"loginflow/backend/internal/api/handlers"
	"loginflow/backend/internal/api/routes"
	"loginflow/backend/internal/capture"
	"loginflow/backend/internal/config"
	"loginflow/backend/internal/registry"
	"loginflow/backend/internal/replay"
	"loginflow/backend/internal/services"
	"loginflow/backend/pkg/auth"
	"loginflow/backend/pkg/chrome"
	"loginflow/backend/pkg/database"

	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	// Initialize JWT
	auth.InitJWT(cfg.JWT.Secret)

	// Initialize database
	if err := database.InitDatabase(cfg); err != nil {
		log.Fatal("Failed to initialize database:", err)
	}

	if chrome.FindExecutable() == "" {
		log.Println("Warning: no Chrome executable found; recording and replay will fail until one is installed")
	}

	// Wire core services
	sites := registry.New(database.DB)
	recorders := capture.NewManager(database.DB)
	replays := replay.NewService(database.DB, sites, cfg.Replay)
	handlers.Init(cfg, recorders, sites, replays)

	// Initialize scheduler for keep-alive logins
	if err := services.InitScheduler(sites, replays); err != nil {
		log.Fatal("Failed to initialize scheduler:", err)
	}

	// Initialize status sync service
	services.InitStatusSync(replays)

	// Set Gin mode
	gin.SetMode(cfg.Server.Mode)

	// Initialize router
	router := routes.SetupRoutes()

	// Setup graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		log.Println("Shutting down server...")

		if services.GlobalScheduler != nil {
			services.GlobalScheduler.Stop()
		}
		if services.GlobalStatusSync != nil {
			services.GlobalStatusSync.Stop()
		}

		log.Println("Server shutdown complete")
		os.Exit(0)
	}()

	// Start server
	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	log.Printf("Server starting on %s", addr)

	if err := router.Run(addr); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
