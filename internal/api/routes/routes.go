package routes

import (
	"loginflow/backend/internal/api/handlers"
	"loginflow/backend/internal/api/middleware"

	"github.com/gin-gonic/gin"
)

func SetupRoutes() *gin.Engine {
	router := gin.Default()

	// Global middleware
	router.Use(middleware.CORSMiddleware())
	router.Use(gin.Recovery())

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Public routes (no auth required)
		auth := v1.Group("/auth")
		{
			auth.POST("/login", handlers.Login)
			auth.POST("/register", handlers.Register)
		}

		// Health check
		v1.GET("/health", handlers.HealthCheck)

		// WebSocket endpoint (no auth middleware for WebSocket)
		v1.GET("/ws/recording", handlers.RecordingWebSocket)

		// Protected routes (auth required)
		protected := v1.Group("")
		protected.Use(middleware.AuthMiddleware())
		{
			// Recording sessions
			recording := protected.Group("/recording")
			{
				recording.POST("/start", handlers.StartRecording)
				recording.POST("/stop", handlers.StopRecording)
				recording.GET("/status", handlers.GetRecordingStatus)
				recording.GET("/mirror", handlers.GetSessionMirror)
				recording.POST("/save", handlers.SaveRecording)
			}

			// Saved login sequences
			sites := protected.Group("/sites")
			{
				sites.GET("", handlers.GetSites)
				sites.GET("/lookup", handlers.LookupSite)
				sites.GET("/:id", handlers.GetSite)
				sites.DELETE("", handlers.DeleteSiteByHostname)
				sites.DELETE("/:id", handlers.DeleteSite)
				sites.PUT("/:id/schedule", handlers.UpdateSiteSchedule)
				sites.POST("/:id/replay", handlers.TriggerReplay)
				sites.GET("/:id/runs", handlers.GetReplayRuns)
			}

			// Replays and run history
			replays := protected.Group("/replays")
			{
				replays.POST("/auto", handlers.AutoLogin)
				replays.GET("/:id", handlers.GetReplayRun)
				replays.POST("/:id/cancel", handlers.CancelReplayRun)
			}
		}
	}

	return router
}
