package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	iauth "github.com/hazardwatch/hazardwatch/internal/auth"
	"github.com/hazardwatch/hazardwatch/internal/handlers"
	"github.com/hazardwatch/hazardwatch/internal/middleware"
	"github.com/hazardwatch/hazardwatch/internal/realtime"
)

// NewRouter builds the Gin engine, wires middleware and registers all routes.
func NewRouter(db *gorm.DB, jwt *iauth.JWTService, hub *realtime.Hub) (*gin.Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if jwt == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}
	if hub == nil {
		return nil, fmt.Errorf("realtime hub must be provided")
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.Metrics())

	r.NoRoute(middleware.NotFoundHandler)

	// Public endpoints
	r.GET("/health", handlers.Health())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authHandler, err := handlers.NewAuthHandler(db, jwt)
	if err != nil {
		return nil, err
	}
	reportHandler, err := handlers.NewReportHandler(db, hub)
	if err != nil {
		return nil, err
	}
	notificationHandler, err := handlers.NewNotificationHandler(db)
	if err != nil {
		return nil, err
	}
	pointsHandler, err := handlers.NewPointsHandler(db)
	if err != nil {
		return nil, err
	}
	adminHandler, err := handlers.NewAdminHandler(db, hub)
	if err != nil {
		return nil, err
	}
	realtimeHandler := handlers.NewRealtimeHandler(hub, jwt)

	// Public auth routes
	auth := r.Group("/api/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
	}

	// The websocket endpoint authenticates via query token inside the handler.
	r.GET("/api/ws", realtimeHandler.Stream)

	// Public read-only views
	r.GET("/api/reports", reportHandler.List)
	r.GET("/api/reports/nearby", reportHandler.Nearby)
	r.GET("/api/reports/:id", reportHandler.Get)
	r.GET("/api/points/user/:id", pointsHandler.Summary)
	r.GET("/api/leaderboard", pointsHandler.Leaderboard)

	requireAuth := middleware.Auth(jwt)

	api := r.Group("/api")
	api.Use(requireAuth)

	// Authenticated auth routes
	api.GET("/auth/me", authHandler.Me)
	api.PATCH("/auth/me", authHandler.UpdateMe)

	// Reports
	reports := api.Group("/reports")
	{
		reports.POST("", reportHandler.Create)
		reports.POST("/:id/upvote", reportHandler.Upvote)
		reports.POST("/:id/downvote", reportHandler.Downvote)
		reports.POST("/:id/comments", reportHandler.AddComment)
	}

	// Notifications
	notifications := api.Group("/notifications")
	{
		notifications.GET("", notificationHandler.List)
		notifications.GET("/unread-count", notificationHandler.UnreadCount)
		notifications.PATCH("/mark-all-read", notificationHandler.MarkAllRead)
		notifications.PATCH("/:id/read", notificationHandler.MarkRead)
		notifications.DELETE("/:id", notificationHandler.Delete)
	}

	// Gamification
	points := api.Group("/points")
	{
		points.GET("/me", pointsHandler.MySummary)
		points.POST("/award", middleware.RequireAdmin(), pointsHandler.Award)
	}

	// Admin
	admin := api.Group("/admin")
	admin.Use(middleware.RequireAdmin())
	{
		admin.GET("/reports", adminHandler.Reports)
		admin.GET("/stats", adminHandler.Stats)
		admin.PUT("/reports/:id/verify", adminHandler.Verify)
		admin.PUT("/reports/:id/reject", adminHandler.Reject)
		admin.POST("/alerts", adminHandler.SendAlert)
	}

	return r, nil
}
