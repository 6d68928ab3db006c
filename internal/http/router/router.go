package router

import (
	"github.com/gin-gonic/gin"

	"github.com/stagelink/gig-backend/internal/config"
	"github.com/stagelink/gig-backend/internal/http/handlers"
	"github.com/stagelink/gig-backend/internal/http/middleware"
	"github.com/stagelink/gig-backend/internal/service"
)

func SetupRouter(
	cfg *config.Config,
	gigHandler *handlers.GigHandler,
	projectHandler *handlers.ProjectHandler,
	disputeHandler *handlers.DisputeHandler,
	ratingHandler *handlers.RatingHandler,
	walletHandler *handlers.WalletHandler,
	notificationHandler *handlers.NotificationHandler,
	adminHandler *handlers.AdminHandler,
	wsHandler *handlers.WSHandler,
	healthHandler *handlers.HealthHandler,
	tokenManager *service.TokenManager,
) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", healthHandler.Health)

	api := r.Group("/api")

	// Публичные маршруты
	api.GET("/ws", wsHandler.Handle)
	api.GET("/gigs/:id", middleware.UUIDValidator("id"), gigHandler.Get)
	api.GET("/users/:id/ratings", middleware.UUIDValidator("id"), ratingHandler.GetForUser)

	// Защищённые маршруты
	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(tokenManager))
	{
		mutateRateLimit := middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod)

		protected.GET("/gigs", gigHandler.ListMine)
		protected.POST("/gigs", mutateRateLimit, gigHandler.Create)
		protected.POST("/gigs/:id/confirm", middleware.UUIDValidator("id"), mutateRateLimit, gigHandler.ConfirmMatch)

		protected.GET("/projects", projectHandler.ListMine)
		protected.GET("/projects/:id", middleware.UUIDValidator("id"), projectHandler.Get)
		protected.POST("/projects/:id/accept", middleware.UUIDValidator("id"), projectHandler.Accept)
		protected.POST("/projects/:id/decline", middleware.UUIDValidator("id"), projectHandler.Decline)
		protected.POST("/projects/:id/deliver", middleware.UUIDValidator("id"), projectHandler.Deliver)
		protected.POST("/projects/:id/complete", middleware.UUIDValidator("id"), projectHandler.Complete)
		protected.POST("/projects/:id/cancel", middleware.UUIDValidator("id"), projectHandler.Cancel)

		protected.POST("/projects/:id/dispute", middleware.UUIDValidator("id"), mutateRateLimit, disputeHandler.Open)
		protected.GET("/disputes", disputeHandler.ListMine)
		protected.GET("/disputes/:id", middleware.UUIDValidator("id"), disputeHandler.Get)
		protected.POST("/disputes/:id/respond", middleware.UUIDValidator("id"), disputeHandler.Respond)
		protected.POST("/disputes/:id/evidence", middleware.UUIDValidator("id"), disputeHandler.UploadEvidence)

		protected.POST("/projects/:id/rating", middleware.UUIDValidator("id"), ratingHandler.Submit)
		protected.GET("/projects/:id/rating", middleware.UUIDValidator("id"), ratingHandler.GetForProject)

		protected.GET("/wallet", walletHandler.GetBalance)
		protected.GET("/wallet/transactions", walletHandler.ListTransactions)

		protected.GET("/notifications", notificationHandler.List)
		protected.GET("/notifications/unread-count", notificationHandler.CountUnread)
		protected.POST("/notifications/:id/read", middleware.UUIDValidator("id"), notificationHandler.MarkAsRead)
		protected.POST("/notifications/read-all", notificationHandler.MarkAllAsRead)
	}

	// Администрирование
	admin := api.Group("/admin")
	admin.Use(middleware.AuthMiddleware(tokenManager), middleware.RequireAdmin())
	{
		admin.POST("/disputes/:id/resolve", middleware.UUIDValidator("id"), disputeHandler.Resolve)
		admin.GET("/jobs", adminHandler.ListJobs)
		admin.POST("/jobs/run", adminHandler.RunJob)
		admin.POST("/projects/:id/release", middleware.UUIDValidator("id"), adminHandler.ReleaseProject)
		admin.POST("/projects/:id/refund", middleware.UUIDValidator("id"), adminHandler.RefundProject)
	}

	return r
}
