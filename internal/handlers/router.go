package handlers

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
	"tour-video-backend/internal/auth"
	"tour-video-backend/internal/config"
	"tour-video-backend/internal/database"
	"tour-video-backend/internal/middleware"
	"tour-video-backend/internal/services"
)

// RouterDeps carries everything the HTTP surface needs.
type RouterDeps struct {
	Config     *config.Config
	Store      *database.Store
	Intake     *services.IntakeService
	Status     *services.StatusService
	Revisions  *services.RevisionService
	Reconciler *services.Reconciler
	Payments   *services.PaymentService
	Admin      *services.AdminService
	Driver     *services.Driver
	Reset      *auth.ResetService
	Runner     *services.Runner
	Logger     *zap.Logger
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(d RouterDeps) *gin.Engine {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Metrics())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Stripe-Signature"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/health", HealthHandler)

	uploadHandler := NewUploadHandler(d.Intake, logger)
	ordersHandler := NewOrdersHandler(d.Status, d.Payments, logger)
	statusHandler := NewStatusHandler(d.Status)
	filesHandler := NewFilesHandler(d.Status)
	feedbackHandler := NewFeedbackHandler(d.Store, d.Revisions, logger)
	imagesHandler := NewImagesHandler(d.Revisions, d.Admin, logger)
	adminHandler := NewAdminHandler(d.Admin)
	notificationsHandler := NewNotificationsHandler(d.Store)
	pollHandler := NewPollHandler(d.Reconciler, d.Runner, logger)
	integrationHandler := NewIntegrationHandler(d.Driver)
	webhookHandler := NewWebhookHandler(d.Reconciler, logger)
	paymentsHandler := NewPaymentsHandler(d.Payments, d.Config.StripeWebhookSecret, logger)
	authHandler := NewAuthHandler(d.Reset)

	api := router.Group("/api/v1")

	// Webhooks and password reset (no bearer token)
	api.POST("/webhooks/runway", webhookHandler.HandleRunwayWebhook)
	api.POST("/webhooks/stripe", paymentsHandler.HandleStripeWebhook)
	api.POST("/auth/forgot-password", authHandler.ForgotPassword)
	api.POST("/auth/reset-password", authHandler.ResetPassword)

	// Guests may upload and follow their own orders
	open := api.Group("")
	open.Use(middleware.OptionalAuth(d.Config))
	open.POST("/upload", uploadHandler.Upload)
	open.GET("/orders/:order_id/status", statusHandler.GetOrderStatus)
	open.GET("/orders/:order_id", ordersHandler.GetOrder)

	user := api.Group("")
	user.Use(middleware.AuthMiddleware(d.Config))
	user.GET("/orders", ordersHandler.ListOrders)
	user.POST("/orders/:order_id/reorder", ordersHandler.Reorder)
	user.POST("/feedback", feedbackHandler.SubmitFeedback)
	user.GET("/download-center", filesHandler.DownloadCenter)
	user.GET("/notifications", notificationsHandler.ListNotifications)
	user.POST("/notifications/:notification_id/read", notificationsHandler.MarkRead)

	admin := api.Group("")
	admin.Use(middleware.AuthMiddleware(d.Config), middleware.AdminOnly())
	admin.GET("/admin/feed", adminHandler.Feed)
	admin.POST("/admin/images/:image_id/regenerate", imagesHandler.Regenerate)
	admin.POST("/admin/images/:image_id/status", imagesHandler.SetImageStatus)
	admin.GET("/runway/status", integrationHandler.RunwayStatus)
	admin.POST("/runway/check-status", pollHandler.CheckStatus)

	return router
}
