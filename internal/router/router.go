package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/IsaiasGutierrezTeran/back-smart-condominium/internal/handler"
	"github.com/IsaiasGutierrezTeran/back-smart-condominium/internal/middleware"
	"github.com/IsaiasGutierrezTeran/back-smart-condominium/internal/models"
	"github.com/IsaiasGutierrezTeran/back-smart-condominium/internal/repository"
	"github.com/IsaiasGutierrezTeran/back-smart-condominium/internal/service"
	"github.com/IsaiasGutierrezTeran/back-smart-condominium/pkg/config"
	"github.com/IsaiasGutierrezTeran/back-smart-condominium/pkg/logger"
	corsmiddleware "github.com/IsaiasGutierrezTeran/back-smart-condominium/pkg/middleware/cors"
	reqidmiddleware "github.com/IsaiasGutierrezTeran/back-smart-condominium/pkg/middleware/requestid"
)

// Handlers bundles every HTTP handler the router mounts.
type Handlers struct {
	Auth          *handler.AuthHandler
	Users         *handler.UserHandler
	Units         *handler.UnitHandler
	Areas         *handler.AreaHandler
	Reservations  *handler.ReservationHandler
	Notifications *handler.NotificationHandler
	Billing       *handler.BillingHandler
	Maintenance   *handler.MaintenanceHandler
	Security      *handler.SecurityHandler
	Metrics       *handler.MetricsHandler
}

// Options carries the dependencies the router needs beyond the handlers.
type Options struct {
	Config   *config.Config
	Logger   *zap.Logger
	DB       *sqlx.DB
	Auth     *service.AuthService
	Metrics  *service.MetricsService
	AuditLog *repository.UserRepository
	Handlers Handlers
}

// New assembles the gin engine with the full route table.
func New(opts Options) *gin.Engine {
	cfg := opts.Config
	h := opts.Handlers

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(opts.Logger))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(opts.Metrics))

	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", func(c *gin.Context) {
		if opts.DB != nil {
			if err := opts.DB.PingContext(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", h.Metrics.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	authed := middleware.JWT(opts.Auth)
	admin := middleware.RBAC(string(models.RoleAdministrator))
	adminOrSelf := middleware.RBAC(string(models.RoleAdministrator), "SELF")
	gate := middleware.RequireCapability(models.CapSecurityOps)
	audit := func(action, resource string) gin.HandlerFunc {
		return middleware.Audit(opts.AuditLog, action, resource)
	}

	api := r.Group(cfg.APIPrefix)

	// Signed-token download, no session required.
	api.GET("/billing/reports/download/:token", h.Billing.DownloadReport)

	auth := api.Group("/auth")
	{
		auth.POST("/register", h.Auth.Register)
		auth.POST("/login", h.Auth.Login)
		auth.POST("/refresh", h.Auth.Refresh)
		auth.POST("/logout", authed, h.Auth.Logout)
		auth.POST("/change-password", authed, h.Auth.ChangePassword)
		auth.GET("/me", authed, h.Auth.Me)
	}

	users := api.Group("/users", authed)
	{
		users.GET("", admin, h.Users.List)
		users.POST("", admin, audit("create", "user"), h.Users.Create)
		users.PUT("/me/push-token", h.Users.RegisterPushToken)
		users.GET("/:id", adminOrSelf, h.Users.Get)
		users.PUT("/:id", adminOrSelf, audit("update", "user"), h.Users.Update)
		users.DELETE("/:id", admin, audit("deactivate", "user"), h.Users.Deactivate)
	}

	units := api.Group("/units", authed)
	{
		units.GET("", middleware.RequireCapability(models.CapManageUnits), h.Units.List)
		units.GET("/mine", h.Units.ListMine)
		units.GET("/:id", h.Units.Get)
		units.POST("", admin, audit("create", "unit"), h.Units.Create)
		units.PUT("/:id", admin, audit("update", "unit"), h.Units.Update)
	}

	areas := api.Group("/areas", authed)
	{
		areas.GET("", h.Areas.List)
		areas.GET("/:id", h.Areas.Get)
		areas.GET("/:id/availability", h.Reservations.Availability)
		areas.GET("/:id/calendar", h.Reservations.Calendar)
		areas.POST("", admin, audit("create", "area"), h.Areas.Create)
		areas.PUT("/:id", admin, audit("update", "area"), h.Areas.Update)
		areas.PUT("/:id/state", admin, audit("set_state", "area"), h.Areas.SetState)
	}

	reservations := api.Group("/reservations", authed)
	{
		reservations.GET("/add-ons", h.Reservations.AddOns)
		reservations.POST("/quote", h.Reservations.Quote)
		reservations.POST("", h.Reservations.Create)
		reservations.GET("", h.Reservations.List)
		reservations.GET("/:id", h.Reservations.Get)
		reservations.POST("/:id/approve", middleware.RequireCapability(models.CapApproveReservations), h.Reservations.Approve)
		reservations.POST("/:id/reject", middleware.RequireCapability(models.CapApproveReservations), h.Reservations.Reject)
		reservations.POST("/:id/start", middleware.RBAC(string(models.RoleAdministrator), string(models.RoleSecurity)), h.Reservations.Start)
		reservations.POST("/:id/complete", middleware.RBAC(string(models.RoleAdministrator), string(models.RoleSecurity)), h.Reservations.Complete)
		reservations.POST("/:id/cancel", h.Reservations.Cancel)
		reservations.POST("/:id/rate", h.Reservations.Rate)
	}

	notifications := api.Group("/notifications", authed)
	{
		notifications.GET("/categories", h.Notifications.Categories)
		notifications.POST("/categories", admin, h.Notifications.CreateCategory)
		notifications.POST("", middleware.RequireCapability(models.CapSendNotifications), audit("send", "notification"), h.Notifications.Create)
		notifications.GET("", admin, h.Notifications.List)
		notifications.GET("/inbox", h.Notifications.Inbox)
		notifications.GET("/stats", admin, h.Notifications.Stats)
		notifications.GET("/preferences", h.Notifications.Preferences)
		notifications.PUT("/preferences", h.Notifications.UpdatePreferences)
		notifications.GET("/:id", admin, h.Notifications.Get)
		notifications.POST("/:id/read", h.Notifications.MarkRead)
		notifications.POST("/:id/confirm", h.Notifications.Confirm)
		notifications.POST("/:id/cancel", admin, h.Notifications.CancelScheduled)
	}

	billing := api.Group("/billing", authed)
	{
		manage := middleware.RequireCapability(models.CapManageBilling)

		billing.GET("/concepts", manage, h.Billing.Concepts)
		billing.POST("/concepts", manage, audit("create", "payment_concept"), h.Billing.CreateConcept)
		billing.PUT("/concepts/:id", manage, audit("update", "payment_concept"), h.Billing.UpdateConcept)

		billing.GET("/charges", manage, h.Billing.ListCharges)
		billing.GET("/charges/mine", h.Billing.MyCharges)
		billing.POST("/charges", manage, audit("create", "charge"), h.Billing.CreateCharge)
		billing.POST("/charges/generate", manage, audit("generate", "charge"), h.Billing.GenerateMonthlyFees)
		billing.POST("/charges/mark-overdue", manage, h.Billing.MarkOverdue)
		billing.POST("/charges/apply-interest", manage, h.Billing.ApplyLateInterest)
		billing.GET("/charges/:id", manage, h.Billing.GetCharge)
		billing.POST("/charges/:id/cancel", manage, audit("cancel", "charge"), h.Billing.CancelCharge)
		billing.GET("/charges/:id/payments", manage, h.Billing.Payments)

		billing.POST("/payments", h.Billing.RegisterPayment)

		billing.GET("/reports/delinquency", middleware.RequireCapability(models.CapViewReports), h.Billing.DelinquencyReport)
		billing.GET("/summary", middleware.RequireCapability(models.CapViewReports), h.Billing.Summary)
	}

	maintenance := api.Group("/maintenance", authed)
	{
		maintenance.GET("/types", h.Maintenance.Types)
		maintenance.POST("/types", middleware.RequireCapability(models.CapManageMaintenance), h.Maintenance.CreateType)
		maintenance.POST("/requests", h.Maintenance.Create)
		maintenance.GET("/requests", h.Maintenance.List)
		maintenance.GET("/requests/:id", h.Maintenance.Get)
		maintenance.POST("/requests/:id/assign", middleware.RequireCapability(models.CapManageMaintenance), h.Maintenance.Assign)
		maintenance.POST("/requests/:id/start", middleware.RequireCapability(models.CapWorkMaintenance), h.Maintenance.Start)
		maintenance.POST("/requests/:id/complete", middleware.RequireCapability(models.CapWorkMaintenance), h.Maintenance.Complete)
		maintenance.POST("/requests/:id/cancel", h.Maintenance.Cancel)
		maintenance.GET("/requests/:id/report", middleware.RequireCapability(models.CapManageMaintenance), h.Maintenance.WorkReport)
	}

	security := api.Group("/security", authed)
	{
		security.POST("/visitors", gate, h.Security.RegisterVisitor)
		security.GET("/visitors", gate, h.Security.Visitors)
		security.POST("/visitors/:id/exit", gate, h.Security.VisitorExit)

		security.POST("/vehicles", h.Security.RegisterVehicle)
		security.GET("/vehicles", h.Security.Vehicles)
		security.PUT("/vehicles/:id/authorization", gate, h.Security.SetVehicleAuthorized)

		security.POST("/ai/recognize-face", gate, h.Security.RecognizeFace)
		security.POST("/ai/read-plate", gate, h.Security.ReadPlate)
		security.POST("/ai/detect-anomaly", gate, h.Security.DetectAnomaly)

		security.POST("/incidents", h.Security.ReportIncident)
		security.GET("/incidents", gate, h.Security.Incidents)
		security.PUT("/incidents/:id/state", gate, h.Security.UpdateIncidentState)

		security.GET("/access-logs", gate, h.Security.AccessLogs)
		security.GET("/delinquency/:unitId", admin, h.Security.DelinquencyScore)
	}

	api.GET("/metrics/snapshot", authed, admin, h.Metrics.Snapshot)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})

	return r
}
