package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stwalsh4118/rentledger/api/internal/logger"
	"github.com/stwalsh4118/rentledger/api/internal/middleware"
	"github.com/stwalsh4118/rentledger/api/internal/services"
)

// Services bundles what the API routes call into.
type Services struct {
	Properties    services.PropertyService
	Allocation    services.AllocationService
	Tenants       services.TenantService
	Payments      services.ReconciliationService
	Billing       services.BillingService
	Notifications services.NotificationService
}

// RouterConfig holds the settings the router is built from.
type RouterConfig struct {
	Env           string
	Storage       string
	CORSOrigins   []string
	CallbackToken string
	// Location is the zone gateway timestamps are read in.
	Location *time.Location
	// Jobs is optional; Info reports its next runs when set.
	Jobs JobSchedule
}

// NewRouter builds the gin engine with middleware and every API route.
func NewRouter(cfg RouterConfig, store Pinger, svc Services, log *logger.Logger) *gin.Engine {
	router := gin.New()

	// Add middleware in order: RequestID -> Logger -> Recovery -> CORS
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(log, "/health", "/health/ready"))
	router.Use(middleware.Recovery(log))
	router.Use(middleware.CORS(cfg.CORSOrigins))

	healthHandler := NewHealthHandler(store, cfg.Env, cfg.Storage)
	if cfg.Jobs != nil {
		healthHandler.WithJobs(cfg.Jobs)
	}
	router.GET("/health", healthHandler.Health)
	router.GET("/health/ready", healthHandler.Ready)

	propertyHandler := NewPropertyHandler(svc.Properties, svc.Allocation)
	tenantHandler := NewTenantHandler(svc.Tenants, svc.Allocation, svc.Payments)
	paymentHandler := NewPaymentHandler(svc.Payments, cfg.Location)
	billingHandler := NewBillingHandler(svc.Billing, svc.Notifications)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/info", healthHandler.Info)

		properties := v1.Group("/properties")
		{
			properties.POST("", propertyHandler.Create)
			properties.GET("/:id", propertyHandler.Get)
			properties.PUT("/:id/unit-types", propertyHandler.UpdateUnitTypes)
			properties.DELETE("/:id", propertyHandler.Delete)
			properties.POST("/:id/units/:unit/release", propertyHandler.ReleaseUnit)
		}

		tenants := v1.Group("/tenants")
		{
			tenants.POST("", tenantHandler.Onboard)
			tenants.GET("", tenantHandler.List)
			tenants.GET("/:id", tenantHandler.Get)
			tenants.POST("/:id/move-out", tenantHandler.MoveOut)
			tenants.POST("/:id/transfer", tenantHandler.Transfer)
			tenants.GET("/:id/audit", tenantHandler.Audit)
			tenants.GET("/:id/payments", tenantHandler.Payments)
		}

		payments := v1.Group("/payments")
		{
			payments.POST("/simulate", paymentHandler.Simulate)
			payments.POST("/mpesa/callback", middleware.CallbackToken(cfg.CallbackToken), paymentHandler.MpesaCallback)
		}

		billing := v1.Group("/billing")
		{
			billing.POST("/sweep", billingHandler.RunSweep)
			billing.POST("/overdue", billingHandler.MarkOverdue)
		}

		v1.GET("/owners/:id/notifications", billingHandler.Notifications)
	}

	return router
}
