package http

import (
	"djbook/internal/core/domain"
	"djbook/internal/core/ports"
	"djbook/internal/core/services"
	"djbook/internal/infrastructure/middleware"
	"djbook/internal/infrastructure/monitoring"
	"djbook/pkg/config"
	"djbook/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// RouterDeps is everything the HTTP surface needs. Collector, Gatherer and
// Instances are optional.
type RouterDeps struct {
	Config    *config.Config
	Logger    *zap.Logger
	Auth      services.AuthService
	Users     ports.UserService
	Venues    ports.VenueService
	Bookings  ports.BookingService
	Ledger    ports.AbuseLedger
	Health    *monitoring.HealthChecker
	Instances InstanceLister
	Backend   string
	Collector *monitoring.PrometheusCollector
	Gatherer  prometheus.Gatherer
}

func NewRouter(deps RouterDeps) *gin.Engine {
	sugar := deps.Logger.Sugar()

	router := gin.New()
	router.Use(middleware.RecoveryMiddleware(sugar))

	var recorder middleware.RequestRecorder
	if deps.Collector != nil {
		recorder = deps.Collector
	}
	router.Use(middleware.RequestLoggerMiddleware(logger.NewContextLogger(deps.Logger), recorder))
	if deps.Config.Tracing.Enabled {
		router.Use(middleware.TracingMiddleware())
	}
	router.Use(middleware.ErrorHandlerMiddleware(sugar))
	router.Use(middleware.NewHTTPRateLimitMiddleware(deps.Config))

	NewHealthHandler(deps.Health, deps.Instances, deps.Backend).SetupRoutes(router)
	if deps.Config.Monitoring.PrometheusEnabled && deps.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	requireAuth := middleware.AuthMiddleware(deps.Auth)
	optionalAuth := middleware.OptionalAuthMiddleware(deps.Auth)

	api := router.Group("/api/v1")
	NewAuthHandler(deps.Users, deps.Auth, deps.Config.Auth.AccessTokenTTL).SetupRoutes(api)
	NewVenueHandler(deps.Venues).SetupRoutes(api, requireAuth)
	NewBookingHandler(deps.Bookings).SetupRoutes(api, requireAuth, optionalAuth)
	NewModerationHandler(deps.Ledger, sugar).SetupRoutes(api, requireAuth,
		middleware.RequireRole(domain.RoleManager, domain.RoleSysAdmin))
	NewAdminHandler(deps.Users).SetupRoutes(api, requireAuth,
		middleware.RequireRole(domain.RoleSysAdmin))

	return router
}
