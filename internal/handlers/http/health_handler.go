package http

import (
	"context"
	"net/http"

	"djbook/internal/infrastructure/distributed"
	"djbook/internal/infrastructure/monitoring"

	"github.com/gin-gonic/gin"
)

// InstanceLister reports the live API instances. Nil on single-instance
// backends.
type InstanceLister interface {
	List(ctx context.Context) ([]distributed.InstanceInfo, error)
}

type HealthHandler struct {
	checker   *monitoring.HealthChecker
	instances InstanceLister
	backend   string
}

func NewHealthHandler(checker *monitoring.HealthChecker, instances InstanceLister, backend string) *HealthHandler {
	return &HealthHandler{checker: checker, instances: instances, backend: backend}
}

func (h *HealthHandler) SetupRoutes(router gin.IRoutes) {
	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)
	router.GET("/health/instances", h.Instances)
}

// Health is liveness: the process answers.
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": monitoring.StatusHealthy, "backend": h.backend})
}

// Ready runs every registered check against the stores.
func (h *HealthHandler) Ready(c *gin.Context) {
	status := h.checker.CheckAll(c.Request.Context())
	code := http.StatusOK
	if status.Status != monitoring.StatusHealthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, status)
}

func (h *HealthHandler) Instances(c *gin.Context) {
	if h.instances == nil {
		c.JSON(http.StatusOK, gin.H{"instances": []distributed.InstanceInfo{}, "shared": false})
		return
	}
	list, err := h.instances.List(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"instances": list, "shared": true})
}
