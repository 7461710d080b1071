package http

import (
	"net/http"

	"djbook/internal/core/domain"
	"djbook/internal/core/ports"
	"djbook/internal/infrastructure/middleware"
	"djbook/pkg/errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ModerationHandler exposes the abuse ledger to staff.
type ModerationHandler struct {
	ledger ports.AbuseLedger
	logger *zap.SugaredLogger
}

func NewModerationHandler(ledger ports.AbuseLedger, logger *zap.SugaredLogger) *ModerationHandler {
	return &ModerationHandler{ledger: ledger, logger: logger}
}

func (h *ModerationHandler) SetupRoutes(api *gin.RouterGroup, guards ...gin.HandlerFunc) {
	mod := api.Group("/moderation", guards...)
	{
		mod.POST("/violations", h.RecordViolation)
		mod.GET("/shared-ip", h.SharedIP)
		mod.GET("/users/:username", h.BanRecord)
	}
}

type ViolationRequest struct {
	Username           string `json:"username" binding:"required"`
	IP                 string `json:"ip" binding:"required"`
	Reason             string `json:"reason" binding:"max=500"`
	GloballyDisruptive bool   `json:"globally_disruptive"`
}

func (h *ModerationHandler) RecordViolation(c *gin.Context) {
	var req ViolationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}

	outcome, err := h.ledger.RecordViolation(c.Request.Context(), domain.Violation{
		Username:           req.Username,
		ObservedIP:         req.IP,
		Reason:             req.Reason,
		GloballyDisruptive: req.GloballyDisruptive,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	h.logger.Infow("violation reported",
		"reporter", middleware.Username(c),
		"username", outcome.Username,
		"decision", outcome.Decision,
	)
	c.JSON(http.StatusOK, outcome)
}

func (h *ModerationHandler) SharedIP(c *gin.Context) {
	a, b := c.Query("a"), c.Query("b")
	if a == "" || b == "" {
		_ = c.Error(errors.NewInvalidInputError("query parameters a and b are required"))
		return
	}

	shared, err := h.ledger.SharesIPHistory(c.Request.Context(), a, b)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"a": a, "b": b, "shared": shared})
}

func (h *ModerationHandler) BanRecord(c *gin.Context) {
	rec, err := h.ledger.BanRecord(c.Request.Context(), c.Param("username"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, rec)
}
