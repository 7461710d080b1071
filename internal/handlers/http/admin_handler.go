package http

import (
	"net/http"

	"djbook/internal/core/domain"
	"djbook/internal/core/ports"
	"djbook/internal/infrastructure/middleware"
	"djbook/pkg/errors"

	"github.com/gin-gonic/gin"
)

type AdminHandler struct {
	users ports.UserService
}

func NewAdminHandler(users ports.UserService) *AdminHandler {
	return &AdminHandler{users: users}
}

func (h *AdminHandler) SetupRoutes(api *gin.RouterGroup, guards ...gin.HandlerFunc) {
	admin := api.Group("/admin", guards...)
	admin.PUT("/users/:username/role", h.SetRole)
}

type SetRoleRequest struct {
	Role domain.Role `json:"role" binding:"required"`
}

func (h *AdminHandler) SetRole(c *gin.Context) {
	var req SetRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}

	user, err := h.users.SetRole(c.Request.Context(), middleware.Username(c), c.Param("username"), req.Role)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, newUserResponse(user))
}
