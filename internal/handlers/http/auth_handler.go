package http

import (
	"net/http"
	"time"

	"djbook/internal/core/domain"
	"djbook/internal/core/ports"
	"djbook/internal/core/services"
	"djbook/pkg/errors"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	users          ports.UserService
	authService    services.AuthService
	accessTokenTTL time.Duration
}

func NewAuthHandler(users ports.UserService, authService services.AuthService, accessTokenTTL time.Duration) *AuthHandler {
	return &AuthHandler{
		users:          users,
		authService:    authService,
		accessTokenTTL: accessTokenTTL,
	}
}

func (h *AuthHandler) SetupRoutes(api *gin.RouterGroup) {
	auth := api.Group("/auth")
	{
		auth.POST("/register", h.Register)
		auth.POST("/login", h.Login)
		auth.POST("/refresh", h.RefreshToken)
	}
}

type RegisterRequest struct {
	Username string      `json:"username" binding:"required,max=50"`
	Password string      `json:"password" binding:"required,max=128"`
	Role     domain.Role `json:"role"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required,max=50"`
	Password string `json:"password" binding:"required,max=128"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required,max=2048"`
}

type UserResponse struct {
	Username     string      `json:"username"`
	Role         domain.Role `json:"role"`
	IsVenueOwner bool        `json:"is_venue_owner"`
	CreatedAt    time.Time   `json:"created_at"`
}

func newUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		Username:     u.Username,
		Role:         u.Role,
		IsVenueOwner: u.IsVenueOwner,
		CreatedAt:    u.CreatedAt,
	}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}

	user, err := h.users.Register(c.Request.Context(), req.Username, req.Password, req.Role, c.ClientIP())
	if err != nil {
		_ = c.Error(err)
		return
	}

	h.respondWithTokens(c, http.StatusCreated, user)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), req.Username, req.Password, c.ClientIP())
	if err != nil {
		_ = c.Error(err)
		return
	}

	h.respondWithTokens(c, http.StatusOK, user)
}

// RefreshToken issues a new access token carrying the user's current role.
// Banned users cannot refresh.
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}

	claims, err := h.authService.ValidateRefreshToken(req.RefreshToken)
	if err != nil {
		_ = c.Error(err)
		return
	}

	user, err := h.users.GetUser(c.Request.Context(), claims.Username)
	if err != nil {
		_ = c.Error(services.ErrInvalidToken)
		return
	}
	if user.IsPermanentBan {
		_ = c.Error(domain.ErrPermanentlyBanned)
		return
	}

	accessToken, err := h.authService.GenerateToken(user)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": accessToken,
		"expires_in":   int(h.accessTokenTTL / time.Second),
	})
}

func (h *AuthHandler) respondWithTokens(c *gin.Context, status int, user *domain.User) {
	accessToken, err := h.authService.GenerateToken(user)
	if err != nil {
		_ = c.Error(err)
		return
	}
	refreshToken, err := h.authService.GenerateRefreshToken(user)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(status, gin.H{
		"user":          newUserResponse(user),
		"access_token":  accessToken,
		"refresh_token": refreshToken,
		"expires_in":    int(h.accessTokenTTL / time.Second),
	})
}
