package http

import (
	"net/http"

	"djbook/internal/core/ports"
	"djbook/internal/infrastructure/middleware"
	"djbook/pkg/errors"

	"github.com/gin-gonic/gin"
)

type VenueHandler struct {
	venues ports.VenueService
}

func NewVenueHandler(venues ports.VenueService) *VenueHandler {
	return &VenueHandler{venues: venues}
}

func (h *VenueHandler) SetupRoutes(api *gin.RouterGroup, requireAuth gin.HandlerFunc) {
	venues := api.Group("/venues")
	{
		venues.GET("/:name", h.GetVenue)
		venues.POST("", requireAuth, h.CreateVenue)
		venues.PATCH("/:name/open", requireAuth, h.SetOpen)
	}
}

type CreateVenueRequest struct {
	Name string `json:"name" binding:"required,max=100"`
}

type SetOpenRequest struct {
	Open *bool `json:"open" binding:"required"`
}

func (h *VenueHandler) CreateVenue(c *gin.Context) {
	var req CreateVenueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}

	venue, err := h.venues.CreateVenue(c.Request.Context(), middleware.Username(c), req.Name)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, venue)
}

func (h *VenueHandler) GetVenue(c *gin.Context) {
	venue, err := h.venues.GetVenue(c.Request.Context(), c.Param("name"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, venue)
}

func (h *VenueHandler) SetOpen(c *gin.Context) {
	var req SetOpenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errors.NewInvalidInputError("open must be true or false"))
		return
	}

	venue, err := h.venues.SetOpen(c.Request.Context(), middleware.Username(c), c.Param("name"), *req.Open)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, venue)
}
