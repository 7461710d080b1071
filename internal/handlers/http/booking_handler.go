package http

import (
	"context"
	"net/http"

	"djbook/internal/core/domain"
	"djbook/internal/core/ports"
	"djbook/internal/infrastructure/middleware"
	"djbook/pkg/errors"
	"djbook/pkg/validation"

	"github.com/gin-gonic/gin"
)

const calendarContentType = "text/calendar; charset=utf-8"

type BookingHandler struct {
	bookings ports.BookingService
}

func NewBookingHandler(bookings ports.BookingService) *BookingHandler {
	return &BookingHandler{bookings: bookings}
}

// SetupRoutes registers booking routes. Reads are open to anonymous viewers,
// who get the redacted view.
func (h *BookingHandler) SetupRoutes(api *gin.RouterGroup, requireAuth, optionalAuth gin.HandlerFunc) {
	bookings := api.Group("/bookings")
	{
		bookings.POST("", requireAuth, h.CreateBooking)
		bookings.GET("", optionalAuth, h.ListBookings)
		bookings.GET("/:id", optionalAuth, h.GetBooking)
		bookings.POST("/:id/confirm", requireAuth, h.Confirm)
		bookings.POST("/:id/cancel", requireAuth, h.Cancel)
		bookings.GET("/:id/calendar.ics", optionalAuth, h.Calendar)
	}
	api.GET("/djs/:username/calendar.ics", optionalAuth, h.DJCalendar)
}

type CreateBookingRequest struct {
	VenueName     string `json:"venue_name" binding:"required"`
	DJName        string `json:"dj_name" binding:"required"`
	StreamingLink string `json:"streaming_link"`
	Weekday       string `json:"weekday" binding:"required"`
	Time          string `json:"time" binding:"required"`
}

func (h *BookingHandler) CreateBooking(c *gin.Context) {
	var req CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}

	anchor, err := domain.ParseRecurrenceAnchor(req.Weekday, req.Time)
	if err != nil {
		_ = c.Error(err)
		return
	}

	ctx := c.Request.Context()
	booking, err := h.bookings.CreateBooking(ctx, ports.CreateBookingRequest{
		DJUsername:    middleware.Username(c),
		DJName:        req.DJName,
		VenueName:     req.VenueName,
		StreamingLink: req.StreamingLink,
		Anchor:        anchor,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	// the creator sees their own link; respond with the presented view
	view, err := h.bookings.Present(ctx, middleware.Username(c), booking.ID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

func (h *BookingHandler) GetBooking(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}
	view, err := h.bookings.Present(c.Request.Context(), middleware.Username(c), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// ListBookings lists by ?dj= or ?venue=; exactly one is required.
func (h *BookingHandler) ListBookings(c *gin.Context) {
	dj, venue := c.Query("dj"), c.Query("venue")
	if (dj == "") == (venue == "") {
		_ = c.Error(errors.NewInvalidInputError("exactly one of dj or venue is required"))
		return
	}

	var (
		list []*domain.PresentedBooking
		err  error
	)
	if dj != "" {
		list, err = h.bookings.ListForDJ(c.Request.Context(), middleware.Username(c), dj)
	} else {
		list, err = h.bookings.ListForVenue(c.Request.Context(), middleware.Username(c), venue)
	}
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookings": list, "count": len(list)})
}

func (h *BookingHandler) Confirm(c *gin.Context) {
	h.transition(c, h.bookings.Confirm)
}

func (h *BookingHandler) Cancel(c *gin.Context) {
	h.transition(c, h.bookings.Cancel)
}

func (h *BookingHandler) transition(c *gin.Context, apply func(ctx context.Context, actor string, id domain.BookingID) (*domain.Booking, error)) {
	id, ok := bookingID(c)
	if !ok {
		return
	}
	actor := middleware.Username(c)
	if _, err := apply(c.Request.Context(), actor, id); err != nil {
		_ = c.Error(err)
		return
	}
	view, err := h.bookings.Present(c.Request.Context(), actor, id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *BookingHandler) Calendar(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}
	ics, err := h.bookings.Calendar(c.Request.Context(), middleware.Username(c), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="booking.ics"`)
	c.Data(http.StatusOK, calendarContentType, ics)
}

func (h *BookingHandler) DJCalendar(c *gin.Context) {
	ics, err := h.bookings.DJCalendar(c.Request.Context(), middleware.Username(c), c.Param("username"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.Data(http.StatusOK, calendarContentType, ics)
}

func bookingID(c *gin.Context) (domain.BookingID, bool) {
	id := c.Param("id")
	if err := validation.ValidateBookingID(id); err != nil {
		_ = c.Error(err)
		return "", false
	}
	return domain.BookingID(id), true
}
