package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/studio-booking/internal/service"
)

// BookingHandler books and cancels class seats for the caller.
type BookingHandler struct {
	Bookings *service.BookingService
	Log      logrus.FieldLogger
}

func NewBookingHandler(bookings *service.BookingService, log logrus.FieldLogger) *BookingHandler {
	return &BookingHandler{Bookings: bookings, Log: log}
}

type bookReq struct {
	ClassID uint64 `json:"classId" validate:"required"`
}

// Create handles POST /api/bookings.  One token is debited on success.
func (h *BookingHandler) Create(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var req bookReq
	if err := bindValid(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	b, err := h.Bookings.RequestBooking(c.Request().Context(), uid, req.ClassID)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, b)
}

// Mine handles GET /api/bookings/me.
func (h *BookingHandler) Mine(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	items, err := h.Bookings.ListBookingsForUser(c.Request().Context(), uid)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// All handles GET /api/bookings (admin).
func (h *BookingHandler) All(c echo.Context) error {
	items, err := h.Bookings.ListAllBookings(c.Request().Context())
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Cancel handles DELETE /api/bookings/:id.  Owners cancel their own
// bookings; admins cancel any.  The token is refunded.
func (h *BookingHandler) Cancel(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, err := parseID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}
	if err := h.Bookings.CancelBooking(c.Request().Context(), id, uid); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"cancelled": id})
}
