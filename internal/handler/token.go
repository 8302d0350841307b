package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/studio-booking/internal/service"
)

// TokenHandler exposes the caller's token ledger.
type TokenHandler struct {
	Ledger *service.LedgerService
	Log    logrus.FieldLogger
}

func NewTokenHandler(ledger *service.LedgerService, log logrus.FieldLogger) *TokenHandler {
	return &TokenHandler{Ledger: ledger, Log: log}
}

type useReq struct {
	Amount int64 `json:"amount" validate:"required,min=1"`
}

// Mine handles GET /api/tokens/me: balance plus entries, newest first.
func (h *TokenHandler) Mine(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	st, err := h.Ledger.History(c.Request().Context(), uid)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, st)
}

// All handles GET /api/tokens/all (admin).
func (h *TokenHandler) All(c echo.Context) error {
	items, err := h.Ledger.AllBalances(c.Request().Context())
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Use handles POST /api/tokens/use, a direct debit outside bookings.
func (h *TokenHandler) Use(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var req useReq
	if err := bindValid(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	balance, err := h.Ledger.Use(c.Request().Context(), uid, req.Amount)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"used": req.Amount, "balance": balance})
}
