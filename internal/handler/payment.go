package handler

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/studio-booking/internal/payment"
	"github.com/iliyamo/studio-booking/internal/service"
)

// maxWebhookBody caps the webhook payload read into memory.
const maxWebhookBody = 1 << 20

// PaymentHandler starts checkouts and receives provider webhooks.
type PaymentHandler struct {
	Payments *service.PaymentService
	Log      logrus.FieldLogger
}

func NewPaymentHandler(payments *service.PaymentService, log logrus.FieldLogger) *PaymentHandler {
	return &PaymentHandler{Payments: payments, Log: log}
}

type checkoutReq struct {
	Tokens int `json:"tokens" validate:"required,min=1"`
}

// CreateSession handles POST /api/payment/create-session and its aliases.
// It answers with the provider redirect URL.
func (h *PaymentHandler) CreateSession(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var req checkoutReq
	if err := bindValid(c, &req); err != nil {
		return badRequest(c, err.Error())
	}
	co, err := h.Payments.CreateCheckout(c.Request().Context(), uid, req.Tokens)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, co)
}

// Session handles GET /api/payment/sessions/:id for the session's owner.
func (h *PaymentHandler) Session(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	ps, err := h.Payments.GetSession(c.Request().Context(), c.Param("id"), uid)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, ps)
}

// Webhook handles POST /api/payment/webhook.  The raw body is needed to
// check the signature, so it is read before any decoding.
func (h *PaymentHandler) Webhook(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return badRequest(c, "unreadable body")
	}
	res, err := h.Payments.HandleWebhook(c.Request().Context(), body, c.Request().Header.Get(payment.SignatureHeader))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"received": true, "result": res})
}
