package handler // handler defines the HTTP handlers of the studio API

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/studio-booking/internal/middleware"
	"github.com/iliyamo/studio-booking/internal/service"
)

// errUnauthenticated is returned by getUserID when no user is on the context.
var errUnauthenticated = errors.New("invalid user_id in context")

// statusOf maps a service error kind to its HTTP status.
func statusOf(kind string) int {
	switch kind {
	case "not_found":
		return http.StatusNotFound
	case "already_booked", "class_full", "conflict":
		return http.StatusConflict
	case "insufficient_funds", "invalid_signature", "invalid_input":
		return http.StatusBadRequest
	case "forbidden":
		return http.StatusForbidden
	case "invalid_credentials":
		return http.StatusUnauthorized
	case "provider_unavailable":
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeError renders err as {"error": kind, "message": text}.  Internal
// and provider errors are logged and answered with a fixed message.
func writeError(c echo.Context, log logrus.FieldLogger, err error) error {
	kind := service.Kind(err)
	status := statusOf(kind)
	msg := err.Error()
	switch status {
	case http.StatusInternalServerError:
		log.WithError(err).WithFields(logrus.Fields{
			"path":       c.Path(),
			"request_id": c.Get("request_id"),
		}).Error("request failed")
		msg = "internal error"
	case http.StatusServiceUnavailable:
		// The cause names provider hosts and transport errors.
		log.WithError(err).WithFields(logrus.Fields{
			"path":       c.Path(),
			"request_id": c.Get("request_id"),
		}).Warn("payment provider unavailable")
		msg = "payment provider unavailable, retry later"
	}
	return c.JSON(status, echo.Map{"error": kind, "message": msg})
}

// badRequest answers 400 with the invalid_input kind.
func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_input", "message": msg})
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "message": "unauthorized"})
}

// getUserID extracts the authenticated user id set by JWTAuth.
func getUserID(c echo.Context) (uint64, error) {
	if id, ok := middleware.UserIDFrom(c); ok {
		return id, nil
	}
	return 0, errUnauthenticated
}

// parseID reads a positive numeric path parameter.
func parseID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return id, nil
}

// bindValid binds the request body into dst and runs its validate tags.
func bindValid(c echo.Context, dst interface{}) error {
	if err := c.Bind(dst); err != nil {
		return errors.New("invalid request body")
	}
	if err := c.Validate(dst); err != nil {
		return validationMessage(err)
	}
	return nil
}
