package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/studio-booking/internal/service"
)

// ClassHandler serves the class catalog.  Reads are public; writes are
// mounted behind RequireAdmin.
type ClassHandler struct {
	Catalog *service.CatalogService
	Log     logrus.FieldLogger
}

func NewClassHandler(catalog *service.CatalogService, log logrus.FieldLogger) *ClassHandler {
	return &ClassHandler{Catalog: catalog, Log: log}
}

// List handles GET /api/classes.
func (h *ClassHandler) List(c echo.Context) error {
	items, err := h.Catalog.ListClasses(c.Request().Context())
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Get handles GET /api/classes/:id.
func (h *ClassHandler) Get(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}
	cls, err := h.Catalog.GetClass(c.Request().Context(), id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, cls)
}

// Create handles POST /api/classes.
func (h *ClassHandler) Create(c echo.Context) error {
	var in service.ClassInput
	if err := c.Bind(&in); err != nil {
		return badRequest(c, "invalid request body")
	}
	cls, err := h.Catalog.CreateClass(c.Request().Context(), in)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, cls)
}

// Update handles PUT /api/classes/:id.  Absent fields keep their value.
func (h *ClassHandler) Update(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}
	var p service.ClassPatch
	if err := c.Bind(&p); err != nil {
		return badRequest(c, "invalid request body")
	}
	cls, err := h.Catalog.UpdateClass(c.Request().Context(), id, p)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, cls)
}

// Delete handles DELETE /api/classes/:id.  Existing bookings are cancelled
// and refunded first.
func (h *ClassHandler) Delete(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}
	refunded, err := h.Catalog.DeleteClass(c.Request().Context(), id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"deleted": id, "refunded_bookings": refunded})
}
