package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ev-charging-reservation/internal/model"
	"github.com/iliyamo/ev-charging-reservation/internal/repository"
)

// PortHandler serves the admin CRUD surface for ports.
type PortHandler struct {
	Ports *repository.PortRepo
}

func NewPortHandler(p *repository.PortRepo) *PortHandler {
	return &PortHandler{Ports: p}
}

// Create adds a port to an existing station
// (POST /v1/admin/stations/:id/ports).
func (h *PortHandler) Create(c echo.Context) error {
	stationID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid station id"})
	}
	var req portReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	connector := strings.ToUpper(strings.TrimSpace(req.ConnectorType))
	if !validConnector(connector) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown connector_type"})
	}
	if req.PowerKW <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "power_kw must be positive"})
	}

	p := model.Port{
		StationID:     stationID,
		ConnectorType: connector,
		PowerKW:       req.PowerKW,
		SpeedClass:    strings.ToUpper(strings.TrimSpace(req.SpeedClass)),
		PricePerKWh:   req.PricePerKWh,
		Status:        strings.ToUpper(strings.TrimSpace(req.Status)),
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Ports.Create(ctx, &p); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, toPortResp(p))
}

// ListByStation returns the live ports of a station.
func (h *PortHandler) ListByStation(c echo.Context) error {
	stationID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid station id"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	ports, err := h.Ports.ListByStation(ctx, stationID)
	if err != nil {
		return respondError(c, err)
	}
	out := make([]portResp, 0, len(ports))
	for _, p := range ports {
		out = append(out, toPortResp(p))
	}
	return c.JSON(http.StatusOK, echo.Map{"ports": out})
}

// Get returns a single port.
func (h *PortHandler) Get(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid port id"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	p, err := h.Ports.GetByID(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toPortResp(*p))
}

// Update rewrites the mutable fields of a port.
func (h *PortHandler) Update(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid port id"})
	}
	var req portReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	connector := strings.ToUpper(strings.TrimSpace(req.ConnectorType))
	if !validConnector(connector) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown connector_type"})
	}
	if req.PowerKW <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "power_kw must be positive"})
	}
	status := strings.ToUpper(strings.TrimSpace(req.Status))
	if status == "" {
		status = model.PortAvailable
	}
	if status != model.PortAvailable && status != model.PortInUse {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "status must be AVAILABLE or IN_USE"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	// The port must exist and be live before the rewrite.
	existing, err := h.Ports.GetByID(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	p := model.Port{
		ID:            id,
		StationID:     existing.StationID,
		ConnectorType: connector,
		PowerKW:       req.PowerKW,
		SpeedClass:    strings.ToUpper(strings.TrimSpace(req.SpeedClass)),
		PricePerKWh:   req.PricePerKWh,
		Status:        status,
	}
	if err := h.Ports.Update(ctx, &p); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toPortResp(p))
}

// Delete soft-deletes a port and its slots.
func (h *PortHandler) Delete(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid port id"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Ports.SoftDelete(ctx, id); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
