package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ev-charging-reservation/internal/repository"
)

// PublicHandler exposes unauthenticated browse endpoints so drivers
// can inspect stations before logging in.  Responses reuse the admin
// read-models; nothing sensitive lives on stations, ports or slots.
type PublicHandler struct {
	Stations *repository.StationRepo
	Ports    *repository.PortRepo
	Slots    *repository.SlotRepo
}

func NewPublicHandler(st *repository.StationRepo, p *repository.PortRepo, sl *repository.SlotRepo) *PublicHandler {
	return &PublicHandler{Stations: st, Ports: p, Slots: sl}
}

// GetStations lists live stations.
func (h *PublicHandler) GetStations(c echo.Context) error {
	limit, offset := pageParams(c)

	ctx, cancel := reqCtx(c)
	defer cancel()

	stations, err := h.Stations.List(ctx, limit, offset)
	if err != nil {
		return respondError(c, err)
	}
	out := make([]stationResp, 0, len(stations))
	for _, st := range stations {
		out = append(out, stationResp{ID: st.ID, Name: st.Name, Latitude: st.Latitude, Longitude: st.Longitude, Status: st.Status})
	}
	return c.JSON(http.StatusOK, echo.Map{"stations": out})
}

// GetStationPorts lists the live ports of a station.
func (h *PublicHandler) GetStationPorts(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid station id"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if _, err := h.Stations.GetByID(ctx, id); err != nil {
		return respondError(c, err)
	}
	ports, err := h.Ports.ListByStation(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	out := make([]portResp, 0, len(ports))
	for _, p := range ports {
		out = append(out, toPortResp(p))
	}
	return c.JSON(http.StatusOK, echo.Map{"ports": out})
}

// GetPortSlots lists the slots of a port with availability derived
// from live reservation state, so guests see IN_USE exactly while a
// PENDING or CONFIRMED reservation covers the current instant.
func (h *PublicHandler) GetPortSlots(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid port id"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if _, err := h.Ports.GetByID(ctx, id); err != nil {
		return respondError(c, err)
	}
	slots, err := h.Slots.ListByPort(ctx, id, time.Now().UTC())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"slots": slots})
}
