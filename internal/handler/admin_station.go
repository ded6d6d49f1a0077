package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ev-charging-reservation/internal/config"
	"github.com/iliyamo/ev-charging-reservation/internal/model"
	"github.com/iliyamo/ev-charging-reservation/internal/repository"
)

// StationHandler serves the admin CRUD surface for stations and their
// nested ports.
type StationHandler struct {
	Cfg      config.Config
	Stations *repository.StationRepo
	Ports    *repository.PortRepo
}

func NewStationHandler(cfg config.Config, s *repository.StationRepo, p *repository.PortRepo) *StationHandler {
	return &StationHandler{Cfg: cfg, Stations: s, Ports: p}
}

type portReq struct {
	ID            uint64  `json:"id,omitempty"`
	ConnectorType string  `json:"connector_type"`
	PowerKW       float64 `json:"power_kw"`
	SpeedClass    string  `json:"speed_class"`
	PricePerKWh   uint32  `json:"price_per_kwh"`
	Status        string  `json:"status,omitempty"`
}

type stationReq struct {
	Name      string    `json:"name"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Status    string    `json:"status,omitempty"`
	Ports     []portReq `json:"ports,omitempty"`
	// nil means the field was omitted, which defaults to true: an
	// update that does not mention a port retires it.
	RemoveMissingPorts *bool `json:"remove_missing_ports,omitempty"`
}

// removeMissing resolves the flag with its default.
func (r stationReq) removeMissing() bool {
	if r.RemoveMissingPorts == nil {
		return true
	}
	return *r.RemoveMissingPorts
}

type portResp struct {
	ID            uint64  `json:"id"`
	StationID     uint64  `json:"station_id"`
	ConnectorType string  `json:"connector_type"`
	PowerKW       float64 `json:"power_kw"`
	SpeedClass    string  `json:"speed_class"`
	PricePerKWh   uint32  `json:"price_per_kwh"`
	Status        string  `json:"status"`
}

type stationResp struct {
	ID        uint64     `json:"id"`
	Name      string     `json:"name"`
	Latitude  float64    `json:"latitude"`
	Longitude float64    `json:"longitude"`
	Status    string     `json:"status"`
	Ports     []portResp `json:"ports,omitempty"`
}

func toPortResp(p model.Port) portResp {
	return portResp{
		ID:            p.ID,
		StationID:     p.StationID,
		ConnectorType: p.ConnectorType,
		PowerKW:       p.PowerKW,
		SpeedClass:    p.SpeedClass,
		PricePerKWh:   p.PricePerKWh,
		Status:        p.Status,
	}
}

func validConnector(t string) bool {
	switch t {
	case model.ConnectorType2, model.ConnectorCCS, model.ConnectorCHAdeMO, model.ConnectorSchuko:
		return true
	}
	return false
}

func portsFromReq(reqs []portReq) ([]model.Port, string) {
	ports := make([]model.Port, 0, len(reqs))
	for i, pr := range reqs {
		connector := strings.ToUpper(strings.TrimSpace(pr.ConnectorType))
		if !validConnector(connector) {
			return nil, "unknown connector_type at ports[" + strconv.Itoa(i) + "]"
		}
		if pr.PowerKW <= 0 {
			return nil, "power_kw must be positive"
		}
		ports = append(ports, model.Port{
			ID:            pr.ID,
			ConnectorType: connector,
			PowerKW:       pr.PowerKW,
			SpeedClass:    strings.ToUpper(strings.TrimSpace(pr.SpeedClass)),
			PricePerKWh:   pr.PricePerKWh,
			Status:        strings.ToUpper(strings.TrimSpace(pr.Status)),
		})
	}
	return ports, ""
}

// Create inserts a station and its nested ports atomically.  Station
// capacity and duplicate names answer 409.
func (h *StationHandler) Create(c echo.Context) error {
	var req stationReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name required"})
	}
	ports, msg := portsFromReq(req.Ports)
	if msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}

	st := model.Station{
		Name:      req.Name,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		Status:    strings.ToUpper(strings.TrimSpace(req.Status)),
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Stations.CreateWithPorts(ctx, &st, ports, h.Cfg.MaxStations); err != nil {
		return respondError(c, err)
	}

	resp := stationResp{ID: st.ID, Name: st.Name, Latitude: st.Latitude, Longitude: st.Longitude, Status: st.Status}
	for _, p := range ports {
		resp.Ports = append(resp.Ports, toPortResp(p))
	}
	return c.JSON(http.StatusCreated, resp)
}

// List returns a page of live stations.
func (h *StationHandler) List(c echo.Context) error {
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

// Get returns one station with its live ports.
func (h *StationHandler) Get(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid station id"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	st, err := h.Stations.GetByID(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	ports, err := h.Ports.ListByStation(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	resp := stationResp{ID: st.ID, Name: st.Name, Latitude: st.Latitude, Longitude: st.Longitude, Status: st.Status}
	for _, p := range ports {
		resp.Ports = append(resp.Ports, toPortResp(p))
	}
	return c.JSON(http.StatusOK, resp)
}

// Update rewrites a station and synchronises its ports.  Payload ports
// with ids are updated, ports without ids are created, and unless
// remove_missing_ports is explicitly false the station's other live
// ports are retired.
func (h *StationHandler) Update(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid station id"})
	}
	var req stationReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name required"})
	}
	status := strings.ToUpper(strings.TrimSpace(req.Status))
	if status == "" {
		status = model.StationActive
	}
	if status != model.StationActive && status != model.StationMaintenance {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "status must be ACTIVE or MAINTENANCE"})
	}
	ports, msg := portsFromReq(req.Ports)
	if msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}

	st := model.Station{ID: id, Name: req.Name, Latitude: req.Latitude, Longitude: req.Longitude, Status: status}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Stations.UpdateWithPorts(ctx, &st, ports, req.removeMissing()); err != nil {
		return respondError(c, err)
	}

	resp := stationResp{ID: st.ID, Name: st.Name, Latitude: st.Latitude, Longitude: st.Longitude, Status: st.Status}
	for _, p := range ports {
		resp.Ports = append(resp.Ports, toPortResp(p))
	}
	return c.JSON(http.StatusOK, resp)
}

// Delete soft-deletes a station, cascading to its ports and slots.
// Repeating the call is a no-op 204.
func (h *StationHandler) Delete(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid station id"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Stations.SoftDelete(ctx, id); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// HardDelete removes the station row permanently; it answers 409 while
// any port still references the station.
func (h *StationHandler) HardDelete(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid station id"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Stations.HardDelete(ctx, id); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
