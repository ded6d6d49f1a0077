package handler

import (
	"math"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ev-charging-reservation/internal/model"
	"github.com/iliyamo/ev-charging-reservation/internal/repository"
)

// SessionHandler tracks charging sessions.  Progress is derived from
// elapsed time against the planned duration on every read.
type SessionHandler struct {
	Sessions *repository.SessionRepo
	Vehicles *repository.VehicleRepo
}

func NewSessionHandler(s *repository.SessionRepo, v *repository.VehicleRepo) *SessionHandler {
	return &SessionHandler{Sessions: s, Vehicles: v}
}

type sessionStartReq struct {
	SlotID      uint64  `json:"slot_id"`
	VehicleID   uint64  `json:"vehicle_id"`
	PlannedMins uint32  `json:"planned_minutes"`
	EnergyKWh   float64 `json:"energy_kwh,omitempty"`
}

type sessionResp struct {
	ID          uint64  `json:"id"`
	SlotID      uint64  `json:"slot_id"`
	VehicleID   uint64  `json:"vehicle_id"`
	Status      string  `json:"status"`
	StartedAt   string  `json:"started_at"`
	PlannedMins uint32  `json:"planned_minutes"`
	EnergyKWh   float64 `json:"energy_kwh"`
	Progress    float64 `json:"progress"`
	EndedAt     *string `json:"ended_at,omitempty"`
}

func toSessionResp(s *model.ChargingSession, now time.Time) sessionResp {
	out := sessionResp{
		ID:          s.ID,
		SlotID:      s.SlotID,
		VehicleID:   s.VehicleID,
		Status:      s.Status,
		StartedAt:   s.StartedAt.UTC().Format(time.RFC3339),
		PlannedMins: s.PlannedMins,
		EnergyKWh:   s.EnergyKWh,
		Progress:    math.Round(s.Progress(now)*10) / 10,
	}
	if s.EndedAt != nil {
		iso := s.EndedAt.UTC().Format(time.RFC3339)
		out.EndedAt = &iso
	}
	return out
}

// ownsVehicle checks the vehicle exists and belongs to the caller
// unless the caller is staff.
func (h *SessionHandler) ownsVehicle(c echo.Context, vehicleID, uid uint64, role string) error {
	if model.IsStaffRole(role) {
		ctx, cancel := reqCtx(c)
		defer cancel()
		_, err := h.Vehicles.GetByID(ctx, vehicleID)
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	v, err := h.Vehicles.GetByID(ctx, vehicleID)
	if err != nil {
		return err
	}
	if v.OwnerUserID != uid {
		return repository.ErrForbidden
	}
	return nil
}

// Start opens a charging session on a slot.
func (h *SessionHandler) Start(c echo.Context) error {
	uid, role, ok := identity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req sessionStartReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.SlotID == 0 || req.VehicleID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "slot_id and vehicle_id required"})
	}
	if req.PlannedMins == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "planned_minutes must be positive"})
	}
	if err := h.ownsVehicle(c, req.VehicleID, uid, role); err != nil {
		return respondError(c, err)
	}

	s := model.ChargingSession{
		SlotID:      req.SlotID,
		VehicleID:   req.VehicleID,
		StartedAt:   time.Now().UTC(),
		PlannedMins: req.PlannedMins,
		EnergyKWh:   req.EnergyKWh,
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Sessions.Start(ctx, &s); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, toSessionResp(&s, time.Now().UTC()))
}

// Get returns one session with its derived progress.
func (h *SessionHandler) Get(c echo.Context) error {
	uid, role, ok := identity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid session id"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	s, err := h.Sessions.GetByID(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	if err := h.ownsVehicle(c, s.VehicleID, uid, role); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toSessionResp(s, time.Now().UTC()))
}

// ListByVehicle returns the sessions of one vehicle, newest first.
func (h *SessionHandler) ListByVehicle(c echo.Context) error {
	uid, role, ok := identity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	vehicleID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid vehicle id"})
	}
	if err := h.ownsVehicle(c, vehicleID, uid, role); err != nil {
		return respondError(c, err)
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	sessions, err := h.Sessions.ListByVehicle(ctx, vehicleID)
	if err != nil {
		return respondError(c, err)
	}
	now := time.Now().UTC()
	out := make([]sessionResp, 0, len(sessions))
	for i := range sessions {
		out = append(out, toSessionResp(&sessions[i], now))
	}
	return c.JSON(http.StatusOK, echo.Map{"sessions": out})
}

// Complete closes an active session and frees its slot.
func (h *SessionHandler) Complete(c echo.Context) error {
	uid, role, ok := identity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid session id"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	existing, err := h.Sessions.GetByID(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	if err := h.ownsVehicle(c, existing.VehicleID, uid, role); err != nil {
		return respondError(c, err)
	}

	s, err := h.Sessions.Complete(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toSessionResp(s, time.Now().UTC()))
}
