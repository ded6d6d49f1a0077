package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ev-charging-reservation/internal/model"
	"github.com/iliyamo/ev-charging-reservation/internal/repository"
)

// SlotHandler serves the admin CRUD surface for slots.
type SlotHandler struct {
	Slots *repository.SlotRepo
}

func NewSlotHandler(s *repository.SlotRepo) *SlotHandler {
	return &SlotHandler{Slots: s}
}

type slotCreateReq struct {
	Order           uint32  `json:"order,omitempty"` // 0 -> auto-assign max+1
	Status          string  `json:"status,omitempty"`
	NextAvailableAt *string `json:"next_available_at,omitempty"`
}

type slotResp struct {
	ID              uint64  `json:"id"`
	PortID          uint64  `json:"port_id"`
	Order           uint32  `json:"order"`
	Status          string  `json:"status"`
	NextAvailableAt *string `json:"next_available_at"`
}

func toSlotResp(s model.Slot) slotResp {
	out := slotResp{ID: s.ID, PortID: s.PortID, Order: s.Order, Status: s.Status}
	if s.NextAvailableAt != nil {
		iso := s.NextAvailableAt.UTC().Format(time.RFC3339)
		out.NextAvailableAt = &iso
	}
	return out
}

// Create adds a slot under a port (POST /v1/admin/ports/:id/slots).
// Omitting order assigns the next free position.
func (h *SlotHandler) Create(c echo.Context) error {
	portID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid port id"})
	}
	var req slotCreateReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	status := strings.ToUpper(strings.TrimSpace(req.Status))
	if status != "" && !model.ValidSlotStatus(status) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown slot status"})
	}

	s := model.Slot{PortID: portID, Order: req.Order, Status: status}
	if req.NextAvailableAt != nil {
		t, err := time.Parse(time.RFC3339, *req.NextAvailableAt)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "next_available_at must be RFC3339"})
		}
		utc := t.UTC()
		s.NextAvailableAt = &utc
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Slots.Create(ctx, &s); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, toSlotResp(s))
}

// ListByPort returns the slots of a port with the presentation status
// derived from live reservation state.
func (h *SlotHandler) ListByPort(c echo.Context) error {
	portID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid port id"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	slots, err := h.Slots.ListByPort(ctx, portID, time.Now().UTC())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"slots": slots})
}

// Get returns one slot: its stored state plus the presentation status
// derived from live reservation state.
func (h *SlotHandler) Get(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid slot id"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	s, err := h.Slots.GetByID(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	reserved, err := h.Slots.ActivelyReserved(ctx, id, time.Now().UTC())
	if err != nil {
		return respondError(c, err)
	}
	out := toSlotResp(*s)
	out.Status = s.DisplayStatus(reserved)
	return c.JSON(http.StatusOK, echo.Map{"slot": out, "stored_status": s.Status})
}

// Patch applies a partial update.  The hint invariant is enforced on
// the merged result: AVAILABLE and INACTIVE slots never keep a
// next_available_at, even when the patch only changed the status.  An
// explicit JSON null clears the hint.
func (h *SlotHandler) Patch(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid slot id"})
	}

	// Decode into a raw map first to tell "field absent" apart from
	// "field set to null".
	var raw map[string]interface{}
	if err := c.Bind(&raw); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	var patch model.SlotPatch
	if v, present := raw["order"]; present {
		f, ok := v.(float64)
		if !ok || f < 1 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "order must be a positive integer"})
		}
		o := uint32(f)
		patch.Order = &o
	}
	if v, present := raw["status"]; present {
		str, ok := v.(string)
		status := strings.ToUpper(strings.TrimSpace(str))
		if !ok || !model.ValidSlotStatus(status) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown slot status"})
		}
		patch.Status = &status
	}
	if v, present := raw["next_available_at"]; present {
		if v == nil {
			patch.ClearNextAvailable = true
		} else {
			str, ok := v.(string)
			if !ok {
				return c.JSON(http.StatusBadRequest, echo.Map{"error": "next_available_at must be RFC3339 or null"})
			}
			t, err := time.Parse(time.RFC3339, str)
			if err != nil {
				return c.JSON(http.StatusBadRequest, echo.Map{"error": "next_available_at must be RFC3339 or null"})
			}
			utc := t.UTC()
			patch.NextAvailableAt = &utc
		}
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	s, err := h.Slots.GetByID(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	merged := s.ApplyPatch(patch)
	if err := h.Slots.Update(ctx, &merged); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toSlotResp(merged))
}

// Delete hard-deletes an unreferenced slot; slots with reservation
// history answer 409.
func (h *SlotHandler) Delete(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid slot id"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Slots.Delete(ctx, id); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
