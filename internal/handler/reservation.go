package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ev-charging-reservation/internal/engine"
	"github.com/iliyamo/ev-charging-reservation/internal/model"
	"github.com/iliyamo/ev-charging-reservation/internal/repository"
)

// ReservationHandler exposes the booking lifecycle: create, list, get,
// cancel and complete.  All conflict decisions live in the engine; the
// handler only shapes requests and responses.
type ReservationHandler struct {
	Engine       *engine.Engine
	Reservations *repository.ReservationRepo
}

func NewReservationHandler(e *engine.Engine, r *repository.ReservationRepo) *ReservationHandler {
	return &ReservationHandler{Engine: e, Reservations: r}
}

type reservationItemReq struct {
	SlotID   uint64 `json:"slot_id"`
	StartsAt string `json:"starts_at"`
	EndsAt   string `json:"ends_at"`
}

type reservationCreateReq struct {
	VehicleID uint64               `json:"vehicle_id"`
	Status    string               `json:"status,omitempty"`
	Items     []reservationItemReq `json:"items"`
}

type reservationItemResp struct {
	SlotID   uint64 `json:"slot_id"`
	StartsAt string `json:"starts_at"`
	EndsAt   string `json:"ends_at"`
}

type reservationResp struct {
	ID        uint64                `json:"id"`
	VehicleID uint64                `json:"vehicle_id"`
	Status    string                `json:"status"`
	QRCheck   bool                  `json:"qr_check"`
	QR        string                `json:"qr,omitempty"`
	Items     []reservationItemResp `json:"items"`
}

func toReservationResp(r *model.Reservation) reservationResp {
	out := reservationResp{
		ID:        r.ID,
		VehicleID: r.VehicleID,
		Status:    r.Status,
		QRCheck:   r.QRCheck,
		QR:        r.QR,
		Items:     make([]reservationItemResp, 0, len(r.Items)),
	}
	for _, it := range r.Items {
		out.Items = append(out.Items, reservationItemResp{
			SlotID:   it.SlotID,
			StartsAt: it.StartsAt.UTC().Format(time.RFC3339),
			EndsAt:   it.EndsAt.UTC().Format(time.RFC3339),
		})
	}
	return out
}

// Create books one or more slot/time-range items atomically.
func (h *ReservationHandler) Create(c echo.Context) error {
	uid, role, ok := identity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req reservationCreateReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	items := make([]engine.ItemInput, 0, len(req.Items))
	for _, it := range req.Items {
		starts, err := time.Parse(time.RFC3339, it.StartsAt)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "starts_at must be RFC3339"})
		}
		ends, err := time.Parse(time.RFC3339, it.EndsAt)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "ends_at must be RFC3339"})
		}
		items = append(items, engine.ItemInput{SlotID: it.SlotID, StartsAt: starts.UTC(), EndsAt: ends.UTC()})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	res, err := h.Engine.Create(ctx, engine.CreateInput{
		VehicleID:   req.VehicleID,
		Items:       items,
		Status:      strings.ToUpper(strings.TrimSpace(req.Status)),
		RequesterID: uid,
		Staff:       model.IsStaffRole(role),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, toReservationResp(res))
}

// ListMine returns a page of the caller's reservations, newest first,
// optionally narrowed with ?vehicle_id= and ?status=.
func (h *ReservationHandler) ListMine(c echo.Context) error {
	uid, _, ok := identity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	limit, offset := pageParams(c)
	f := repository.ReservationFilter{
		OwnerUserID: uid,
		Status:      strings.ToUpper(strings.TrimSpace(c.QueryParam("status"))),
		Limit:       limit,
		Offset:      offset,
	}
	if v := c.QueryParam("vehicle_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil || id == 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid vehicle_id"})
		}
		// Combined with the owner scope a foreign vehicle id simply
		// matches nothing.
		f.VehicleID = id
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	details, err := h.Reservations.List(ctx, f)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"reservations": details})
}

// ListAll returns a page of every reservation for staff, optionally
// filtered with ?status= and ?vehicle_id=.
func (h *ReservationHandler) ListAll(c echo.Context) error {
	limit, offset := pageParams(c)
	f := repository.ReservationFilter{
		Status: strings.ToUpper(strings.TrimSpace(c.QueryParam("status"))),
		Limit:  limit,
		Offset: offset,
	}
	if v := c.QueryParam("vehicle_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil || id == 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid vehicle_id"})
		}
		f.VehicleID = id
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	details, err := h.Reservations.List(ctx, f)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"reservations": details})
}

// Get returns one reservation.  Drivers only see their own.
func (h *ReservationHandler) Get(c echo.Context) error {
	uid, role, ok := identity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	detail, err := h.Reservations.GetByID(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	if !model.IsStaffRole(role) {
		owner, err := h.Reservations.OwnerID(ctx, id)
		if err != nil {
			return respondError(c, err)
		}
		if owner != uid {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		}
	}
	return c.JSON(http.StatusOK, detail)
}

// Cancel transitions a live reservation to CANCELLED and frees its
// slots.
func (h *ReservationHandler) Cancel(c echo.Context) error {
	uid, role, ok := identity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	res, err := h.Engine.Cancel(ctx, id, uid, model.IsStaffRole(role))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toReservationResp(res))
}

// Complete transitions a live reservation to COMPLETED and frees its
// slots.
func (h *ReservationHandler) Complete(c echo.Context) error {
	uid, role, ok := identity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	res, err := h.Engine.Complete(ctx, id, uid, model.IsStaffRole(role))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toReservationResp(res))
}
