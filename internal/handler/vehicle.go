package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ev-charging-reservation/internal/model"
	"github.com/iliyamo/ev-charging-reservation/internal/repository"
)

// VehicleHandler lets drivers register and list their vehicles.
type VehicleHandler struct {
	Vehicles *repository.VehicleRepo
}

func NewVehicleHandler(v *repository.VehicleRepo) *VehicleHandler {
	return &VehicleHandler{Vehicles: v}
}

type vehicleReq struct {
	Plate string `json:"plate"`
	Model string `json:"model"`
}

type vehicleResp struct {
	ID    uint64 `json:"id"`
	Plate string `json:"plate"`
	Model string `json:"model"`
}

// Create registers a vehicle under the caller.  Duplicate plates
// answer 409.
func (h *VehicleHandler) Create(c echo.Context) error {
	uid, _, ok := identity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req vehicleReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if strings.TrimSpace(req.Plate) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "plate required"})
	}

	v := model.Vehicle{OwnerUserID: uid, Plate: req.Plate, Model: strings.TrimSpace(req.Model)}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Vehicles.Create(ctx, &v); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, vehicleResp{ID: v.ID, Plate: v.Plate, Model: v.Model})
}

// ListMine returns the caller's vehicles.
func (h *VehicleHandler) ListMine(c echo.Context) error {
	uid, _, ok := identity(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	vehicles, err := h.Vehicles.ListByOwner(ctx, uid)
	if err != nil {
		return respondError(c, err)
	}
	out := make([]vehicleResp, 0, len(vehicles))
	for _, v := range vehicles {
		out = append(out, vehicleResp{ID: v.ID, Plate: v.Plate, Model: v.Model})
	}
	return c.JSON(http.StatusOK, echo.Map{"vehicles": out})
}
