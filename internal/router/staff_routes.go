package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ev-charging-reservation/internal/handler"
	"github.com/iliyamo/ev-charging-reservation/internal/middleware"
	"github.com/iliyamo/ev-charging-reservation/internal/model"
)

// RegisterStaff registers station-side operations.  Staff scan QR codes
// at the charger, browse every reservation and mark reservations as
// completed once charging ends.  Admins inherit all staff abilities.
func RegisterStaff(e *echo.Echo, ci *handler.CheckInHandler, r *handler.ReservationHandler, jwtSecret string) {
	g := e.Group(
		"/v1/staff",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleStaff, model.RoleAdmin),
	)

	g.POST("/checkin", ci.Scan)
	g.GET("/reservations", r.ListAll)
	g.POST("/reservations/:id/complete", r.Complete)
}
