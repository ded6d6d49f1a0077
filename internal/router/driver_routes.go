package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ev-charging-reservation/internal/handler"
	"github.com/iliyamo/ev-charging-reservation/internal/middleware"
	"github.com/iliyamo/ev-charging-reservation/internal/model"
)

// RegisterDriver registers the endpoints any authenticated account can
// use: vehicle management, reservations over the caller's own vehicles
// and charging sessions.  Staff and admins also pass the role check so
// they can act on behalf of drivers; per-resource ownership is
// enforced inside the handlers.
func RegisterDriver(e *echo.Echo, v *handler.VehicleHandler, r *handler.ReservationHandler, s *handler.SessionHandler, jwtSecret string) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleDriver, model.RoleStaff, model.RoleAdmin),
	)

	// ---- Vehicles ----
	g.POST("/vehicles", v.Create)
	g.GET("/vehicles", v.ListMine)

	// ---- Reservations ----
	g.POST("/reservations", r.Create)
	g.GET("/my-reservations", r.ListMine)
	g.GET("/reservations/:id", r.Get)
	g.DELETE("/reservations/:id", r.Cancel)

	// ---- Charging sessions ----
	g.POST("/sessions", s.Start)
	g.GET("/sessions/:id", s.Get)
	g.POST("/sessions/:id/complete", s.Complete)
	g.GET("/vehicles/:id/sessions", s.ListByVehicle)
}
