package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ev-charging-reservation/internal/handler"
	"github.com/iliyamo/ev-charging-reservation/internal/middleware"
	"github.com/iliyamo/ev-charging-reservation/internal/model"
)

// RegisterAdmin registers infrastructure management under
// /v1/admin.  Only ADMIN accounts may create or modify stations,
// ports and slots.
func RegisterAdmin(e *echo.Echo, st *handler.StationHandler, p *handler.PortHandler, sl *handler.SlotHandler, jwtSecret string) {
	g := e.Group(
		"/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin),
	)

	// ---- Stations ----
	g.POST("/stations", st.Create)
	g.GET("/stations", st.List)
	g.GET("/stations/:id", st.Get)
	g.PUT("/stations/:id", st.Update)
	g.PATCH("/stations/:id", st.Update)
	g.DELETE("/stations/:id", st.Delete)
	// Hard delete removes the row outright and is refused while any
	// port still references the station.
	g.DELETE("/stations/:id/hard", st.HardDelete)

	// ---- Ports ----
	g.POST("/stations/:id/ports", p.Create)
	g.GET("/stations/:id/ports", p.ListByStation)
	g.GET("/ports/:id", p.Get)
	g.PUT("/ports/:id", p.Update)
	g.PATCH("/ports/:id", p.Update)
	g.DELETE("/ports/:id", p.Delete)

	// ---- Slots ----
	g.POST("/ports/:id/slots", sl.Create)
	g.GET("/ports/:id/slots", sl.ListByPort)
	g.GET("/slots/:id", sl.Get)
	g.PATCH("/slots/:id", sl.Patch)
	g.DELETE("/slots/:id", sl.Delete)
}
