// Package router maps HTTP routes to handlers, grouped by the role
// required to call them.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ev-charging-reservation/internal/handler"
	"github.com/iliyamo/ev-charging-reservation/internal/middleware"
	"github.com/iliyamo/ev-charging-reservation/internal/model"
)

// RegisterRoutes registers routes that need no authentication.  At the
// moment that is only the health check used by load balancers.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the authentication endpoints.  Register,
// login, refresh and logout live under /v1/auth and need no token;
// /v1/me requires a valid access token with any known role.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	// Logout invalidates the refresh token sent in the body, so it
	// does not require an access token.
	g.POST("/logout", a.Logout)

	auth := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleDriver, model.RoleStaff, model.RoleAdmin),
	)
	auth.GET("/me", a.Me)
}

// RegisterPublic registers the unauthenticated browse endpoints.
// Guests can list stations, drill into a station's ports and see the
// live availability of a port's slots.  The optional cache middleware
// (Redis-backed) is applied to these reads only.
func RegisterPublic(e *echo.Echo, p *handler.PublicHandler, cache echo.MiddlewareFunc) {
	mws := []echo.MiddlewareFunc{}
	if cache != nil {
		mws = append(mws, cache)
	}
	e.GET("/v1/stations", p.GetStations, mws...)
	e.GET("/v1/stations/:id/ports", p.GetStationPorts, mws...)
	e.GET("/v1/ports/:id/slots", p.GetPortSlots, mws...)
}
