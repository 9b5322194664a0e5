package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/lab-access-control/internal/handler"
	"github.com/iliyamo/lab-access-control/internal/middleware"
	"github.com/iliyamo/lab-access-control/internal/model"
)

// RegisterAccess registers the member-facing admission endpoints under
// /v1.  All routes require a valid JWT; badge readers and kiosks hold
// service credentials and authenticate like any other client.  Members
// can badge through doors, self log in and out where the toggles allow
// it, switch billing projects, run tools and cancel their own
// reservations.
func RegisterAccess(e *echo.Echo, access *handler.AccessHandler, tools *handler.ToolHandler, jwtSecret string) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleMember, model.RoleStaff),
	)
	g.POST("/doors/:id/badge-in", access.BadgeIn)
	g.POST("/areas/:id/login", access.SelfLogIn)
	g.POST("/areas/logout", access.SelfLogOut)
	g.POST("/areas/project", access.ChangeProject)

	g.POST("/tools/:id/enable", tools.Enable)
	g.POST("/tools/:id/disable", tools.Disable)
	g.DELETE("/reservations/:id", tools.CancelReservation)
}
