package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/lab-access-control/internal/handler"
	"github.com/iliyamo/lab-access-control/internal/middleware"
	"github.com/iliyamo/lab-access-control/internal/model"
)

// RegisterStaff registers staff-only endpoints under /v1: occupancy
// views, forced logouts, direct interlock control and runtime
// customizations.
func RegisterStaff(e *echo.Echo, access *handler.AccessHandler, interlocks *handler.InterlockHandler, custom *handler.CustomizationHandler, jwtSecret string) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleStaff),
	)
	g.GET("/areas/:id/occupancy", access.Occupancy)
	g.POST("/users/:id/force-logout", access.ForceExit)

	g.POST("/interlocks/:id/lock", interlocks.Lock)
	g.POST("/interlocks/:id/unlock", interlocks.Unlock)
	g.POST("/interlocks/synchronize", interlocks.Synchronize)

	g.GET("/customizations", custom.Get)
	g.PUT("/customizations/:key", custom.Set)
}
