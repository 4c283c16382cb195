package router // package router wires handlers and middleware onto echo

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/coral-club-board/internal/handler"
	"github.com/iliyamo/coral-club-board/internal/middleware"
	"github.com/iliyamo/coral-club-board/internal/utils"
)

// RegisterRoutes registers routes that need no authentication and no
// rate limit.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterKV mounts the key-value contract.  Every response is marked
// no-store.  Writes are rate limited; reads are not, clients poll them
// every tick.
func RegisterKV(e *echo.Echo, h *handler.KVHandler, limits *middleware.Limiter) {
	g := e.Group("/kv", middleware.NoStore())
	g.GET("/get", h.Get)

	w := g.Group("", limits.Scope(middleware.ScopeKV))
	w.POST("/set", h.Set)
	w.POST("/incr", h.Incr)
	w.POST("/merge", h.Merge)
}

// RegisterPublic mounts the board read endpoints, the reservation form and
// the revision push feed.
func RegisterPublic(e *echo.Echo, b *handler.BoardHandler, hub *handler.RevisionHub, limits *middleware.Limiter) {
	g := e.Group("/v1", middleware.NoStore())
	g.GET("/board", b.GetBoard)
	g.GET("/board/ws", hub.Serve)
	g.POST("/reservations", b.CreateReservation, limits.Scope(middleware.ScopeReserve))
}

// RegisterAdmin mounts the staff panel.  Login has its own small bucket per
// IP; every other route requires an ADMIN token and is limited per token
// subject.
func RegisterAdmin(e *echo.Echo, a *handler.AdminHandler, jwtSecret string, limits *middleware.Limiter) {
	g := e.Group("/v1/admin", middleware.NoStore())
	g.POST("/login", a.Login, limits.Scope(middleware.ScopeLogin))

	auth := g.Group("", middleware.JWTAuth(jwtSecret), middleware.RequireRole(utils.RoleAdmin), limits.Scope(middleware.ScopeAdmin))
	auth.PUT("/brand", a.UpdateBrand)
	auth.PUT("/background", a.UpdateBackground)
	auth.PUT("/payments", a.UpdatePayments)
	auth.PUT("/categories", a.ReplaceCategories)
	auth.POST("/grid", a.RegenerateGrid)
	auth.PUT("/tents/:id/position", a.MoveTent)
	auth.PUT("/tents/:id/state", a.SetTentState)
	auth.POST("/reservations/:id/confirm", a.ConfirmReservation)
	auth.POST("/reservations/:id/release", a.ReleaseReservation)
	auth.GET("/reservations/:id/events", a.ReservationEvents)
	auth.PUT("/pin", a.ChangePIN)
}
