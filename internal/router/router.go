package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/marriage-hall-ledger/internal/handler"
	"github.com/iliyamo/marriage-hall-ledger/internal/metrics"
	"github.com/iliyamo/marriage-hall-ledger/internal/middleware"
	"github.com/iliyamo/marriage-hall-ledger/internal/model"
)

// RegisterRoutes registers the routes that need no authentication: the
// health check and the Prometheus scrape endpoint.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health(db))
	e.GET("/metrics", metrics.Handler())
}

// RegisterAuth registers the session endpoints.  limit throttles the
// unauthenticated ones, which are the brute-force targets.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	g := e.Group("/v1/auth", limit)
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)
	g.POST("/otp", a.RequestOTP)
	g.POST("/otp/verify", a.VerifyOTP)

	me := e.Group("/v1/me", middleware.JWTAuth(jwtSecret), middleware.RequireRole(model.RoleOwner, model.RoleStaff))
	me.GET("", a.Me)
	me.POST("/password", a.ChangePassword)
}
