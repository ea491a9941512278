package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/marriage-hall-ledger/internal/handler"
	"github.com/iliyamo/marriage-hall-ledger/internal/middleware"
	"github.com/iliyamo/marriage-hall-ledger/internal/model"
)

// RegisterSubscription registers the yearly payment endpoints.  They stay
// reachable for blocked or lapsed halls so a hall can pay its way back.
func RegisterSubscription(e *echo.Echo, a *handler.AppPaymentHandler, jwtSecret string) {
	g := e.Group("/v1/app-payment", middleware.JWTAuth(jwtSecret), middleware.RequireRole(model.RoleOwner))

	g.POST("/expire", a.Expire)
	g.POST("/status/:paymentId", a.UpdateStatus)
	g.POST("/:hallId", a.Create, middleware.RequireHallAccess())
	g.GET("/current/:hallId", a.Current, middleware.RequireHallAccess())
	g.GET("/history/:hallId", a.History, middleware.RequireHallAccess())
}
