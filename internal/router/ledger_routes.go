package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/marriage-hall-ledger/internal/handler"
	"github.com/iliyamo/marriage-hall-ledger/internal/middleware"
	"github.com/iliyamo/marriage-hall-ledger/internal/model"
)

// Ledger groups the hall-scoped handlers.
type Ledger struct {
	Halls     *handler.HallHandler
	Bookings  *handler.BookingHandler
	Charges   *handler.ChargeHandler
	Billings  *handler.BillingHandler
	Cancels   *handler.CancelHandler
	PeakHours *handler.PeakHourHandler
	Calendar  *handler.CalendarHandler
}

// Guards are the middlewares the ledger routes are built from.
type Guards struct {
	JWTSecret   string
	OperatorKey string // platform key guarding block/unblock
	Active      echo.MiddlewareFunc // hall must be unblocked and paid up
	Purge       echo.MiddlewareFunc // drop the hall's cached reads after a write
	Cache       echo.MiddlewareFunc // cache calendar reads per hall
}

// RegisterLedger registers every route under /v1 that takes a :hallId.  The
// caller's token must belong to that hall, except for block and unblock,
// which only the platform operator may call.
func RegisterLedger(e *echo.Echo, l Ledger, g Guards) {
	anyRole := middleware.RequireRole(model.RoleOwner, model.RoleStaff)
	scoped := func(prefix string) *echo.Group {
		return e.Group(prefix, middleware.JWTAuth(g.JWTSecret), anyRole, middleware.RequireHallAccess())
	}
	write := []echo.MiddlewareFunc{g.Active, g.Purge}

	// ---- Hall ----
	h := e.Group("/v1/halls/:hallId", middleware.JWTAuth(g.JWTSecret), middleware.RequireHallAccess())
	h.GET("", l.Halls.Get, anyRole)
	h.DELETE("", l.Halls.Delete, middleware.RequireRole(model.RoleOwner), g.Purge)
	operator := middleware.RequireOperatorKey(g.OperatorKey)
	e.POST("/v1/halls/:hallId/block", l.Halls.Block, operator, g.Purge)
	e.POST("/v1/halls/:hallId/unblock", l.Halls.Unblock, operator, g.Purge)

	// ---- Bookings ----
	b := scoped("/v1/bookings/:hallId")
	b.GET("", l.Bookings.List)
	b.GET("/month/:year/:month", l.Bookings.ByMonth)
	b.GET("/date/:date", l.Bookings.ByDate)
	b.GET("/:bookingId", l.Bookings.Get)
	b.POST("", l.Bookings.Create, write...)
	b.PUT("/:bookingId/time", l.Bookings.UpdateTime, write...)

	// ---- Charges ----
	c := scoped("/v1/charges/:hallId")
	c.GET("", l.Charges.List)
	c.GET("/:bookingId", l.Charges.ListByBooking)
	c.POST("/:bookingId", l.Charges.Add, write...)
	c.POST("/:bookingId/balance", l.Charges.Balance, write...)

	// ---- Billings ----
	bl := scoped("/v1/billings/:hallId")
	bl.GET("", l.Billings.List)
	bl.GET("/booking/:bookingId", l.Billings.ByBooking)
	bl.GET("/user/:userId", l.Billings.ByUser)

	// ---- Cancels and expenses ----
	cn := scoped("/v1/cancels/:hallId")
	cn.GET("", l.Cancels.List)
	cn.GET("/:bookingId", l.Cancels.Get)
	cn.POST("", l.Cancels.Create, write...)
	scoped("/v1/expenses/:hallId").GET("", l.Cancels.Expenses)

	// ---- Peak hours ----
	p := scoped("/v1/peak-hours/:hallId")
	p.GET("", l.PeakHours.List)
	p.GET("/:date", l.PeakHours.Get)
	p.POST("", l.PeakHours.Upsert, g.Purge)

	// ---- Calendar ----
	cal := scoped("/v1/calendar/:hallId")
	cal.GET("", l.Calendar.Calendar, g.Cache)
	cal.GET("/booked", l.Calendar.Booked, g.Cache)
}
