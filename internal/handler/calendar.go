package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/marriage-hall-ledger/internal/clock"
	"github.com/iliyamo/marriage-hall-ledger/internal/logging"
	"github.com/iliyamo/marriage-hall-ledger/internal/service"
)

// CalendarHandler serves the availability views.  Responses are cached per
// hall by the router and purged on ledger writes.
type CalendarHandler struct {
	Svc   *service.CalendarService
	Clock clock.Clock
	Log   logging.Logger
}

// Calendar lists every date in [from, to).  from defaults to today and to
// to one month later.
func (h *CalendarHandler) Calendar(c echo.Context) error {
	return h.serve(c, h.Svc.Calendar)
}

// Booked lists only the dates that hold a booking.
func (h *CalendarHandler) Booked(c echo.Context) error {
	return h.serve(c, h.Svc.Booked)
}

type calendarFunc func(ctx context.Context, hallID int64, from, to time.Time) ([]service.CalendarDay, error)

func (h *CalendarHandler) serve(c echo.Context, view calendarFunc) error {
	hallID, ok := pathHall(c)
	if !ok {
		return badParam(c, "hallId")
	}
	from, to, bad := queryRange(c)
	if bad != "" {
		return badParam(c, bad)
	}
	if from.IsZero() {
		from = service.DateOnly(h.Clock.Now())
	}
	ctx, cancel := dbCtx(c)
	defer cancel()

	days, err := view(ctx, hallID, from, to)
	if err != nil {
		return respond(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": listOf(days)})
}
