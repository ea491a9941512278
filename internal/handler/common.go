package handler // handler defines the HTTP handlers of the hall ledger API

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/marriage-hall-ledger/internal/logging"
	"github.com/iliyamo/marriage-hall-ledger/internal/middleware"
	"github.com/iliyamo/marriage-hall-ledger/internal/repository"
	"github.com/iliyamo/marriage-hall-ledger/internal/service"
)

// requestTimeout bounds the database work of one request.
const requestTimeout = 5 * time.Second

func dbCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

func invalidBody(c echo.Context) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
}

// pathHall returns the :hallId parameter.  Routes are guarded by
// RequireHallAccess, so a bad value never reaches here in practice.
func pathHall(c echo.Context) (int64, bool) {
	return middleware.PathHallID(c)
}

func pathInt64(c echo.Context, name string) (int64, bool) {
	n, err := strconv.ParseInt(c.Param(name), 10, 64)
	return n, err == nil && n > 0
}

func badParam(c echo.Context, name string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid " + name})
}

// respond maps service and repository errors to HTTP responses.  Internal
// details are logged, never returned.
func respond(c echo.Context, log logging.Logger, err error) error {
	var se *service.Error
	switch {
	case errors.As(err, &se) && errors.Is(err, service.ErrInvalidInput):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": se.Message})
	case errors.As(err, &se) && errors.Is(err, service.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": se.Message})
	case errors.As(err, &se) && errors.Is(err, service.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": se.Message})
	case errors.Is(err, repository.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "conflict"})
	case errors.Is(err, repository.ErrHallNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "hall not found"})
	case errors.Is(err, repository.ErrBookingNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
	case errors.Is(err, repository.ErrBillingNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "billing not found"})
	case errors.Is(err, repository.ErrCancellationNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "cancellation not found"})
	case errors.Is(err, repository.ErrPeakHourNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "peak hour not found"})
	case errors.Is(err, repository.ErrPaymentNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "payment not found"})
	case errors.Is(err, repository.ErrUserNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
	}
	log.WithError(err).WithFields(logging.Fields{
		"method": c.Request().Method, "path": c.Path(),
	}).Error("request failed")
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

// monthRange returns [first day of month, first day of next month) in UTC.
func monthRange(year, month int) (time.Time, time.Time, bool) {
	if year < 1900 || year > 9999 || month < 1 || month > 12 {
		return time.Time{}, time.Time{}, false
	}
	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 1, 0), true
}

func parseDate(s string) (time.Time, bool) {
	t, err := time.Parse(time.DateOnly, s)
	return t, err == nil
}

// queryRange reads optional from/to dates from the query string.  A missing
// bound is the zero time.  bad names the first malformed parameter.
func queryRange(c echo.Context) (from, to time.Time, bad string) {
	var ok bool
	if v := c.QueryParam("from"); v != "" {
		if from, ok = parseDate(v); !ok {
			return from, to, "from"
		}
	}
	if v := c.QueryParam("to"); v != "" {
		if to, ok = parseDate(v); !ok {
			return from, to, "to"
		}
	}
	return from, to, ""
}
