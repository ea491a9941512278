package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/marriage-hall-ledger/internal/clock"
	"github.com/iliyamo/marriage-hall-ledger/internal/model"
	"github.com/iliyamo/marriage-hall-ledger/internal/repository"
)

// RequireHallAccess rejects requests whose :hallId differs from the hall in
// the caller's token.  Tenants can never reach each other's rows.
func RequireHallAccess() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			pathID, ok := PathHallID(c)
			if !ok {
				return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid hall id"})
			}
			tokenID, ok := HallID(c)
			if !ok || tokenID != pathID {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			}
			return next(c)
		}
	}
}

// HallStatusReader is the part of the hall repository RequireActiveHall
// needs.
type HallStatusReader interface {
	GetByID(ctx context.Context, hallID int64) (*model.Hall, error)
	BlockReason(ctx context.Context, hallID int64) (string, error)
}

// RequireActiveHall refuses ledger writes with 402 Payment Required while
// the hall is blocked or its subscription has lapsed.
func RequireActiveHall(halls HallStatusReader, clk clock.Clock) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := PathHallID(c)
			if !ok {
				return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid hall id"})
			}
			ctx := c.Request().Context()
			h, err := halls.GetByID(ctx, id)
			if errors.Is(err, repository.ErrHallNotFound) {
				return c.JSON(http.StatusNotFound, echo.Map{"error": "hall not found"})
			}
			if err != nil {
				c.Logger().Errorf("hall status lookup: %v", err)
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
			}
			if !h.IsActive {
				reason, _ := halls.BlockReason(ctx, id)
				return c.JSON(http.StatusPaymentRequired, echo.Map{"error": "hall is blocked", "reason": reason})
			}
			if h.SubscriptionLapsed(clk.Now()) {
				return c.JSON(http.StatusPaymentRequired, echo.Map{
					"error":    "subscription expired",
					"due_date": h.DueDate,
				})
			}
			return next(c)
		}
	}
}
