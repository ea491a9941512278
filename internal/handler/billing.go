package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/marriage-hall-ledger/internal/logging"
	"github.com/iliyamo/marriage-hall-ledger/internal/repository"
)

// BillingHandler exposes the read side of billings.  Billings are only ever
// written by the booking service.
type BillingHandler struct {
	Billings *repository.BillingRepo
	Log      logging.Logger
}

func (h *BillingHandler) List(c echo.Context) error {
	hallID, ok := pathHall(c)
	if !ok {
		return badParam(c, "hallId")
	}
	ctx, cancel := dbCtx(c)
	defer cancel()

	items, err := h.Billings.ListByHall(ctx, hallID)
	if err != nil {
		return respond(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": listOf(items)})
}

func (h *BillingHandler) ByBooking(c echo.Context) error {
	hallID, ok := pathHall(c)
	if !ok {
		return badParam(c, "hallId")
	}
	bookingID, ok := pathInt64(c, "bookingId")
	if !ok {
		return badParam(c, "bookingId")
	}
	ctx, cancel := dbCtx(c)
	defer cancel()

	b, err := h.Billings.GetByBooking(ctx, hallID, bookingID)
	if err != nil {
		return respond(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, b)
}

// ByUser lists billings recorded by one staff account of the hall.
func (h *BillingHandler) ByUser(c echo.Context) error {
	hallID, ok := pathHall(c)
	if !ok {
		return badParam(c, "hallId")
	}
	userID := strings.TrimSpace(c.Param("userId"))
	if userID == "" {
		return badParam(c, "userId")
	}
	ctx, cancel := dbCtx(c)
	defer cancel()

	items, err := h.Billings.ListByUser(ctx, hallID, userID)
	if err != nil {
		return respond(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": listOf(items)})
}
