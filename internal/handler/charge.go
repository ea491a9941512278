package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/marriage-hall-ledger/internal/logging"
	"github.com/iliyamo/marriage-hall-ledger/internal/middleware"
	"github.com/iliyamo/marriage-hall-ledger/internal/repository"
	"github.com/iliyamo/marriage-hall-ledger/internal/service"
)

// ChargeHandler serves extra charges and balance payments.  Every write
// recomputes the booking's billing total.
type ChargeHandler struct {
	Charges *repository.ChargeRepo
	Svc     *service.BookingService
	Log     logging.Logger
}

type chargesReq struct {
	Charges []service.ChargeItem `json:"charges"`
}

type balanceReq struct {
	Amount int64  `json:"amount"`
	Reason string `json:"reason"`
}

func (h *ChargeHandler) List(c echo.Context) error {
	hallID, ok := pathHall(c)
	if !ok {
		return badParam(c, "hallId")
	}
	ctx, cancel := dbCtx(c)
	defer cancel()

	items, err := h.Charges.ListByHall(ctx, hallID)
	if err != nil {
		return respond(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": listOf(items)})
}

func (h *ChargeHandler) ListByBooking(c echo.Context) error {
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

	items, err := h.Charges.ListByBooking(ctx, hallID, bookingID)
	if err != nil {
		return respond(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": listOf(items)})
}

// Add appends one or more charges and marks the booking billed.
func (h *ChargeHandler) Add(c echo.Context) error {
	hallID, ok := pathHall(c)
	if !ok {
		return badParam(c, "hallId")
	}
	bookingID, ok := pathInt64(c, "bookingId")
	if !ok {
		return badParam(c, "bookingId")
	}
	var req chargesReq
	if err := c.Bind(&req); err != nil {
		return invalidBody(c)
	}
	ctx, cancel := dbCtx(c)
	defer cancel()

	res, err := h.Svc.AddCharges(ctx, service.AddChargesInput{
		HallID: hallID, BookingID: bookingID, UserID: middleware.UserID(c), Charges: req.Charges,
	})
	if err != nil {
		return respond(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, res)
}

// Balance records a payment toward the booking and returns the remaining
// balance.
func (h *ChargeHandler) Balance(c echo.Context) error {
	hallID, ok := pathHall(c)
	if !ok {
		return badParam(c, "hallId")
	}
	bookingID, ok := pathInt64(c, "bookingId")
	if !ok {
		return badParam(c, "bookingId")
	}
	var req balanceReq
	if err := c.Bind(&req); err != nil {
		return invalidBody(c)
	}
	ctx, cancel := dbCtx(c)
	defer cancel()

	res, err := h.Svc.AddBalancePayment(ctx, service.BalancePaymentInput{
		HallID: hallID, BookingID: bookingID, UserID: middleware.UserID(c),
		Amount: req.Amount, Reason: req.Reason,
	})
	if err != nil {
		return respond(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, res)
}
