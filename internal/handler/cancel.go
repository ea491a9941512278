package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/marriage-hall-ledger/internal/logging"
	"github.com/iliyamo/marriage-hall-ledger/internal/middleware"
	"github.com/iliyamo/marriage-hall-ledger/internal/repository"
	"github.com/iliyamo/marriage-hall-ledger/internal/service"
)

// CancelHandler serves cancellations and the expense rows they produce.
type CancelHandler struct {
	Cancels *repository.CancellationRepo
	Svc     *service.BookingService
	Log     logging.Logger
}

type cancelReq struct {
	BookingID    int64  `json:"booking_id"`
	Reason       string `json:"reason"`
	CancelCharge int64  `json:"cancel_charge"`
}

func (h *CancelHandler) List(c echo.Context) error {
	hallID, ok := pathHall(c)
	if !ok {
		return badParam(c, "hallId")
	}
	ctx, cancel := dbCtx(c)
	defer cancel()

	items, err := h.Cancels.ListByHall(ctx, hallID)
	if err != nil {
		return respond(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": listOf(items)})
}

func (h *CancelHandler) Get(c echo.Context) error {
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

	row, err := h.Cancels.GetByBooking(ctx, hallID, bookingID)
	if err != nil {
		return respond(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, row)
}

// Create cancels a booking.  The refund is the advance less the
// cancellation charge, never below zero.
func (h *CancelHandler) Create(c echo.Context) error {
	hallID, ok := pathHall(c)
	if !ok {
		return badParam(c, "hallId")
	}
	var req cancelReq
	if err := c.Bind(&req); err != nil {
		return invalidBody(c)
	}
	ctx, cancel := dbCtx(c)
	defer cancel()

	res, err := h.Svc.CancelBooking(ctx, service.CancelInput{
		HallID: hallID, BookingID: req.BookingID, UserID: middleware.UserID(c),
		Reason: req.Reason, CancelCharge: req.CancelCharge,
	})
	if err != nil {
		return respond(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, res)
}

// Expenses lists the hall's expense ledger, newest first.
func (h *CancelHandler) Expenses(c echo.Context) error {
	hallID, ok := pathHall(c)
	if !ok {
		return badParam(c, "hallId")
	}
	ctx, cancel := dbCtx(c)
	defer cancel()

	items, err := h.Cancels.ListExpenses(ctx, hallID)
	if err != nil {
		return respond(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": listOf(items)})
}
