package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/marriage-hall-ledger/internal/logging"
	"github.com/iliyamo/marriage-hall-ledger/internal/middleware"
	"github.com/iliyamo/marriage-hall-ledger/internal/model"
	"github.com/iliyamo/marriage-hall-ledger/internal/repository"
	"github.com/iliyamo/marriage-hall-ledger/internal/service"
)

// AppPaymentHandler serves the yearly subscription of a hall.
type AppPaymentHandler struct {
	Payments *repository.PaymentRepo
	Svc      *service.SubscriptionService
	Log      logging.Logger
}

type createPaymentReq struct {
	TransactionID *string `json:"transaction_id"`
}

type paymentStatusReq struct {
	Status        model.PaymentStatus `json:"status"`
	TransactionID *string             `json:"transaction_id"`
}

// Create opens a PENDING payment for the next yearly period.  Amounts are
// computed server side.
func (h *AppPaymentHandler) Create(c echo.Context) error {
	hallID, ok := pathHall(c)
	if !ok {
		return badParam(c, "hallId")
	}
	var req createPaymentReq
	if err := c.Bind(&req); err != nil {
		return invalidBody(c)
	}
	ctx, cancel := dbCtx(c)
	defer cancel()

	v, err := h.Svc.CreateYearlyPayment(ctx, service.CreatePaymentInput{HallID: hallID, TransactionID: req.TransactionID})
	if err != nil {
		return respond(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, v)
}

// UpdateStatus applies a gateway result.  The payment must belong to the
// caller's hall; a foreign payment id reads as missing.
func (h *AppPaymentHandler) UpdateStatus(c echo.Context) error {
	paymentID, ok := pathInt64(c, "paymentId")
	if !ok {
		return badParam(c, "paymentId")
	}
	var req paymentStatusReq
	if err := c.Bind(&req); err != nil {
		return invalidBody(c)
	}
	ctx, cancel := dbCtx(c)
	defer cancel()

	p, err := h.Payments.GetByID(ctx, paymentID)
	if err != nil {
		return respond(c, h.Log, err)
	}
	if hallID, _ := middleware.HallID(c); p.HallID != hallID {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "payment not found"})
	}

	v, err := h.Svc.UpdatePaymentStatus(ctx, service.UpdatePaymentInput{
		PaymentID: paymentID, Status: req.Status, TransactionID: req.TransactionID,
	})
	if err != nil {
		return respond(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, v)
}

// Current returns the hall's open payment, or a NONE projection of the
// next one.
func (h *AppPaymentHandler) Current(c echo.Context) error {
	hallID, ok := pathHall(c)
	if !ok {
		return badParam(c, "hallId")
	}
	ctx, cancel := dbCtx(c)
	defer cancel()

	v, err := h.Svc.GetCurrentPayment(ctx, hallID)
	if err != nil {
		return respond(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *AppPaymentHandler) History(c echo.Context) error {
	hallID, ok := pathHall(c)
	if !ok {
		return badParam(c, "hallId")
	}
	ctx, cancel := dbCtx(c)
	defer cancel()

	items, err := h.Svc.GetPaymentHistory(ctx, hallID)
	if err != nil {
		return respond(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": listOf(items)})
}

// Expire runs the expiry sweep on demand.  It is idempotent.
func (h *AppPaymentHandler) Expire(c echo.Context) error {
	ctx, cancel := dbCtx(c)
	defer cancel()

	n, err := h.Svc.ExpireOldPayments(ctx)
	if err != nil {
		return respond(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"expired": n})
}
