package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/marriage-hall-ledger/internal/logging"
	"github.com/iliyamo/marriage-hall-ledger/internal/model"
	"github.com/iliyamo/marriage-hall-ledger/internal/repository"
	"github.com/iliyamo/marriage-hall-ledger/internal/validation"
)

type PeakHourHandler struct {
	PeakHours *repository.PeakHourRepo
	Log       logging.Logger
}

type peakHourReq struct {
	Date   string `json:"date" validate:"required"`
	Rent   int64  `json:"rent" validate:"gte=0"`
	Reason string `json:"reason" validate:"max=191"`
}

// List returns peak dates; optional from/to query params (YYYY-MM-DD) bound
// the range.
func (h *PeakHourHandler) List(c echo.Context) error {
	hallID, ok := pathHall(c)
	if !ok {
		return badParam(c, "hallId")
	}
	from, to, bad := queryRange(c)
	if bad != "" {
		return badParam(c, bad)
	}
	ctx, cancel := dbCtx(c)
	defer cancel()

	items, err := h.PeakHours.ListBetween(ctx, hallID, from, to)
	if err != nil {
		return respond(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": listOf(items)})
}

func (h *PeakHourHandler) Get(c echo.Context) error {
	hallID, ok := pathHall(c)
	if !ok {
		return badParam(c, "hallId")
	}
	day, ok := parseDate(c.Param("date"))
	if !ok {
		return badParam(c, "date")
	}
	ctx, cancel := dbCtx(c)
	defer cancel()

	p, err := h.PeakHours.GetByDate(ctx, hallID, day)
	if err != nil {
		return respond(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, p)
}

// Upsert sets or replaces the override rent of a date.
func (h *PeakHourHandler) Upsert(c echo.Context) error {
	hallID, ok := pathHall(c)
	if !ok {
		return badParam(c, "hallId")
	}
	var req peakHourReq
	if err := c.Bind(&req); err != nil {
		return invalidBody(c)
	}
	if err := validation.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	day, ok := parseDate(req.Date)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "date must be YYYY-MM-DD"})
	}
	ctx, cancel := dbCtx(c)
	defer cancel()

	p := &model.PeakHour{HallID: hallID, Date: day, Rent: req.Rent, Reason: req.Reason}
	if err := h.PeakHours.Upsert(ctx, p); err != nil {
		return respond(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, p)
}
