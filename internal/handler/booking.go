package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/marriage-hall-ledger/internal/logging"
	"github.com/iliyamo/marriage-hall-ledger/internal/middleware"
	"github.com/iliyamo/marriage-hall-ledger/internal/repository"
	"github.com/iliyamo/marriage-hall-ledger/internal/service"
)

// BookingHandler serves booking reads and the create/reschedule writes.
type BookingHandler struct {
	Bookings *repository.BookingRepo
	Svc      *service.BookingService
	Log      logging.Logger
}

// bookingReq is the wire shape of a booking.  function_date is a plain
// YYYY-MM-DD date; the window bounds are RFC 3339 timestamps.
type bookingReq struct {
	FunctionDate   string    `json:"function_date"`
	From           time.Time `json:"alloted_datetime_from"`
	To             time.Time `json:"alloted_datetime_to"`
	Name           string    `json:"name"`
	Phone          string    `json:"phone"`
	Address        string    `json:"address"`
	AlternatePhone []string  `json:"alternate_phone"`
	Email          string    `json:"email"`
	Rent           int64     `json:"rent"`
	Advance        int64     `json:"advance"`
	EventType      string    `json:"event_type"`
	TamilDate      *string   `json:"tamil_date"`
	TamilMonth     *string   `json:"tamil_month"`
}

type timeReq struct {
	FunctionDate string    `json:"function_date"`
	From         time.Time `json:"alloted_datetime_from"`
	To           time.Time `json:"alloted_datetime_to"`
}

func listOf[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func (h *BookingHandler) List(c echo.Context) error {
	hallID, ok := pathHall(c)
	if !ok {
		return badParam(c, "hallId")
	}
	ctx, cancel := dbCtx(c)
	defer cancel()

	items, err := h.Bookings.ListByHall(ctx, hallID)
	if err != nil {
		return respond(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": listOf(items)})
}

func (h *BookingHandler) Get(c echo.Context) error {
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

	b, err := h.Bookings.GetByID(ctx, hallID, bookingID)
	if err != nil {
		return respond(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, b)
}

// ByMonth lists the bookings whose function date falls in the given month.
func (h *BookingHandler) ByMonth(c echo.Context) error {
	hallID, ok := pathHall(c)
	if !ok {
		return badParam(c, "hallId")
	}
	year, _ := strconv.Atoi(c.Param("year"))
	month, _ := strconv.Atoi(c.Param("month"))
	from, to, ok := monthRange(year, month)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid year or month"})
	}
	return h.between(c, hallID, from, to)
}

func (h *BookingHandler) ByDate(c echo.Context) error {
	hallID, ok := pathHall(c)
	if !ok {
		return badParam(c, "hallId")
	}
	day, ok := parseDate(c.Param("date"))
	if !ok {
		return badParam(c, "date")
	}
	return h.between(c, hallID, day, day.AddDate(0, 0, 1))
}

func (h *BookingHandler) between(c echo.Context, hallID int64, from, to time.Time) error {
	ctx, cancel := dbCtx(c)
	defer cancel()

	items, err := h.Bookings.ListBetween(ctx, hallID, from, to)
	if err != nil {
		return respond(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": listOf(items)})
}

// Create books a slot for the caller's hall and seeds its billing with the
// advance.
func (h *BookingHandler) Create(c echo.Context) error {
	hallID, ok := pathHall(c)
	if !ok {
		return badParam(c, "hallId")
	}
	var req bookingReq
	if err := c.Bind(&req); err != nil {
		return invalidBody(c)
	}
	day, ok := parseDate(req.FunctionDate)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "function_date must be YYYY-MM-DD"})
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	res, err := h.Svc.CreateBooking(ctx, service.CreateBookingInput{
		HallID:         hallID,
		UserID:         middleware.UserID(c),
		FunctionDate:   day,
		From:           req.From,
		To:             req.To,
		Name:           req.Name,
		Phone:          req.Phone,
		Address:        req.Address,
		AlternatePhone: req.AlternatePhone,
		Email:          req.Email,
		Rent:           req.Rent,
		Advance:        req.Advance,
		EventType:      req.EventType,
		TamilDate:      req.TamilDate,
		TamilMonth:     req.TamilMonth,
	})
	if err != nil {
		return respond(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, res)
}

func (h *BookingHandler) UpdateTime(c echo.Context) error {
	hallID, ok := pathHall(c)
	if !ok {
		return badParam(c, "hallId")
	}
	bookingID, ok := pathInt64(c, "bookingId")
	if !ok {
		return badParam(c, "bookingId")
	}
	var req timeReq
	if err := c.Bind(&req); err != nil {
		return invalidBody(c)
	}
	day, ok := parseDate(req.FunctionDate)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "function_date must be YYYY-MM-DD"})
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	b, err := h.Svc.UpdateBookingTime(ctx, service.UpdateTimeInput{
		HallID: hallID, BookingID: bookingID, FunctionDate: day, From: req.From, To: req.To,
	})
	if err != nil {
		return respond(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, b)
}
