package service

import (
	"context"
	"time"

	"github.com/iliyamo/marriage-hall-ledger/internal/logging"
	"github.com/iliyamo/marriage-hall-ledger/internal/model"
)

// MaxCalendarDays bounds one calendar request.
const MaxCalendarDays = 92

// CalendarService assembles the read-only availability view.
type CalendarService struct {
	repos Repos
	log   logging.Logger
}

func NewCalendarService(repos Repos, log logging.Logger) *CalendarService {
	return &CalendarService{repos: repos, log: log}
}

type Slot struct {
	BookingID int64               `json:"booking_id"`
	From      time.Time           `json:"alloted_datetime_from"`
	To        time.Time           `json:"alloted_datetime_to"`
	Status    model.BookingStatus `json:"status"`
	Name      string              `json:"name"`
	EventType string              `json:"event_type"`
}

type CalendarDay struct {
	Date       string `json:"date"`
	Slots      []Slot `json:"slots"`
	PeakRent   *int64 `json:"peak_rent,omitempty"`
	PeakReason string `json:"peak_reason,omitempty"`
	Available  bool   `json:"available"`
}

// Calendar returns one entry per date in [from, to).  Only slot-holding
// bookings appear; a date is available when it has no slots and no peak
// rent override.
func (s *CalendarService) Calendar(ctx context.Context, hallID int64, from, to time.Time) (days []CalendarDay, err error) {
	defer func() { err = finish(s.log, "calendar", err) }()

	from, to, err = calendarRange(from, to)
	if err != nil {
		return nil, err
	}
	if err := s.repos.Halls.Exists(ctx, hallID); err != nil {
		return nil, err
	}
	bookings, err := s.repos.Bookings.ListOccupyingBetween(ctx, hallID, from, to)
	if err != nil {
		return nil, err
	}
	peaks, err := s.repos.PeakHours.ListBetween(ctx, hallID, from, to)
	if err != nil {
		return nil, err
	}
	return buildCalendar(from, to, bookings, peaks), nil
}

// Booked is Calendar restricted to dates holding at least one booking.
func (s *CalendarService) Booked(ctx context.Context, hallID int64, from, to time.Time) ([]CalendarDay, error) {
	days, err := s.Calendar(ctx, hallID, from, to)
	if err != nil {
		return nil, err
	}
	out := []CalendarDay{}
	for _, d := range days {
		if len(d.Slots) > 0 {
			out = append(out, d)
		}
	}
	return out, nil
}

func calendarRange(from, to time.Time) (time.Time, time.Time, error) {
	from = DateOnly(from)
	if to.IsZero() {
		to = from.AddDate(0, 0, 31)
	}
	to = DateOnly(to)
	if !to.After(from) {
		return from, to, invalidf("to must be after from")
	}
	if to.Sub(from) > MaxCalendarDays*24*time.Hour {
		return from, to, invalidf("calendar range is limited to %d days", MaxCalendarDays)
	}
	return from, to, nil
}

func buildCalendar(from, to time.Time, bookings []*model.Booking, peaks []model.PeakHour) []CalendarDay {
	byDate := map[string][]Slot{}
	for _, b := range bookings {
		if !b.Status.Occupies() {
			continue
		}
		key := b.FunctionDate.UTC().Format(time.DateOnly)
		byDate[key] = append(byDate[key], Slot{
			BookingID: b.BookingID,
			From:      b.From,
			To:        b.To,
			Status:    b.Status,
			Name:      b.Name,
			EventType: b.EventType,
		})
	}
	peakByDate := make(map[string]model.PeakHour, len(peaks))
	for _, p := range peaks {
		peakByDate[p.Date.UTC().Format(time.DateOnly)] = p
	}

	var days []CalendarDay
	for d := from; d.Before(to); d = d.AddDate(0, 0, 1) {
		key := d.Format(time.DateOnly)
		day := CalendarDay{Date: key, Slots: byDate[key]}
		if day.Slots == nil {
			day.Slots = []Slot{}
		}
		if p, ok := peakByDate[key]; ok {
			rent := p.Rent
			day.PeakRent = &rent
			day.PeakReason = p.Reason
		}
		day.Available = len(day.Slots) == 0 && day.PeakRent == nil
		days = append(days, day)
	}
	return days
}
