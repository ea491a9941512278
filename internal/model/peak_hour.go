package model

import "time"

// PeakHour marks a date whose rent is overridden (festival days, auspicious
// muhurtham dates).  The calendar reports such dates as unavailable for
// standard booking.
type PeakHour struct {
	ID     int64     `json:"id"`
	HallID int64     `json:"hall_id"`
	Date   time.Time `json:"date"`
	Rent   int64     `json:"rent"`
	Reason string    `json:"reason"`
}
