package patients

import "time"

// DayWindow returns the half-open interval [start of day, start of next day)
// containing now, computed in the clinic's reference timezone. "Today" is a
// property of the clinic, not of whatever zone the server runs in.
func DayWindow(now time.Time, loc *time.Location) (time.Time, time.Time) {
	local := now.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}
