package models

// DayType classifies a calendar date for demand-pattern purposes. Workdays,
// Saturdays, and Sundays/holidays carry distinct load curves, so the three
// classes are kept separate everywhere the hour-of-day pattern matters.
type DayType int

const (
	DayWorkday DayType = iota
	DaySaturday
	DaySunday // includes holidays, which follow a Sunday-like load curve
)

// String returns the lowercase label used in logs, metrics, and storage.
func (d DayType) String() string {
	switch d {
	case DayWorkday:
		return "workday"
	case DaySaturday:
		return "saturday"
	case DaySunday:
		return "sunday"
	default:
		return "unknown"
	}
}
