package features

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/gridcast/gridcast/internal/models"
)

// Region describes one grid region in the calendar file.
type Region struct {
	Name      string  `yaml:"name"`
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
}

// calendarFile is the on-disk YAML layout.
type calendarFile struct {
	Regions           []Region `yaml:"regions"`
	Holidays          []string `yaml:"holidays"`           // exact dates, 2006-01-02
	RecurringHolidays []string `yaml:"recurring_holidays"` // month-day, 01-02
}

// Calendar answers holiday and day-type questions for the regions being
// forecast. Dates are matched exactly; recurring entries match the same
// month and day in every year.
type Calendar struct {
	regions   []Region
	holidays  map[string]bool // keyed 2006-01-02
	recurring map[string]bool // keyed 01-02
}

// defaultRecurring covers the fixed-date holidays shared by the default
// regional calendars.
var defaultRecurring = []string{"01-01", "05-01", "12-25", "12-26"}

// DefaultCalendar returns a calendar with the built-in recurring holidays
// and no regions.
func DefaultCalendar() *Calendar {
	cal := &Calendar{
		holidays:  make(map[string]bool),
		recurring: make(map[string]bool),
	}
	for _, d := range defaultRecurring {
		cal.recurring[d] = true
	}
	return cal
}

// LoadCalendar reads a region/holiday YAML file. Region entries are
// optional; when the file lists no recurring holidays the built-in set is
// used.
func LoadCalendar(path string) (*Calendar, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read calendar file: %w", err)
	}

	var file calendarFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse calendar file: %w", err)
	}

	cal := &Calendar{
		regions:   file.Regions,
		holidays:  make(map[string]bool),
		recurring: make(map[string]bool),
	}

	for _, d := range file.Holidays {
		if _, err := time.Parse("2006-01-02", d); err != nil {
			return nil, fmt.Errorf("invalid holiday date %q: %w", d, err)
		}
		cal.holidays[d] = true
	}

	recurring := file.RecurringHolidays
	if len(recurring) == 0 {
		recurring = defaultRecurring
	}
	for _, d := range recurring {
		if _, err := time.Parse("01-02", d); err != nil {
			return nil, fmt.Errorf("invalid recurring holiday %q: %w", d, err)
		}
		cal.recurring[d] = true
	}

	return cal, nil
}

// Regions returns the regions declared in the calendar file.
func (c *Calendar) Regions() []Region {
	return c.regions
}

// IsHoliday reports whether the date is an exact or recurring holiday.
func (c *Calendar) IsHoliday(t time.Time) bool {
	if c.holidays[t.Format("2006-01-02")] {
		return true
	}
	return c.recurring[t.Format("01-02")]
}

// DayTypeOf classifies a date: holidays follow the Sunday load curve,
// Saturdays keep their own, everything else is a workday.
func (c *Calendar) DayTypeOf(t time.Time) models.DayType {
	if c.IsHoliday(t) {
		return models.DaySunday
	}
	switch t.Weekday() {
	case time.Saturday:
		return models.DaySaturday
	case time.Sunday:
		return models.DaySunday
	default:
		return models.DayWorkday
	}
}
