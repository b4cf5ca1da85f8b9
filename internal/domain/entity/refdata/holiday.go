package refdata

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type HolidayType string

const (
	HolidayDayOfMonth HolidayType = "day_of_month"
	HolidayDayOfWeek  HolidayType = "day_of_week"
)

func (t HolidayType) IsValid() bool {
	return t == HolidayDayOfMonth || t == HolidayDayOfWeek
}

// WeekOfMonth selects the occurrence of a weekday within a month.
type WeekOfMonth int

const (
	WeekFirst  WeekOfMonth = 1
	WeekSecond WeekOfMonth = 2
	WeekThird  WeekOfMonth = 3
	WeekFourth WeekOfMonth = 4
	WeekLast   WeekOfMonth = 5
)

func (w WeekOfMonth) IsValid() bool {
	return w >= WeekFirst && w <= WeekLast
}

// MoveWeekend says how a holiday falling on a weekend is observed.
type MoveWeekend string

const (
	MoveNone                MoveWeekend = "none"
	MovePreviousBusinessDay MoveWeekend = "previous_business_day"
	MoveNextBusinessDay     MoveWeekend = "next_business_day"
	MoveNearestWeekday      MoveWeekend = "nearest_weekday"
)

func (m MoveWeekend) IsValid() bool {
	switch m {
	case MoveNone, MovePreviousBusinessDay, MoveNextBusinessDay, MoveNearestWeekday:
		return true
	default:
		return false
	}
}

// HolidayScope names the kind of parent a holiday belongs to.
type HolidayScope string

const (
	ScopeCountry  HolidayScope = "country"
	ScopeExchange HolidayScope = "exchange"
)

func (s HolidayScope) IsValid() bool {
	return s == ScopeCountry || s == ScopeExchange
}

// Holiday is a recurring non-trading day owned by a country or an
// exchange.
type Holiday struct {
	ID          uuid.UUID    `json:"id"`
	Attributes  Attributes   `json:"attributes"`
	Tag         Tag          `json:"tag"`
	Scope       HolidayScope `json:"scope"`
	ParentID    uuid.UUID    `json:"parent_id"`
	Name        string       `json:"name"`
	Type        HolidayType  `json:"type"`
	Month       time.Month   `json:"month"`
	DayOfMonth  int          `json:"day_of_month,omitempty"`
	DayOfWeek   time.Weekday `json:"day_of_week,omitempty"`
	WeekOfMonth WeekOfMonth  `json:"week_of_month,omitempty"`
	MoveWeekend MoveWeekend  `json:"move_weekend"`
}

// Validate checks the rule fields against the holiday type.
func (h *Holiday) Validate() error {
	if strings.TrimSpace(h.Name) == "" {
		return fmt.Errorf("holiday name is required")
	}
	if !h.Scope.IsValid() {
		return fmt.Errorf("invalid holiday scope: %q", string(h.Scope))
	}
	if h.Month < time.January || h.Month > time.December {
		return fmt.Errorf("invalid holiday month: %d", h.Month)
	}
	if h.MoveWeekend == "" {
		h.MoveWeekend = MoveNone
	}
	if !h.MoveWeekend.IsValid() {
		return fmt.Errorf("invalid weekend policy: %q", string(h.MoveWeekend))
	}
	switch h.Type {
	case HolidayDayOfMonth:
		// Feb 29 is accepted and clamped in non-leap years.
		if h.DayOfMonth < 1 || h.DayOfMonth > daysIn(h.Month, 2000) {
			return fmt.Errorf("%w: %d for %s", ErrInvalidDayOfMonth, h.DayOfMonth, h.Month)
		}
	case HolidayDayOfWeek:
		if h.DayOfWeek < time.Sunday || h.DayOfWeek > time.Saturday {
			return fmt.Errorf("invalid day of week: %d", h.DayOfWeek)
		}
		if !h.WeekOfMonth.IsValid() {
			return fmt.Errorf("invalid week of month: %d", h.WeekOfMonth)
		}
	default:
		return fmt.Errorf("invalid holiday type: %q", string(h.Type))
	}
	return nil
}

// ForYear returns the observed date of the holiday in the given year as a
// UTC midnight.
func (h Holiday) ForYear(year int) time.Time {
	var date time.Time
	switch h.Type {
	case HolidayDayOfWeek:
		date = nthWeekday(year, h.Month, h.DayOfWeek, h.WeekOfMonth)
	default:
		day := min(h.DayOfMonth, daysIn(h.Month, year))
		date = time.Date(year, h.Month, day, 0, 0, 0, 0, time.UTC)
	}
	return moveWeekend(date, h.MoveWeekend)
}

func nthWeekday(year int, month time.Month, weekday time.Weekday, week WeekOfMonth) time.Time {
	if week == WeekLast {
		last := time.Date(year, month, daysIn(month, year), 0, 0, 0, 0, time.UTC)
		back := (int(last.Weekday()) - int(weekday) + 7) % 7
		return last.AddDate(0, 0, -back)
	}
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	offset := (int(weekday) - int(first.Weekday()) + 7) % 7
	return first.AddDate(0, 0, offset+7*(int(week)-1))
}

func moveWeekend(date time.Time, policy MoveWeekend) time.Time {
	switch date.Weekday() {
	case time.Saturday:
		switch policy {
		case MovePreviousBusinessDay, MoveNearestWeekday:
			return date.AddDate(0, 0, -1)
		case MoveNextBusinessDay:
			return date.AddDate(0, 0, 2)
		}
	case time.Sunday:
		switch policy {
		case MovePreviousBusinessDay:
			return date.AddDate(0, 0, -2)
		case MoveNextBusinessDay, MoveNearestWeekday:
			return date.AddDate(0, 0, 1)
		}
	}
	return date
}

func daysIn(month time.Month, year int) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
