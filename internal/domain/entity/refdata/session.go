package refdata

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const day = 24 * time.Hour

// Session is a trading window on one weekday of an exchange. Start and
// End are offsets from midnight in the exchange time zone; End before
// Start denotes a session that runs past midnight.
type Session struct {
	ID         uuid.UUID     `json:"id"`
	Attributes Attributes    `json:"attributes"`
	Tag        Tag           `json:"tag"`
	ExchangeID uuid.UUID     `json:"exchange_id"`
	Name       string        `json:"name"`
	DayOfWeek  time.Weekday  `json:"day_of_week"`
	Start      time.Duration `json:"start"`
	End        time.Duration `json:"end"`
}

func (s *Session) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("session name is required")
	}
	if s.DayOfWeek < time.Sunday || s.DayOfWeek > time.Saturday {
		return fmt.Errorf("invalid session day of week: %d", s.DayOfWeek)
	}
	if s.Start < 0 || s.Start >= day {
		return fmt.Errorf("invalid session start: %s", s.Start)
	}
	if s.End <= 0 || s.End > day {
		return fmt.Errorf("invalid session end: %s", s.End)
	}
	if s.Start == s.End {
		return fmt.Errorf("session start equals end: %s", s.Start)
	}
	return nil
}

// Contains reports whether t, expressed in loc, falls inside the session.
func (s *Session) Contains(t time.Time, loc *time.Location) bool {
	if loc != nil {
		t = t.In(loc)
	}
	offset := time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second
	if s.Start < s.End {
		return t.Weekday() == s.DayOfWeek && offset >= s.Start && offset < s.End
	}
	if t.Weekday() == s.DayOfWeek && offset >= s.Start {
		return true
	}
	next := (s.DayOfWeek + 1) % 7
	return t.Weekday() == next && offset < s.End
}

// ParseClock parses an "HH:MM" or "HH:MM:SS" offset from midnight.
func ParseClock(value string) (time.Duration, error) {
	layouts := []string{"15:04:05", "15:04"}
	for _, layout := range layouts {
		t, err := time.Parse(layout, value)
		if err == nil {
			return time.Duration(t.Hour())*time.Hour +
				time.Duration(t.Minute())*time.Minute +
				time.Duration(t.Second())*time.Second, nil
		}
	}
	if value == "24:00" {
		return day, nil
	}
	return 0, fmt.Errorf("invalid clock value: %q", value)
}
