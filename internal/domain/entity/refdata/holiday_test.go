package refdata

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func TestHolidayForYearDayOfMonth(t *testing.T) {
	h := Holiday{Type: HolidayDayOfMonth, Month: time.December, DayOfMonth: 25, MoveWeekend: MoveNone}
	assert.Equal(t, date(2024, time.December, 25), h.ForYear(2024))

	// 2022-12-25 is a Sunday.
	h.MoveWeekend = MoveNextBusinessDay
	assert.Equal(t, date(2022, time.December, 26), h.ForYear(2022))
	h.MoveWeekend = MovePreviousBusinessDay
	assert.Equal(t, date(2022, time.December, 23), h.ForYear(2022))
	h.MoveWeekend = MoveNearestWeekday
	assert.Equal(t, date(2022, time.December, 26), h.ForYear(2022))

	// 2021-12-25 is a Saturday.
	assert.Equal(t, date(2021, time.December, 24), h.ForYear(2021))
	h.MoveWeekend = MoveNextBusinessDay
	assert.Equal(t, date(2021, time.December, 27), h.ForYear(2021))
}

func TestHolidayForYearLeapDay(t *testing.T) {
	h := Holiday{Type: HolidayDayOfMonth, Month: time.February, DayOfMonth: 29, MoveWeekend: MoveNone}
	assert.Equal(t, date(2024, time.February, 29), h.ForYear(2024))
	assert.Equal(t, date(2023, time.February, 28), h.ForYear(2023))
}

func TestHolidayForYearDayOfWeek(t *testing.T) {
	thanksgiving := Holiday{Type: HolidayDayOfWeek, Month: time.November, DayOfWeek: time.Thursday, WeekOfMonth: WeekFourth}
	assert.Equal(t, date(2024, time.November, 28), thanksgiving.ForYear(2024))
	assert.Equal(t, date(2023, time.November, 23), thanksgiving.ForYear(2023))

	memorial := Holiday{Type: HolidayDayOfWeek, Month: time.May, DayOfWeek: time.Monday, WeekOfMonth: WeekLast}
	assert.Equal(t, date(2024, time.May, 27), memorial.ForYear(2024))
	assert.Equal(t, date(2021, time.May, 31), memorial.ForYear(2021))

	labor := Holiday{Type: HolidayDayOfWeek, Month: time.September, DayOfWeek: time.Monday, WeekOfMonth: WeekFirst}
	assert.Equal(t, date(2024, time.September, 2), labor.ForYear(2024))
}

func TestHolidayValidate(t *testing.T) {
	h := &Holiday{Name: "Bad", Scope: ScopeCountry, Type: HolidayDayOfMonth, Month: time.April, DayOfMonth: 31}
	assert.ErrorIs(t, h.Validate(), ErrInvalidDayOfMonth)

	h.DayOfMonth = 30
	require.NoError(t, h.Validate())
	assert.Equal(t, MoveNone, h.MoveWeekend)

	leap := &Holiday{Name: "Leap", Scope: ScopeExchange, Type: HolidayDayOfMonth, Month: time.February, DayOfMonth: 29}
	assert.NoError(t, leap.Validate())

	week := &Holiday{Name: "Week", Scope: ScopeCountry, Type: HolidayDayOfWeek, Month: time.May, DayOfWeek: time.Monday}
	assert.Error(t, week.Validate())
	week.WeekOfMonth = WeekLast
	assert.NoError(t, week.Validate())
}

func TestSessionContains(t *testing.T) {
	s := &Session{Name: "Regular", DayOfWeek: time.Monday, Start: 9*time.Hour + 30*time.Minute, End: 16 * time.Hour}
	require.NoError(t, s.Validate())

	assert.True(t, s.Contains(time.Date(2024, 1, 8, 10, 0, 0, 0, time.UTC), time.UTC))
	assert.False(t, s.Contains(time.Date(2024, 1, 8, 16, 0, 0, 0, time.UTC), time.UTC))
	assert.False(t, s.Contains(time.Date(2024, 1, 9, 10, 0, 0, 0, time.UTC), time.UTC))

	overnight := &Session{Name: "Night", DayOfWeek: time.Sunday, Start: 18 * time.Hour, End: 2 * time.Hour}
	require.NoError(t, overnight.Validate())
	assert.True(t, overnight.Contains(time.Date(2024, 1, 7, 19, 0, 0, 0, time.UTC), time.UTC))
	assert.True(t, overnight.Contains(time.Date(2024, 1, 8, 1, 0, 0, 0, time.UTC), time.UTC))
	assert.False(t, overnight.Contains(time.Date(2024, 1, 8, 3, 0, 0, 0, time.UTC), time.UTC))
}

func TestParseClock(t *testing.T) {
	d, err := ParseClock("09:30")
	require.NoError(t, err)
	assert.Equal(t, 9*time.Hour+30*time.Minute, d)

	d, err = ParseClock("24:00")
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, d)

	_, err = ParseClock("9h")
	assert.Error(t, err)
}
