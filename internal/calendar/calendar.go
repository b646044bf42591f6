// Package calendar resolves business days for the market snapshot dates.
package calendar

import "time"

// Calendar knows which dates are holidays. Weekends are never business days.
type Calendar struct {
	holidays map[time.Time]struct{}
}

// New builds a Calendar from a list of holiday dates; only the date part of
// each holiday is used.
func New(holidays ...time.Time) Calendar {
	c := Calendar{holidays: make(map[time.Time]struct{}, len(holidays))}
	for _, h := range holidays {
		c.holidays[truncateToDate(h)] = struct{}{}
	}
	return c
}

// IsBusinessDay returns true if d is neither a weekend day nor a holiday.
func (c Calendar) IsBusinessDay(d time.Time) bool {
	if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return false
	}
	_, holiday := c.holidays[truncateToDate(d)]
	return !holiday
}

// PreviousBusinessDay returns the last business day strictly before d,
// at midnight UTC.
func (c Calendar) PreviousBusinessDay(d time.Time) time.Time {
	day := truncateToDate(d).AddDate(0, 0, -1)
	for !c.IsBusinessDay(day) {
		day = day.AddDate(0, 0, -1)
	}
	return day
}

// PreviousBusinessDay is New(holidays...).PreviousBusinessDay(d).
func PreviousBusinessDay(d time.Time, holidays []time.Time) time.Time {
	return New(holidays...).PreviousBusinessDay(d)
}

// truncateToDate keeps the calendar date of t in its own location and
// returns it as midnight UTC, so dates compare equal across zones.
func truncateToDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
