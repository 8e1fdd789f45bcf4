package calendar

import "time"

// isHolidayFallback and isEarlyCloseFallback answer from the
// deterministic per-year calendar, computing and caching it on first
// use. The algorithm (observed New Year's/Juneteenth/Independence/
// Christmas, nth/last-weekday rules for MLK/Presidents/Memorial/Labor/
// Thanksgiving, the Gauss Easter algorithm for Good Friday, and the
// early-close set) matches the vendor's own published fallback exactly.

func (c *Calendar) isHolidayFallback(d time.Time) bool {
	yc := c.yearCalendar(d.Year())
	key := d.Format("2006-01-02")
	if yc.holidays[key] {
		return true
	}
	// Cross-year edge case: Dec 31 observed into the next year (New
	// Year's Day falling on a Saturday is observed the prior Friday,
	// which can land on Dec 31).
	if d.Month() == time.December && d.Day() == 31 {
		next := c.yearCalendar(d.Year() + 1)
		return next.holidays[key]
	}
	return false
}

func (c *Calendar) isEarlyCloseFallback(d time.Time) bool {
	yc := c.yearCalendar(d.Year())
	return yc.earlyClose[d.Format("2006-01-02")]
}

func (c *Calendar) yearCalendar(year int) yearCalendar {
	c.fallbackMu.Lock()
	defer c.fallbackMu.Unlock()
	if yc, ok := c.fallbackYear[year]; ok {
		return yc
	}
	yc := buildYearCalendar(year)
	c.fallbackYear[year] = yc
	return yc
}

func buildYearCalendar(year int) yearCalendar {
	holidays := map[string]bool{}
	add := func(d time.Time) { holidays[d.Format("2006-01-02")] = true }

	add(observeHoliday(time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)))         // New Year's Day
	add(nthWeekday(year, time.January, time.Monday, 3))                     // MLK Day
	add(nthWeekday(year, time.February, time.Monday, 3))                    // Presidents Day
	add(goodFriday(year))                                                   // Good Friday
	add(lastWeekday(year, time.May, time.Monday))                           // Memorial Day
	if year >= 2022 {
		add(observeHoliday(time.Date(year, 6, 19, 0, 0, 0, 0, time.UTC))) // Juneteenth
	}
	add(observeHoliday(time.Date(year, 7, 4, 0, 0, 0, 0, time.UTC)))       // Independence Day
	add(nthWeekday(year, time.September, time.Monday, 1))                  // Labor Day
	thanksgiving := nthWeekday(year, time.November, time.Thursday, 4)
	add(thanksgiving)
	add(observeHoliday(time.Date(year, 12, 25, 0, 0, 0, 0, time.UTC)))     // Christmas

	earlyClose := map[string]bool{}
	july3 := time.Date(year, 7, 3, 0, 0, 0, 0, time.UTC)
	if !holidays[july3.Format("2006-01-02")] && july3.Weekday() != time.Saturday && july3.Weekday() != time.Sunday {
		earlyClose[july3.Format("2006-01-02")] = true
	}
	blackFriday := thanksgiving.AddDate(0, 0, 1)
	earlyClose[blackFriday.Format("2006-01-02")] = true
	christmasEve := time.Date(year, 12, 24, 0, 0, 0, 0, time.UTC)
	if !holidays[christmasEve.Format("2006-01-02")] && christmasEve.Weekday() != time.Saturday && christmasEve.Weekday() != time.Sunday {
		earlyClose[christmasEve.Format("2006-01-02")] = true
	}

	return yearCalendar{holidays: holidays, earlyClose: earlyClose}
}

// observeHoliday shifts a fixed-date holiday landing on a weekend to the
// nearest weekday: Saturday observed the prior Friday, Sunday observed
// the following Monday.
func observeHoliday(d time.Time) time.Time {
	switch d.Weekday() {
	case time.Saturday:
		return d.AddDate(0, 0, -1)
	case time.Sunday:
		return d.AddDate(0, 0, 1)
	default:
		return d
	}
}

// nthWeekday returns the nth occurrence of weekday in month/year (n is
// 1-based).
func nthWeekday(year int, month time.Month, weekday time.Weekday, n int) time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	daysAhead := int(weekday) - int(first.Weekday())
	if daysAhead < 0 {
		daysAhead += 7
	}
	firstOccurrence := first.AddDate(0, 0, daysAhead)
	return firstOccurrence.AddDate(0, 0, 7*(n-1))
}

// lastWeekday returns the last occurrence of weekday in month/year.
func lastWeekday(year int, month time.Month, weekday time.Weekday) time.Time {
	var lastDay time.Time
	if month == time.December {
		lastDay = time.Date(year+1, time.January, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	} else {
		lastDay = time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	}
	daysBack := int(lastDay.Weekday()) - int(weekday)
	if daysBack < 0 {
		daysBack += 7
	}
	return lastDay.AddDate(0, 0, -daysBack)
}

// goodFriday computes Good Friday (Easter minus two days) via the
// Gauss/anonymous Gregorian algorithm.
func goodFriday(year int) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := ((h + l - 7*m + 114) % 31) + 1
	easter := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return easter.AddDate(0, 0, -2)
}
