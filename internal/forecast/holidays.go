package forecast

import "time"

// US federal holiday calendar. Each holiday contributes its own additive
// indicator term to the model, so effects like Christmas closures and July 4
// crowds are learned independently.

var usHolidayNames = []string{
	"new_years_day",
	"mlk_day",
	"washingtons_birthday",
	"memorial_day",
	"juneteenth",
	"independence_day",
	"labor_day",
	"columbus_day",
	"veterans_day",
	"thanksgiving",
	"christmas_day",
}

// holidayNames returns the holiday columns for a country calendar. Only the
// US calendar is wired; any other code yields no holiday terms.
func holidayNames(country string) []string {
	if country != "US" {
		return nil
	}
	return usHolidayNames
}

// holidayFor returns the holiday name a date falls on, if any.
func holidayFor(country string, t time.Time) (string, bool) {
	if country != "US" {
		return "", false
	}
	y, m, d := t.Date()

	switch {
	case m == time.January && d == 1:
		return "new_years_day", true
	case m == time.June && d == 19:
		return "juneteenth", true
	case m == time.July && d == 4:
		return "independence_day", true
	case m == time.November && d == 11:
		return "veterans_day", true
	case m == time.December && d == 25:
		return "christmas_day", true
	}

	switch {
	case sameDate(t, nthWeekday(y, time.January, time.Monday, 3)):
		return "mlk_day", true
	case sameDate(t, nthWeekday(y, time.February, time.Monday, 3)):
		return "washingtons_birthday", true
	case sameDate(t, lastWeekday(y, time.May, time.Monday)):
		return "memorial_day", true
	case sameDate(t, nthWeekday(y, time.September, time.Monday, 1)):
		return "labor_day", true
	case sameDate(t, nthWeekday(y, time.October, time.Monday, 2)):
		return "columbus_day", true
	case sameDate(t, nthWeekday(y, time.November, time.Thursday, 4)):
		return "thanksgiving", true
	}

	return "", false
}

// nthWeekday returns the nth occurrence of a weekday in a month.
func nthWeekday(year int, month time.Month, weekday time.Weekday, n int) time.Time {
	t := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	offset := (int(weekday) - int(t.Weekday()) + 7) % 7
	return t.AddDate(0, 0, offset+(n-1)*7)
}

// lastWeekday returns the final occurrence of a weekday in a month.
func lastWeekday(year int, month time.Month, weekday time.Weekday) time.Time {
	t := time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	offset := (int(t.Weekday()) - int(weekday) + 7) % 7
	return t.AddDate(0, 0, -offset)
}

func sameDate(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}
