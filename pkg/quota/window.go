package quota

import "time"

// startOfDay returns midnight of t's calendar day in t's location.
func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// startOfMonth returns midnight of the first day of t's calendar month.
func startOfMonth(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
}

// nextDay returns midnight of the day after t.
func nextDay(t time.Time) time.Time {
	return startOfDay(t).AddDate(0, 0, 1)
}

// nextMonth returns midnight of the first day of the month after t.
func nextMonth(t time.Time) time.Time {
	return startOfMonth(t).AddDate(0, 1, 0)
}

// sameDay reports whether a and b fall on the same calendar day.
func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// sameMonth reports whether a and b fall in the same calendar month.
func sameMonth(a, b time.Time) bool {
	ay, am, _ := a.Date()
	by, bm, _ := b.Date()
	return ay == by && am == bm
}
