// Package period resolves the calendar-month accounting windows that scope
// quotas and aggregate queries.
//
// A Period is always derived from an instant and never persisted: callers
// recompute it on every query so a month rollover takes effect immediately.
package period

import "time"

// Period is the half-open window [Start, End) of one calendar month.
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// StartOf returns the first instant of the month containing t, in t's location.
func StartOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// Of returns the calendar month containing t.
func Of(t time.Time) Period {
	start := StartOf(t)
	return Period{Start: start, End: start.AddDate(0, 1, 0)}
}

// Month returns the window for the given year and month in loc.
// A nil loc means UTC.
func Month(year int, month time.Month, loc *time.Location) Period {
	if loc == nil {
		loc = time.UTC
	}
	return Of(time.Date(year, month, 1, 0, 0, 0, 0, loc))
}

// Contains reports whether t falls inside [Start, End).
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && t.Before(p.End)
}

// Next returns the following month.
func (p Period) Next() Period {
	return Of(p.End)
}

// Previous returns the preceding month.
func (p Period) Previous() Period {
	return Of(p.Start.AddDate(0, -1, 0))
}

// String renders the period as "2006-01".
func (p Period) String() string {
	return p.Start.Format("2006-01")
}
