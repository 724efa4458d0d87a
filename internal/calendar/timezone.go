package calendar

import (
	"time"
	_ "time/tzdata"
)

// Eastern is the bootcamp's timezone. Day and time-of-day projections are
// always computed in it, whatever the viewer's locale.
var Eastern = mustLoadLocation("America/New_York")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic("calendar: loading " + name + ": " + err.Error())
	}
	return loc
}

// Project returns the weekday name of start and the 24-hour "HH:MM" times of
// start and end, all in Eastern time. Missing instants project to "".
func Project(start, end *time.Time) (day, from, to string) {
	if start != nil {
		s := start.In(Eastern)
		day = s.Weekday().String()
		from = s.Format("15:04")
	}
	if end != nil {
		to = end.In(Eastern).Format("15:04")
	}
	return day, from, to
}

// dateOf truncates t to midnight of its Eastern calendar day.
func dateOf(t time.Time) time.Time {
	e := t.In(Eastern)
	return time.Date(e.Year(), e.Month(), e.Day(), 0, 0, 0, 0, Eastern)
}
