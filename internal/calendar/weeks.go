package calendar

import (
	"fmt"
	"time"

	"bootcal/internal/models"
)

// Weeks returns count consecutive bootcamp weeks. Weeks run Saturday to
// Friday; a first day that is not a Saturday is moved back to the previous
// one.
func Weeks(first time.Time, count int) []models.Week {
	start := dateOf(first)
	start = start.AddDate(0, 0, -int((start.Weekday()-time.Saturday+7)%7))

	weeks := make([]models.Week, 0, max(count, 0))
	for i := 0; i < count; i++ {
		s := start.AddDate(0, 0, 7*i)
		e := s.AddDate(0, 0, 6)
		weeks = append(weeks, models.Week{
			Number: i + 1,
			Start:  s,
			End:    e,
			Label:  WeekLabel(s, e),
		})
	}
	return weeks
}

// WeekLabel formats a date range the way the calendar header shows it:
//
//	December 13 – 19, 2025
//	Jan 31 – Feb 6, 2026
//	Dec 27, 2025 – Jan 2, 2026
func WeekLabel(start, end time.Time) string {
	switch {
	case start.Year() != end.Year():
		return fmt.Sprintf("%s – %s", start.Format("Jan 2, 2006"), end.Format("Jan 2, 2006"))
	case start.Month() != end.Month():
		return fmt.Sprintf("%s – %s", start.Format("Jan 2"), end.Format("Jan 2, 2006"))
	default:
		return fmt.Sprintf("%s – %d, %d", start.Format("January 2"), end.Day(), end.Year())
	}
}

// FindWeek returns the week with the given number.
func FindWeek(weeks []models.Week, number int) (models.Week, bool) {
	for _, w := range weeks {
		if w.Number == number {
			return w, true
		}
	}
	return models.Week{}, false
}
