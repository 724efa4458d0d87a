// Package ics renders calendar events as iCalendar data.
package ics

import (
	"fmt"
	"html"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/google/uuid"

	"bootcal/internal/models"
)

const productID = "-//bootcal//EN"

// namespace scopes the name-based UIDs derived from record ids.
var namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://bootcal/events"))

// UID returns the stable iCalendar UID of a record id.
func UID(recordID string) string {
	return uuid.NewSHA1(namespace, []byte(recordID)).String() + "@bootcal"
}

// NewCalendar wraps components in a VCALENDAR carrying the product id.
func NewCalendar(name string, events ...*ical.Component) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)
	cal.Props.SetText(ical.PropCalendarScale, "GREGORIAN")
	if name != "" {
		cal.Props.SetText("X-WR-CALNAME", name)
	}
	cal.Children = append(cal.Children, events...)
	return cal
}

// Encode writes the events as one calendar. Events without a start time
// cannot be placed on a calendar and are skipped.
func Encode(w io.Writer, name string, events []models.CalendarEvent, now time.Time) error {
	comps := make([]*ical.Component, 0, len(events))
	for _, ev := range events {
		if ev.StartAt == nil {
			continue
		}
		comps = append(comps, Event(ev, now))
	}
	if err := ical.NewEncoder(w).Encode(NewCalendar(name, comps...)); err != nil {
		return fmt.Errorf("encoding calendar: %w", err)
	}
	return nil
}

// Event converts ev to a VEVENT. ev must have a start time.
func Event(ev models.CalendarEvent, now time.Time) *ical.Component {
	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, UID(ev.ID))
	ve.Props.SetText(ical.PropSummary, ev.Title)
	ve.Props.SetDateTime(ical.PropDateTimeStamp, now.UTC())
	ve.Props.SetDateTime(ical.PropDateTimeStart, ev.StartAt.UTC())
	if ev.EndAt != nil {
		ve.Props.SetDateTime(ical.PropDateTimeEnd, ev.EndAt.UTC())
	}

	switch ev.Kind {
	case models.KindLiveSession:
		ve.Props.SetText(ical.PropCategories, "Live Session")
		if ev.JoinLink != "" {
			ve.Props.SetText(ical.PropLocation, ev.JoinLink)
			ve.Props.SetText(ical.PropURL, ev.JoinLink)
		}
	case models.KindAssignment:
		ve.Props.SetText(ical.PropCategories, "Assignment")
		if ev.StartLink != "" {
			ve.Props.SetText(ical.PropURL, ev.StartLink)
		}
	}

	if desc := Description(ev, now); desc != "" {
		ve.Props.SetText(ical.PropDescription, desc)
	}
	return ve
}

// Description is the plain-text body shown by calendar apps: the rendered
// description without markup, followed by the event's links.
func Description(ev models.CalendarEvent, now time.Time) string {
	var b strings.Builder
	if text := PlainText(ev.Description); text != "" {
		b.WriteString(text)
	}

	link := func(label, url string) {
		if url == "" {
			return
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(label + ": " + url)
	}
	link("Join", ev.JoinLink)
	link("Get started", ev.StartLink)
	if ev.ReplayAvailable(now) {
		link("Replay", ev.ReplayURL)
	}
	return b.String()
}

var (
	breakTags = regexp.MustCompile(`(?i)<br\s*/?>|</p>|</li>|</h[1-6]>|</ul>`)
	itemTags  = regexp.MustCompile(`(?i)<li>`)
	anyTag    = regexp.MustCompile(`<[^>]+>`)
	blankRuns = regexp.MustCompile(`\n{3,}`)
)

// PlainText strips the markup produced by the markdown renderer.
func PlainText(fragment string) string {
	if fragment == "" {
		return ""
	}
	s := breakTags.ReplaceAllString(fragment, "\n")
	s = itemTags.ReplaceAllString(s, "• ")
	s = anyTag.ReplaceAllString(s, "")
	s = html.UnescapeString(s)
	s = blankRuns.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
