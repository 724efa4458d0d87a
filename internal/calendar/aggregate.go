// Package calendar turns Airtable rows into the calendar's display model:
// live sessions and assignments merged into one ordered event list, and the
// assignment bank with its filters.
package calendar

import (
	"sort"
	"strings"

	"bootcal/internal/airtable"
	"bootcal/internal/markdown"
	"bootcal/internal/models"
)

const (
	untitledEvent      = "Untitled Event"
	untitledAssignment = "Untitled Assignment"
)

// Viewer identifies who is looking at the calendar. StudentID is empty when
// the email did not match a roster row.
type Viewer struct {
	Email     string
	StudentID string
}

// Aggregate merges live session and assignment records into one list sorted
// by start time. Every live session is kept. Assignments are kept only when
// the viewer's email is among the assignees, so an anonymous viewer sees
// live sessions only.
func Aggregate(live, assignments []airtable.Record, viewer Viewer) ([]models.CalendarEvent, error) {
	events := make([]models.CalendarEvent, 0, len(live))

	for _, rec := range live {
		ev, err := LiveSession(rec)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}

	if viewer.Email != "" {
		for _, rec := range assignments {
			mine, err := assignedTo(rec, viewer.Email)
			if err != nil {
				return nil, err
			}
			if !mine {
				continue
			}
			ev, err := Assignment(rec, viewer.StudentID)
			if err != nil {
				return nil, err
			}
			events = append(events, ev)
		}
	}

	SortEvents(events)
	return events, nil
}

// LiveSession maps a CC-1 record to an event.
func LiveSession(rec airtable.Record) (models.CalendarEvent, error) {
	var f LiveSessionFields
	if err := rec.Decode(&f); err != nil {
		return models.CalendarEvent{}, err
	}

	// The session's own link wins over the tutor's personal room.
	join := f.ZoomLink
	if join == "" {
		join = f.TutorRoom.First()
	}

	ev := models.CalendarEvent{
		ID:            rec.ID,
		Title:         orDefault(f.Name, untitledEvent),
		Kind:          models.KindLiveSession,
		Description:   markdown.Render(f.Review),
		JoinLink:      join,
		ReplayURL:     f.MeetingVideo,
		ReplayEmbed:   f.VideoEmbed,
		StudentEmails: []string{},
	}
	setTimes(&ev, f.Start, f.End)
	return ev, nil
}

// Assignment maps an Assignments record to an event as seen by the student
// with the given id. It does not check that the student is an assignee.
func Assignment(rec airtable.Record, studentID string) (models.CalendarEvent, error) {
	var f AssignmentFields
	if err := rec.Decode(&f); err != nil {
		return models.CalendarEvent{}, err
	}

	ev := models.CalendarEvent{
		ID:             rec.ID,
		Title:          orDefault(f.Title, untitledAssignment),
		Kind:           models.KindAssignment,
		Description:    markdown.Render(f.Description),
		StartLink:      f.StartLink,
		StudentEmails:  nonNil(f.StudentEmails),
		StudentIDs:     f.Students,
		CreatorIDs:     f.Creators,
		CompletedBy:    f.Completed,
		IsCompleted:    contains(f.Completed, studentID),
		IsCreator:      contains(f.Creators, studentID),
		OneSMResources: f.OneSMResources,
		AAMCPassages:   f.AAMCPassages,
		AAMCResources:  f.AAMCResources,
		AAMCQuestions:  f.AAMCQuestions,
	}
	setTimes(&ev, f.Start, f.End)
	return ev, nil
}

// assignedTo reports whether email is among the record's assignees. Only
// the assignee column is decoded, so other students' rows are never parsed
// any further.
func assignedTo(rec airtable.Record, email string) (bool, error) {
	var f assigneeFields
	if err := rec.Decode(&f); err != nil {
		return false, err
	}
	return MatchesEmail(f.StudentEmails, email), nil
}

// setTimes fills the instants and their Eastern projections. An end before
// the start is clamped to the start.
func setTimes(ev *models.CalendarEvent, start, end Timestamp) {
	ev.StartAt = start.Ptr()
	ev.EndAt = end.Ptr()
	if ev.StartAt != nil && ev.EndAt != nil && ev.EndAt.Before(*ev.StartAt) {
		clamped := *ev.StartAt
		ev.EndAt = &clamped
	}
	ev.Day, ev.Start, ev.End = Project(ev.StartAt, ev.EndAt)
}

// SortEvents orders events by start time, events without one last. The sort
// is stable so identical input always gives identical output.
func SortEvents(events []models.CalendarEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i].StartAt, events[j].StartAt
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		}
		return a.Before(*b)
	})
}

// MatchesEmail reports whether email is in the list, ignoring case.
func MatchesEmail(emails []string, email string) bool {
	if email == "" {
		return false
	}
	for _, e := range emails {
		if e != "" && strings.EqualFold(e, email) {
			return true
		}
	}
	return false
}

// InWeek keeps the events whose Eastern start date falls inside w.
func InWeek(events []models.CalendarEvent, w models.Week) []models.CalendarEvent {
	from := dateOf(w.Start)
	until := dateOf(w.End).AddDate(0, 0, 1)

	out := make([]models.CalendarEvent, 0, len(events))
	for _, ev := range events {
		if ev.StartAt == nil {
			continue
		}
		if t := *ev.StartAt; !t.Before(from) && t.Before(until) {
			out = append(out, ev)
		}
	}
	return out
}

func contains(ids []string, id string) bool {
	if id == "" {
		return false
	}
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
