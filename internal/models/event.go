package models

import "time"

// EventKind distinguishes the two record sources merged into the calendar.
type EventKind string

const (
	KindLiveSession EventKind = "live"
	KindAssignment  EventKind = "homework"
)

// CalendarEvent is the display model the widget renders.
// It is derived from source records and never written back.
type CalendarEvent struct {
	ID    string    `json:"id"`
	Title string    `json:"title"`
	Kind  EventKind `json:"type"`

	StartAt *time.Time `json:"startDateTime,omitempty"`
	EndAt   *time.Time `json:"endDateTime,omitempty"`
	// Day, Start and End are projections of StartAt/EndAt in US Eastern time.
	Day   string `json:"day"`
	Start string `json:"start"`
	End   string `json:"end"`

	Description string `json:"description"` // HTML fragment

	// Live session only.
	JoinLink    string `json:"zoomLink,omitempty"`
	ReplayURL   string `json:"videoUrl,omitempty"`
	ReplayEmbed string `json:"videoEmbedCode,omitempty"`

	// Assignment only.
	StartLink     string   `json:"assignmentLink,omitempty"`
	StudentEmails []string `json:"studentEmails"`
	StudentIDs    []string `json:"studentLinkedIds,omitempty"`
	CreatorIDs    []string `json:"-"`
	CompletedBy   []string `json:"studentsCompleted,omitempty"`
	IsCompleted   bool     `json:"isCompleted"`
	IsCreator     bool     `json:"isCreator"`

	OneSMResources []string `json:"oneSmResources,omitempty"`
	AAMCPassages   []string `json:"aamcPassages,omitempty"`
	AAMCResources  []string `json:"aamcResources,omitempty"`
	AAMCQuestions  []string `json:"aamcQuestions,omitempty"`
}

// ReplayAvailable reports whether a recording is worth showing: the event is
// a live session that has ended and carries a replay.
func (e CalendarEvent) ReplayAvailable(now time.Time) bool {
	if e.Kind != KindLiveSession || e.EndAt == nil {
		return false
	}
	if e.ReplayURL == "" && e.ReplayEmbed == "" {
		return false
	}
	return e.EndAt.Before(now)
}
