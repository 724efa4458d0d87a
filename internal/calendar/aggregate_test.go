package calendar

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bootcal/internal/airtable"
	"bootcal/internal/models"
)

func record(t *testing.T, id string, fields map[string]any) airtable.Record {
	t.Helper()
	raw, err := json.Marshal(fields)
	require.NoError(t, err)
	return airtable.Record{ID: id, Fields: raw}
}

func TestAggregateSortsByStartMissingLast(t *testing.T) {
	live := []airtable.Record{
		record(t, "recNoStart", map[string]any{"Name": "TBD"}),
		record(t, "recLate", map[string]any{"Name": "Late", "Start Date / Time": "2025-12-15T20:00:00.000Z"}),
		record(t, "recEarly", map[string]any{"Name": "Early", "Start Date / Time": "2025-12-14T15:00:00.000Z"}),
	}
	assignments := []airtable.Record{
		record(t, "recMid", map[string]any{
			"title":                   "Mid",
			"start_date_time":         "2025-12-15T12:00:00.000Z",
			"student_email_addresses": []string{"a@x.com"},
		}),
	}

	events, err := Aggregate(live, assignments, Viewer{Email: "a@x.com"})
	require.NoError(t, err)

	ids := make([]string, 0, len(events))
	for _, ev := range events {
		ids = append(ids, ev.ID)
	}
	assert.Equal(t, []string{"recEarly", "recMid", "recLate", "recNoStart"}, ids)

	for i := 1; i < len(events); i++ {
		prev, cur := events[i-1].StartAt, events[i].StartAt
		if prev == nil {
			assert.Nil(t, cur, "event without start followed by one with a start")
			continue
		}
		if cur != nil {
			assert.False(t, cur.Before(*prev))
		}
	}
}

func TestAggregateAnonymousViewerSeesOnlyLiveSessions(t *testing.T) {
	live := []airtable.Record{record(t, "recLive", map[string]any{"Name": "Session"})}
	assignments := []airtable.Record{
		record(t, "recA", map[string]any{"title": "HW", "student_email_addresses": []string{"a@x.com"}}),
	}

	events, err := Aggregate(live, assignments, Viewer{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, models.KindLiveSession, events[0].Kind)
}

func TestAggregateMatchesEmailCaseInsensitively(t *testing.T) {
	assignments := []airtable.Record{
		record(t, "recMine", map[string]any{"title": "Mine", "student_email_addresses": []string{"A@X.com"}}),
		record(t, "recOther", map[string]any{"title": "Other", "student_email_addresses": []string{"b@x.com"}}),
		record(t, "recPrefix", map[string]any{"title": "Prefix", "student_email_addresses": []string{"a@x.co"}}),
	}

	events, err := Aggregate(nil, assignments, Viewer{Email: "a@x.com"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "recMine", events[0].ID)
}

func TestAggregateCompletionAndCreatorFlags(t *testing.T) {
	assignments := []airtable.Record{
		record(t, "recA", map[string]any{
			"title":                   "Practice",
			"student_email_addresses": []string{"a@x.com"},
			"students_completed":      []string{"S1"},
			"student_creator":         []string{"S1"},
		}),
	}

	events, err := Aggregate(nil, assignments, Viewer{Email: "a@x.com", StudentID: "S1"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.True(t, events[0].IsCompleted)
	assert.True(t, events[0].IsCreator)

	events, err = Aggregate(nil, assignments, Viewer{Email: "a@x.com"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.False(t, events[0].IsCompleted)
	assert.False(t, events[0].IsCreator)
}

func TestAggregateIsStable(t *testing.T) {
	same := "2025-12-14T15:00:00.000Z"
	live := []airtable.Record{
		record(t, "rec1", map[string]any{"Name": "One", "Start Date / Time": same}),
		record(t, "rec2", map[string]any{"Name": "Two", "Start Date / Time": same}),
		record(t, "rec3", map[string]any{"Name": "Three"}),
		record(t, "rec4", map[string]any{"Name": "Four"}),
	}

	first, err := Aggregate(live, nil, Viewer{})
	require.NoError(t, err)
	second, err := Aggregate(live, nil, Viewer{})
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, "rec1", first[0].ID)
	assert.Equal(t, "rec3", first[2].ID)
}

func TestAggregateRejectsMalformedRecord(t *testing.T) {
	live := []airtable.Record{{ID: "recBad", Fields: json.RawMessage(`{"Start Date / Time": 12}`)}}
	_, err := Aggregate(live, nil, Viewer{})
	assert.ErrorIs(t, err, models.ErrSourceFetch)
}

func TestLiveSession(t *testing.T) {
	rec := record(t, "recL", map[string]any{
		"Start Date / Time":    "2025-12-15T23:30:00.000Z",
		"End Date / Time":      "2025-12-16T01:00:00.000Z",
		"Zoom Link (Tutor Personal Zoom Room) (from Instructor (linked))": []string{"https://zoom.us/my/tutor"},
		"Assignments & Review": "**Read** ch 1",
		"Meeting Video":        "https://video/1",
	})

	ev, err := LiveSession(rec)
	require.NoError(t, err)
	assert.Equal(t, "Untitled Event", ev.Title)
	assert.Equal(t, "https://zoom.us/my/tutor", ev.JoinLink)
	assert.Equal(t, "<strong>Read</strong> ch 1", ev.Description)
	assert.Equal(t, "Monday", ev.Day)
	assert.Equal(t, "18:30", ev.Start)
	assert.Equal(t, "20:00", ev.End)
	assert.Equal(t, []string{}, ev.StudentEmails)

	assert.False(t, ev.ReplayAvailable(time.Date(2025, 12, 15, 0, 0, 0, 0, time.UTC)))
	assert.True(t, ev.ReplayAvailable(time.Date(2025, 12, 17, 0, 0, 0, 0, time.UTC)))
}

func TestLiveSessionPrefersSessionLink(t *testing.T) {
	rec := record(t, "recL", map[string]any{
		"Name":      "Session",
		"Zoom link": "https://zoom.us/j/1",
		"Zoom Link (Tutor Personal Zoom Room) (from Instructor (linked))": "https://zoom.us/my/tutor",
	})

	ev, err := LiveSession(rec)
	require.NoError(t, err)
	assert.Equal(t, "https://zoom.us/j/1", ev.JoinLink)
}

func TestAssignmentClampsEndBeforeStart(t *testing.T) {
	rec := record(t, "recA", map[string]any{
		"start_date_time": "2025-12-15T15:00:00.000Z",
		"end_date_time":   "2025-12-15T14:00:00.000Z",
	})

	ev, err := Assignment(rec, "")
	require.NoError(t, err)
	assert.Equal(t, "Untitled Assignment", ev.Title)
	require.NotNil(t, ev.EndAt)
	assert.True(t, ev.EndAt.Equal(*ev.StartAt))
	assert.Equal(t, ev.Start, ev.End)
}

func TestProjectHandlesDaylightSaving(t *testing.T) {
	summer := time.Date(2026, 7, 1, 16, 0, 0, 0, time.UTC)
	winter := time.Date(2026, 1, 1, 16, 0, 0, 0, time.UTC)

	day, from, to := Project(&summer, nil)
	assert.Equal(t, "Wednesday", day)
	assert.Equal(t, "12:00", from)
	assert.Empty(t, to)

	_, from, _ = Project(&winter, nil)
	assert.Equal(t, "11:00", from)
}

func TestInWeek(t *testing.T) {
	weeks := Weeks(time.Date(2025, 12, 13, 0, 0, 0, 0, Eastern), 2)
	at := func(s string) *time.Time {
		v, err := time.Parse(time.RFC3339, s)
		require.NoError(t, err)
		return &v
	}
	events := []models.CalendarEvent{
		{ID: "fri-late", StartAt: at("2025-12-20T04:30:00Z")}, // Friday 23:30 Eastern
		{ID: "sat", StartAt: at("2025-12-20T15:00:00Z")},
		{ID: "none"},
	}

	assert.Equal(t, "fri-late", InWeek(events, weeks[0])[0].ID)
	got := InWeek(events, weeks[1])
	require.Len(t, got, 1)
	assert.Equal(t, "sat", got[0].ID)
}

func TestAggregateIgnoresOtherStudentsRows(t *testing.T) {
	assignments := []airtable.Record{
		record(t, "recMine", map[string]any{
			"title":                   "Mine",
			"start_date_time":         "2025-12-15T15:00:00.000Z",
			"student_email_addresses": []string{"a@x.com"},
		}),
		// Unparseable for this schema, but not the viewer's row.
		{ID: "recOther", Fields: json.RawMessage(`{"start_date_time": "soon", "students_completed": 7, "student_email_addresses": ["b@x.com"]}`)},
	}

	events, err := Aggregate(nil, assignments, Viewer{Email: "a@x.com"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "recMine", events[0].ID)

	_, err = Aggregate(nil, assignments, Viewer{Email: "b@x.com"})
	assert.ErrorIs(t, err, models.ErrSourceFetch)
}

func TestAggregateDateOnlyAssignment(t *testing.T) {
	assignments := []airtable.Record{
		record(t, "recOther", map[string]any{
			"title":                   "Date only",
			"start_date_time":         "2025-12-16",
			"student_email_addresses": []string{"b@x.com"},
		}),
	}

	events, err := Aggregate(nil, assignments, Viewer{Email: "b@x.com"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.NotNil(t, events[0].StartAt)
	assert.True(t, time.Date(2025, 12, 16, 0, 0, 0, 0, Eastern).Equal(*events[0].StartAt))
	assert.Equal(t, "Tuesday", events[0].Day)
	assert.Equal(t, "00:00", events[0].Start)
}

func TestTimestampLayouts(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    time.Time
		wantErr bool
	}{
		{"rfc3339", `"2025-12-15T15:00:00.000Z"`, time.Date(2025, 12, 15, 15, 0, 0, 0, time.UTC), false},
		{"date only", `"2025-12-16"`, time.Date(2025, 12, 16, 0, 0, 0, 0, Eastern), false},
		{"empty", `""`, time.Time{}, false},
		{"null", `null`, time.Time{}, false},
		{"garbage", `"next tuesday"`, time.Time{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ts Timestamp
			err := json.Unmarshal([]byte(tt.in), &ts)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(ts.Time), "got %v", ts.Time)
		})
	}
}
