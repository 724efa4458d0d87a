package bootcamp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bootcal/internal/cache"
	"bootcal/internal/calendar"
	"bootcal/internal/models"
)

func newTestService(src *fakeSource) *Service {
	return NewService(testLogger(), src, cache.NewMemory(), Options{Cohort: "wbc25", StudentTTL: time.Minute})
}

func seedCalendar(t *testing.T, src *fakeSource) {
	t.Helper()
	src.add(t, calendar.TableLiveSessions, "recLive", map[string]any{
		"Name":              "CARS Live",
		"Start Date / Time": "2025-12-14T15:00:00.000Z",
	})
	src.add(t, calendar.TableAssignments, "recA1", map[string]any{
		"title":                   "Practice",
		"start_date_time":         "2025-12-15T15:00:00.000Z",
		"student_email_addresses": []string{"a@x.com"},
		"students_completed":      []string{"S1"},
		"student_creator":         []string{"S1"},
	})
	src.add(t, calendar.TableAssignments, "recA2", map[string]any{
		"title":                   "Someone else's",
		"start_date_time":         "2025-12-13T15:00:00.000Z",
		"student_email_addresses": []string{"b@x.com"},
	})
	src.add(t, calendar.TableRoster, "S1", map[string]any{"Student Name": "Ada", "Student Email": "a@x.com"})
}

func TestEventsForStudent(t *testing.T) {
	src := newFakeSource()
	seedCalendar(t, src)
	svc := newTestService(src)

	events, err := svc.Events(context.Background(), " a@x.com ")
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, "recLive", events[0].ID)
	assert.Equal(t, "recA1", events[1].ID)
	assert.True(t, events[1].IsCompleted)
	assert.True(t, events[1].IsCreator)

	live := src.queries[calendar.TableLiveSessions][0]
	assert.Equal(t, `AND(FIND("wbc25", ARRAYJOIN({bootcamp_course})), {LIVE})`, live.Filter)
	assert.Equal(t, "Start Date / Time", live.Sort[0].Field)
	assert.Equal(t, "start_date_time", src.queries[calendar.TableAssignments][0].Sort[0].Field)
	assert.Equal(t, `LOWER({Student Email}) = "a@x.com"`, src.queries[calendar.TableRoster][0].Filter)
}

func TestEventsAnonymousSkipsAssignments(t *testing.T) {
	src := newFakeSource()
	seedCalendar(t, src)

	events, err := newTestService(src).Events(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, models.KindLiveSession, events[0].Kind)
	assert.Empty(t, src.queries[calendar.TableAssignments])
	assert.Empty(t, src.queries[calendar.TableRoster])
}

func TestEventsUnknownStudentHasNoFlags(t *testing.T) {
	src := newFakeSource()
	seedCalendar(t, src)

	events, err := newTestService(src).Events(context.Background(), "b@x.com")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "recA2", events[0].ID)
	assert.False(t, events[0].IsCompleted)
}

func TestEventsFailsWhenEitherFetchFails(t *testing.T) {
	src := newFakeSource()
	seedCalendar(t, src)
	src.errs[calendar.TableAssignments] = errors.New("boom")
	src.blocked = calendar.TableLiveSessions

	done := make(chan error, 1)
	go func() {
		_, err := newTestService(src).Events(context.Background(), "a@x.com")
		done <- err
	}()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "boom")
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Events did not cancel the live fetch after the assignment fetch failed")
	}
}

func TestEventsLiveFailure(t *testing.T) {
	src := newFakeSource()
	src.errs[calendar.TableLiveSessions] = models.ErrSourceFetch

	_, err := newTestService(src).Events(context.Background(), "")
	assert.ErrorIs(t, err, models.ErrSourceFetch)
}

func TestLookupStudentCaches(t *testing.T) {
	src := newFakeSource()
	seedCalendar(t, src)
	svc := newTestService(src)

	s1, err := svc.LookupStudent(context.Background(), "A@X.com")
	require.NoError(t, err)
	assert.Equal(t, models.Student{ID: "S1", Name: "Ada", Email: "a@x.com"}, s1)

	s2, err := svc.LookupStudent(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, s1, s2)
	assert.Len(t, src.queries[calendar.TableRoster], 1)
	assert.Equal(t, 1, src.queries[calendar.TableRoster][0].MaxRecords)
}

func TestLookupStudentErrors(t *testing.T) {
	svc := newTestService(newFakeSource())

	_, err := svc.LookupStudent(context.Background(), "  ")
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = svc.LookupStudent(context.Background(), "nobody@x.com")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestLookupStudentQuotesEmail(t *testing.T) {
	src := newFakeSource()
	svc := newTestService(src)

	_, err := svc.LookupStudent(context.Background(), `x"), TRUE(), ("@x.com`)
	require.ErrorIs(t, err, models.ErrNotFound)
	assert.Equal(t, `LOWER({Student Email}) = "x\"), true(), (\"@x.com"`, src.queries[calendar.TableRoster][0].Filter)
}

func TestResolveStudentID(t *testing.T) {
	src := newFakeSource()
	seedCalendar(t, src)
	svc := newTestService(src)

	id, err := svc.ResolveStudentID(context.Background(), "S9", "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "S9", id)

	id, err = svc.ResolveStudentID(context.Background(), "", "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "S1", id)

	_, err = svc.ResolveStudentID(context.Background(), "", "")
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestBankExcludesConsumedTemplates(t *testing.T) {
	src := newFakeSource()
	src.add(t, calendar.TableTemplates, "T1", map[string]any{"title": "One", "assignment_type": "mcat-style"})
	src.add(t, calendar.TableTemplates, "T2", map[string]any{"title": "Two", "assignment_type": "anki"})
	src.add(t, calendar.TableAssignments, "recA", map[string]any{
		"source_potential_assignment": []string{"T1"},
		"student_email_addresses":     []string{"a@x.com"},
	})
	svc := newTestService(src)

	forA, err := svc.Bank(context.Background(), "a@x.com", models.FilterState{})
	require.NoError(t, err)
	require.Len(t, forA, 1)
	assert.Equal(t, "T2", forA[0].ID)
	assert.Equal(t, "NOT({source_potential_assignment} = BLANK())", src.queries[calendar.TableAssignments][0].Filter)

	forB, err := svc.Bank(context.Background(), "b@x.com", models.FilterState{})
	require.NoError(t, err)
	assert.Len(t, forB, 2)

	filtered, err := svc.Bank(context.Background(), "", models.FilterState{QuestionSource: "none"})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "T2", filtered[0].ID)
}
