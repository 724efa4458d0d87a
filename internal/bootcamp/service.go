// Package bootcamp implements the calendar operations on top of an Airtable
// record source: reading the merged calendar and the assignment bank, and
// the few writes students are allowed to make.
package bootcamp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"bootcal/internal/airtable"
	"bootcal/internal/cache"
	"bootcal/internal/calendar"
	"bootcal/internal/models"
)

// RecordSource is the subset of the Airtable client the service uses.
type RecordSource interface {
	FetchAll(ctx context.Context, table string, q airtable.Query) ([]airtable.Record, error)
	GetRecord(ctx context.Context, table, id string) (airtable.Record, error)
	CreateRecord(ctx context.Context, table string, fields any) (airtable.Record, error)
	UpdateRecord(ctx context.Context, table, id string, fields any) (airtable.Record, error)
}

// Options tunes a Service.
type Options struct {
	Cohort     string        // bootcamp_course value live sessions must carry
	StudentTTL time.Duration // how long an email to student mapping is cached
}

// Service runs the calendar operations. It holds no per-request state and
// is safe for concurrent use.
type Service struct {
	logger     *slog.Logger
	source     RecordSource
	cache      cache.Cache
	cohort     string
	studentTTL time.Duration

	toggles keyLock // by assignment id
}

// NewService creates a Service. A nil cache disables student caching.
func NewService(logger *slog.Logger, source RecordSource, c cache.Cache, opts Options) *Service {
	return &Service{
		logger:     logger,
		source:     source,
		cache:      c,
		cohort:     opts.Cohort,
		studentTTL: opts.StudentTTL,
	}
}

// Events returns the calendar for the given viewer email. Live sessions and
// the viewer's assignments are fetched concurrently; if either fetch fails
// the other is cancelled and the call fails with both errors.
func (s *Service) Events(ctx context.Context, email string) ([]models.CalendarEvent, error) {
	email = strings.TrimSpace(email)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg                 sync.WaitGroup
		live, assignments  []airtable.Record
		viewerID           string
		liveErr, assignErr error
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if live, liveErr = s.fetchLive(ctx); liveErr != nil {
			cancel()
		}
	}()

	if email != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if assignments, viewerID, assignErr = s.fetchAssignmentsFor(ctx, email); assignErr != nil {
				cancel()
			}
		}()
	}

	wg.Wait()
	if err := errors.Join(liveErr, assignErr); err != nil {
		return nil, err
	}

	events, err := calendar.Aggregate(live, assignments, calendar.Viewer{Email: email, StudentID: viewerID})
	if err != nil {
		return nil, err
	}
	s.logger.Debug("Aggregated calendar", "live", len(live), "assignments", len(assignments), "events", len(events))
	return events, nil
}

// LiveSessions returns the cohort's live sessions in start order.
func (s *Service) LiveSessions(ctx context.Context) ([]models.CalendarEvent, error) {
	live, err := s.fetchLive(ctx)
	if err != nil {
		return nil, err
	}
	return calendar.Aggregate(live, nil, calendar.Viewer{})
}

func (s *Service) fetchLive(ctx context.Context) ([]airtable.Record, error) {
	recs, err := s.source.FetchAll(ctx, calendar.TableLiveSessions, airtable.Query{
		Filter: liveFilter(s.cohort),
		Sort:   []airtable.Sort{{Field: "Start Date / Time", Direction: airtable.Asc}},
		Fields: calendar.LiveSessionColumns,
	})
	if err != nil {
		return nil, fmt.Errorf("fetching live sessions: %w", err)
	}
	return recs, nil
}

// fetchAssignmentsFor loads every assignment plus the viewer's roster id.
// An email missing from the roster is not an error: the viewer still sees
// the assignments addressed to it, only without completion flags.
func (s *Service) fetchAssignmentsFor(ctx context.Context, email string) ([]airtable.Record, string, error) {
	recs, err := s.source.FetchAll(ctx, calendar.TableAssignments, airtable.Query{
		Sort:   []airtable.Sort{{Field: "start_date_time", Direction: airtable.Asc}},
		Fields: calendar.AssignmentColumns,
	})
	if err != nil {
		return nil, "", fmt.Errorf("fetching assignments: %w", err)
	}

	student, err := s.LookupStudent(ctx, email)
	switch {
	case errors.Is(err, models.ErrNotFound):
		s.logger.Debug("Viewer not on roster", "email", email)
		return recs, "", nil
	case err != nil:
		return nil, "", err
	}
	return recs, student.ID, nil
}

func liveFilter(cohort string) string {
	return fmt.Sprintf("AND(FIND(%s, ARRAYJOIN({bootcamp_course})), {LIVE})", airtable.Quote(cohort))
}

// LookupStudent finds the roster entry for email, ignoring case.
func (s *Service) LookupStudent(ctx context.Context, email string) (models.Student, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return models.Student{}, fmt.Errorf("%w: email required", models.ErrValidation)
	}
	lower := strings.ToLower(email)
	key := "student:" + lower

	if student, ok := s.cachedStudent(ctx, key); ok {
		return student, nil
	}

	recs, err := s.source.FetchAll(ctx, calendar.TableRoster, airtable.Query{
		Filter:     "LOWER({Student Email}) = " + airtable.Quote(lower),
		Fields:     calendar.StudentColumns,
		MaxRecords: 1,
	})
	if err != nil {
		return models.Student{}, fmt.Errorf("looking up student: %w", err)
	}
	if len(recs) == 0 {
		return models.Student{}, fmt.Errorf("student %s: %w", email, models.ErrNotFound)
	}

	var f calendar.StudentFields
	if err := recs[0].Decode(&f); err != nil {
		return models.Student{}, err
	}
	student := models.Student{ID: recs[0].ID, Name: f.Name, Email: f.Email}

	s.cacheStudent(ctx, key, student)
	return student, nil
}

func (s *Service) cachedStudent(ctx context.Context, key string) (models.Student, bool) {
	if s.cache == nil {
		return models.Student{}, false
	}
	raw, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			s.logger.Warn("Student cache read failed", "error", err)
		}
		return models.Student{}, false
	}
	var student models.Student
	if err := json.Unmarshal([]byte(raw), &student); err != nil {
		s.logger.Warn("Discarding bad student cache entry", "key", key, "error", err)
		return models.Student{}, false
	}
	return student, true
}

func (s *Service) cacheStudent(ctx context.Context, key string, student models.Student) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(student)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, string(data), s.studentTTL); err != nil {
		s.logger.Warn("Student cache write failed", "error", err)
	}
}

// ResolveStudentID returns studentID when set, otherwise the roster id of
// email.
func (s *Service) ResolveStudentID(ctx context.Context, studentID, email string) (string, error) {
	if studentID = strings.TrimSpace(studentID); studentID != "" {
		return studentID, nil
	}
	if strings.TrimSpace(email) == "" {
		return "", fmt.Errorf("%w: studentRecordId or studentEmail required", models.ErrValidation)
	}
	student, err := s.LookupStudent(ctx, email)
	if err != nil {
		return "", err
	}
	return student.ID, nil
}

// Bank returns the templates the viewer may still pick, narrowed by fs.
// Without an email nothing counts as consumed.
func (s *Service) Bank(ctx context.Context, email string, fs models.FilterState) ([]models.PotentialAssignment, error) {
	recs, err := s.source.FetchAll(ctx, calendar.TableTemplates, airtable.Query{
		Sort:   []airtable.Sort{{Field: "title", Direction: airtable.Asc}},
		Fields: calendar.TemplateColumns,
	})
	if err != nil {
		return nil, fmt.Errorf("fetching assignment bank: %w", err)
	}
	templates, err := calendar.PotentialAssignments(recs)
	if err != nil {
		return nil, err
	}

	if email = strings.TrimSpace(email); email != "" {
		provenance, err := s.source.FetchAll(ctx, calendar.TableAssignments, airtable.Query{
			Filter: "NOT({source_potential_assignment} = BLANK())",
			Fields: calendar.ProvenanceColumns,
		})
		if err != nil {
			return nil, fmt.Errorf("fetching assigned templates: %w", err)
		}
		consumed, err := calendar.ConsumedTemplateIDs(provenance, email)
		if err != nil {
			return nil, err
		}
		templates = calendar.Eligible(templates, consumed)
	}

	return calendar.ApplyFilters(templates, fs), nil
}
