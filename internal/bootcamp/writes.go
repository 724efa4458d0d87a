package bootcamp

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"bootcal/internal/airtable"
	"bootcal/internal/calendar"
	"bootcal/internal/models"
)

// RequiredAssignmentFields names the inputs CreateAssignment cannot do
// without, as they appear in request bodies.
var RequiredAssignmentFields = []string{"title", "studentRecordId", "startDateTime", "endDateTime"}

// assignmentRecord is the Assignments row written on create.
type assignmentRecord struct {
	Title             string              `json:"title"`
	Students          []string            `json:"student"`
	Creators          []string            `json:"student_creator"`
	Start             time.Time           `json:"start_date_time"`
	End               time.Time           `json:"end_date_time"`
	SourceTemplate    []string            `json:"source_potential_assignment,omitempty"`
	Description       string              `json:"student_side_description,omitempty"`
	StartLink         string              `json:"get_started_link,omitempty"`
	Estimated         int                 `json:"estimated_time,omitempty"`
	Category          models.Category     `json:"assignment_type,omitempty"`
	Subjects          []string            `json:"subjects,omitempty"`
	QuestionSource    string              `json:"question_source,omitempty"`
	Attachments       []models.Attachment `json:"Attachments,omitempty"`
	NumberOfQuestions int                 `json:"number_questions,omitempty"`
	UWorldQIDs        []string            `json:"uworld_qids,omitempty"`
}

// assignmentUpdate carries only the fields a creator sent.
type assignmentUpdate struct {
	Title       *string    `json:"title,omitempty"`
	Start       *time.Time `json:"start_date_time,omitempty"`
	End         *time.Time `json:"end_date_time,omitempty"`
	Description *string    `json:"student_side_description,omitempty"`
	StartLink   *string    `json:"get_started_link,omitempty"`
	Estimated   *int       `json:"estimated_time,omitempty"`
}

type completionUpdate struct {
	Completed []string `json:"students_completed"`
}

// CreateAssignment adds an assignment owned and created by the student.
// A missing StudentID is resolved from StudentEmail.
func (s *Service) CreateAssignment(ctx context.Context, in models.NewAssignment) (models.AssignmentSummary, error) {
	if strings.TrimSpace(in.StudentID) == "" && strings.TrimSpace(in.StudentEmail) != "" {
		id, err := s.ResolveStudentID(ctx, "", in.StudentEmail)
		if err != nil {
			return models.AssignmentSummary{}, err
		}
		in.StudentID = id
	}

	var missing []string
	if strings.TrimSpace(in.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(in.StudentID) == "" {
		missing = append(missing, "studentRecordId")
	}
	if in.StartAt.IsZero() {
		missing = append(missing, "startDateTime")
	}
	if in.EndAt.IsZero() {
		missing = append(missing, "endDateTime")
	}
	if len(missing) > 0 {
		return models.AssignmentSummary{}, &models.MissingFieldsError{Fields: missing}
	}
	if in.EndAt.Before(in.StartAt) {
		return models.AssignmentSummary{}, fmt.Errorf("%w: endDateTime is before startDateTime", models.ErrValidation)
	}

	row := assignmentRecord{
		Title:          in.Title,
		Students:       []string{in.StudentID},
		Creators:       []string{in.StudentID},
		Start:          in.StartAt.UTC(),
		End:            in.EndAt.UTC(),
		Description:    in.Description,
		StartLink:      in.StartLink,
		Estimated:      in.EstimatedSeconds,
		Category:       in.Category,
		Subjects:       in.Subjects,
		QuestionSource: in.QuestionSource,
		Attachments:    in.Attachments,
	}
	if in.SourceTemplateID != "" {
		row.SourceTemplate = []string{in.SourceTemplateID}
	}
	if in.NumberOfQuestions > 0 {
		row.NumberOfQuestions = in.NumberOfQuestions
	}
	if len(in.UWorldQIDs) > 0 {
		ids, err := s.lookupUWorldQIDs(ctx, in.UWorldQIDs)
		if err != nil {
			return models.AssignmentSummary{}, err
		}
		row.UWorldQIDs = ids
	}

	rec, err := s.source.CreateRecord(ctx, calendar.TableAssignments, row)
	if err != nil {
		return models.AssignmentSummary{}, fmt.Errorf("creating assignment: %w", err)
	}
	s.logger.Info("Created assignment", "id", rec.ID, "student", in.StudentID, "template", in.SourceTemplateID)
	return summarize(rec)
}

// lookupUWorldQIDs maps question ids to their record ids. Unknown ids are
// dropped.
func (s *Service) lookupUWorldQIDs(ctx context.Context, qids []string) ([]string, error) {
	clauses := make([]string, 0, len(qids))
	for _, q := range qids {
		if q = strings.TrimSpace(q); q != "" {
			clauses = append(clauses, "{qid} = "+airtable.Quote(q))
		}
	}
	if len(clauses) == 0 {
		return nil, nil
	}
	filter := clauses[0]
	if len(clauses) > 1 {
		filter = "OR(" + strings.Join(clauses, ", ") + ")"
	}

	recs, err := s.source.FetchAll(ctx, calendar.TableUWorldQuestions, airtable.Query{
		Filter: filter,
		Fields: []string{"qid"},
	})
	if err != nil {
		return nil, fmt.Errorf("looking up UWorld QIDs: %w", err)
	}

	ids := make([]string, 0, len(recs))
	for _, r := range recs {
		ids = append(ids, r.ID)
	}
	s.logger.Info("Resolved UWorld QIDs", "requested", len(clauses), "found", len(ids))
	return ids, nil
}

// UpdateAssignment applies patch to an assignment the student created.
func (s *Service) UpdateAssignment(ctx context.Context, id, studentID string, patch models.AssignmentPatch) (models.AssignmentSummary, error) {
	if id == "" {
		return models.AssignmentSummary{}, fmt.Errorf("%w: assignment id required", models.ErrValidation)
	}
	if studentID == "" {
		return models.AssignmentSummary{}, fmt.Errorf("%w: studentRecordId required for authorization", models.ErrValidation)
	}

	current, err := s.loadAssignment(ctx, id)
	if err != nil {
		return models.AssignmentSummary{}, err
	}
	if !slices.Contains(current.Creators, studentID) {
		return models.AssignmentSummary{}, fmt.Errorf("%w: only the creator can edit assignment %s", models.ErrUnauthorized, id)
	}

	start, end := current.Start.Ptr(), current.End.Ptr()
	if patch.StartAt != nil {
		start = patch.StartAt
	}
	if patch.EndAt != nil {
		end = patch.EndAt
	}
	if start != nil && end != nil && end.Before(*start) {
		return models.AssignmentSummary{}, fmt.Errorf("%w: endDateTime is before startDateTime", models.ErrValidation)
	}

	update := assignmentUpdate{
		Title:       patch.Title,
		Start:       utc(patch.StartAt),
		End:         utc(patch.EndAt),
		Description: patch.Description,
		StartLink:   patch.StartLink,
		Estimated:   patch.EstimatedSeconds,
	}
	rec, err := s.source.UpdateRecord(ctx, calendar.TableAssignments, id, update)
	if err != nil {
		return models.AssignmentSummary{}, fmt.Errorf("updating assignment %s: %w", id, err)
	}
	s.logger.Info("Updated assignment", "id", id, "student", studentID)
	return summarize(rec)
}

// ToggleComplete adds or removes the student from the assignment's
// completion set. It reads the set and writes it back whole; toggles of
// one assignment are serialized within this process, but writers in other
// processes can still interleave and lose an update.
func (s *Service) ToggleComplete(ctx context.Context, id, studentID string, completed bool) (models.Completion, error) {
	if id == "" {
		return models.Completion{}, fmt.Errorf("%w: assignment id required", models.ErrValidation)
	}
	if studentID == "" {
		return models.Completion{}, fmt.Errorf("%w: studentRecordId required", models.ErrValidation)
	}

	unlock := s.toggles.Lock(id)
	defer unlock()

	current, err := s.loadAssignment(ctx, id)
	if err != nil {
		return models.Completion{}, err
	}

	next := make([]string, 0, len(current.Completed)+1)
	switch {
	case completed && slices.Contains(current.Completed, studentID):
		next = append(next, current.Completed...)
	case completed:
		next = append(append(next, current.Completed...), studentID)
	default:
		for _, sid := range current.Completed {
			if sid != studentID {
				next = append(next, sid)
			}
		}
	}

	if _, err := s.source.UpdateRecord(ctx, calendar.TableAssignments, id, completionUpdate{Completed: next}); err != nil {
		return models.Completion{}, fmt.Errorf("updating completion of %s: %w", id, err)
	}
	s.logger.Info("Toggled completion", "id", id, "student", studentID, "completed", completed)
	return models.Completion{ID: id, IsCompleted: completed, CompletedBy: next}, nil
}

func (s *Service) loadAssignment(ctx context.Context, id string) (calendar.AssignmentFields, error) {
	rec, err := s.source.GetRecord(ctx, calendar.TableAssignments, id)
	if err != nil {
		return calendar.AssignmentFields{}, fmt.Errorf("loading assignment %s: %w", id, err)
	}
	var f calendar.AssignmentFields
	if err := rec.Decode(&f); err != nil {
		return calendar.AssignmentFields{}, err
	}
	return f, nil
}

func summarize(rec airtable.Record) (models.AssignmentSummary, error) {
	var f calendar.AssignmentFields
	if err := rec.Decode(&f); err != nil {
		return models.AssignmentSummary{}, err
	}
	return models.AssignmentSummary{
		ID:          rec.ID,
		Title:       f.Title,
		StartAt:     f.Start.Ptr(),
		EndAt:       f.End.Ptr(),
		Description: f.Description,
		StartLink:   f.StartLink,
	}, nil
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
