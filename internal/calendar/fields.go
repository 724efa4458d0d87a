package calendar

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"bootcal/internal/models"
)

// Airtable table names.
const (
	TableLiveSessions    = "CC-1"
	TableAssignments     = "Assignments"
	TableTemplates       = "potential_Assignments"
	TableRoster          = "Student Roster"
	TableUWorldQuestions = "UWorld Question IDs"
)

// The structs below are the field mapping for each table: json tags are the
// Airtable column names. Keep them in sync with the base schema.

// LiveSessionFields maps a CC-1 row.
type LiveSessionFields struct {
	Name         string    `json:"Name"`
	Start        Timestamp `json:"Start Date / Time"`
	End          Timestamp `json:"End Date / Time"`
	ZoomLink     string    `json:"Zoom link"`
	TutorRoom    Strings   `json:"Zoom Link (Tutor Personal Zoom Room) (from Instructor (linked))"`
	Review       string    `json:"Assignments & Review"`
	MeetingVideo string    `json:"Meeting Video"`
	VideoEmbed   string    `json:"Video Embed Code"`
	Live         bool      `json:"LIVE"`
	Course       Strings   `json:"bootcamp_course"`
}

// LiveSessionColumns lists the columns requested for live sessions.
var LiveSessionColumns = []string{
	"Name",
	"Start Date / Time",
	"End Date / Time",
	"Zoom link",
	"Zoom Link (Tutor Personal Zoom Room) (from Instructor (linked))",
	"Assignments & Review",
	"Meeting Video",
	"Video Embed Code",
	"LIVE",
	"bootcamp_course",
}

// AssignmentFields maps an Assignments row.
type AssignmentFields struct {
	Title          string    `json:"title"`
	Start          Timestamp `json:"start_date_time"`
	End            Timestamp `json:"end_date_time"`
	Description    string    `json:"student_side_description"`
	StartLink      string    `json:"get_started_link"`
	StudentEmails  Strings   `json:"student_email_addresses"`
	Completed      []string  `json:"students_completed"`
	Students       []string  `json:"student"`
	Creators       []string  `json:"student_creator"`
	SourceTemplate []string  `json:"source_potential_assignment"`
	OneSMResources []string  `json:"1sm_resources"`
	AAMCPassages   []string  `json:"aamc_passages"`
	AAMCResources  Strings   `json:"aamc_resource (from aamc_passages)"`
	AAMCQuestions  Strings   `json:"aamc_questions (from aamc_passages)"`
}

// AssignmentColumns lists the columns requested for calendar assignments.
var AssignmentColumns = []string{
	"title",
	"start_date_time",
	"end_date_time",
	"student_side_description",
	"get_started_link",
	"student_email_addresses",
	"students_completed",
	"student",
	"student_creator",
	"1sm_resources",
	"aamc_passages",
	"aamc_resource (from aamc_passages)",
	"aamc_questions (from aamc_passages)",
}

// ProvenanceColumns lists the columns needed to find consumed templates.
var ProvenanceColumns = []string{"source_potential_assignment", "student_email_addresses"}

type assigneeFields struct {
	StudentEmails Strings `json:"student_email_addresses"`
}

type provenanceFields struct {
	SourceTemplate []string `json:"source_potential_assignment"`
}

// TemplateFields maps a potential_Assignments row.
type TemplateFields struct {
	Title          string              `json:"title"`
	Category       string              `json:"assignment_type"`
	Subjects       Strings             `json:"subjects"`
	QuestionSource string              `json:"question_source"`
	Estimated      float64             `json:"estimated_time"`
	StartLink      string              `json:"get_started_link"`
	Description    string              `json:"student_side_description"`
	Attachments    []models.Attachment `json:"Attachments"`
	AAMCPassages   []string            `json:"aamc_passages"`
	UWorldTests    []string            `json:"uworld_test"`
	OneSMResources []string            `json:"1sm_resources"`
	UWorldTestID   Strings             `json:"uworld_test_id_lookup"`
	QIDString      Strings             `json:"qid_string_lookup"`
}

// TemplateColumns lists the columns requested for the assignment bank.
var TemplateColumns = []string{
	"title",
	"assignment_type",
	"subjects",
	"question_source",
	"estimated_time",
	"get_started_link",
	"student_side_description",
	"Attachments",
	"aamc_passages",
	"uworld_test",
	"1sm_resources",
	"uworld_test_id_lookup",
	"qid_string_lookup",
}

// StudentFields maps a Student Roster row.
type StudentFields struct {
	Name  string `json:"Student Name"`
	Email string `json:"Student Email"`
}

// StudentColumns lists the roster columns requested on lookup.
var StudentColumns = []string{"Student Name", "Student Email"}

// Timestamp is an optional instant. Airtable omits empty date fields; an
// empty string or null decodes to the zero value. Date-only values, as sent
// for date fields without a time, are midnight Eastern.
type Timestamp struct {
	time.Time
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.Parse(time.RFC3339, s)
	if err != nil {
		var dateErr error
		if parsed, dateErr = time.ParseInLocation(time.DateOnly, s, Eastern); dateErr != nil {
			return fmt.Errorf("parsing timestamp %q: %w", s, err)
		}
	}
	t.Time = parsed
	return nil
}

// Ptr returns nil for the zero value, otherwise a pointer to a copy.
func (t Timestamp) Ptr() *time.Time {
	if t.IsZero() {
		return nil
	}
	v := t.Time
	return &v
}

// Strings decodes lookup and multi-select fields. Lookups come back as a
// single value or as a list, and may hold numbers.
type Strings []string

func (s *Strings) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case nil:
		*s = nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if str, ok := scalar(item); ok {
				out = append(out, str)
			}
		}
		*s = out
	default:
		if str, ok := scalar(v); ok {
			*s = Strings{str}
		}
	}
	return nil
}

// First returns the first value or "".
func (s Strings) First() string {
	if len(s) == 0 {
		return ""
	}
	return s[0]
}

func scalar(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(x), true
	}
	return "", false
}
