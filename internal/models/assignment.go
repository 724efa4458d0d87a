package models

import "time"

// Category is the kind of work a potential assignment represents.
type Category string

const (
	CategoryMCATStyle    Category = "mcat-style"
	CategoryAnki         Category = "anki"
	CategoryVideo        Category = "video"
	CategoryStudyGuide   Category = "study-guide"
	CategoryTextbook     Category = "textbook"
	CategoryGuidedReview Category = "guided-review"
)

// Attachment is an Airtable attachment object, passed through untouched.
type Attachment struct {
	ID       string `json:"id,omitempty"`
	URL      string `json:"url"`
	Filename string `json:"filename,omitempty"`
}

// PotentialAssignment is a template from the assignment bank.
type PotentialAssignment struct {
	ID               string       `json:"id"`
	Title            string       `json:"title"`
	Category         Category     `json:"assignmentType,omitempty"`
	Subjects         []string     `json:"subjects"`
	QuestionSource   string       `json:"questionSource,omitempty"`
	EstimatedSeconds int          `json:"estimatedTime,omitempty"`
	EstimatedDisplay string       `json:"estimatedTimeDisplay"`
	StartLink        string       `json:"getStartedLink,omitempty"`
	DescriptionRaw   string       `json:"descriptionRaw"`
	DescriptionHTML  string       `json:"description"`
	Attachments      []Attachment `json:"attachments"`

	AAMCPassageIDs   []string `json:"aamcPassageIds"`
	UWorldTestIDs    []string `json:"uworldTestIds"`
	OneSMResourceIDs []string `json:"oneSmResourceIds"`
	UWorldTestID     string   `json:"uworldTestId,omitempty"`
	UWorldQIDString  string   `json:"uworldQidString,omitempty"`
}

// Student is a roster entry. ID is the opaque participant identifier used in
// ownership and completion sets.
type Student struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// FilterState is the bank filter selection. The zero value filters nothing.
type FilterState struct {
	Category       string   `json:"assignmentType,omitempty"`
	Subjects       []string `json:"subjects,omitempty"`
	QuestionSource string   `json:"questionSource,omitempty"`
}

// NewAssignment is the input for creating an assignment for a student.
type NewAssignment struct {
	Title             string       `json:"title"`
	StudentID         string       `json:"studentRecordId"`
	StudentEmail      string       `json:"studentEmail,omitempty"`
	StartAt           time.Time    `json:"startDateTime"`
	EndAt             time.Time    `json:"endDateTime"`
	SourceTemplateID  string       `json:"sourcePotentialAssignmentId,omitempty"`
	Description       string       `json:"description,omitempty"`
	StartLink         string       `json:"getStartedLink,omitempty"`
	EstimatedSeconds  int          `json:"estimatedTime,omitempty"`
	Category          Category     `json:"assignmentType,omitempty"`
	Subjects          []string     `json:"subjects,omitempty"`
	QuestionSource    string       `json:"questionSource,omitempty"`
	Attachments       []Attachment `json:"attachments,omitempty"`
	NumberOfQuestions int          `json:"numberQuestions,omitempty"`
	UWorldQIDs        []string     `json:"uworldQids,omitempty"`
}

// AssignmentPatch holds the fields a creator may change. Nil fields are left
// untouched.
type AssignmentPatch struct {
	Title            *string    `json:"title,omitempty"`
	StartAt          *time.Time `json:"startDateTime,omitempty"`
	EndAt            *time.Time `json:"endDateTime,omitempty"`
	Description      *string    `json:"description,omitempty"`
	StartLink        *string    `json:"getStartedLink,omitempty"`
	EstimatedSeconds *int       `json:"estimatedTime,omitempty"`
}

// AssignmentSummary is what write operations echo back.
type AssignmentSummary struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	StartAt     *time.Time `json:"startDateTime,omitempty"`
	EndAt       *time.Time `json:"endDateTime,omitempty"`
	Description string     `json:"description,omitempty"`
	StartLink   string     `json:"getStartedLink,omitempty"`
}

// Completion is the result of toggling an assignment's completion.
type Completion struct {
	ID          string   `json:"id"`
	IsCompleted bool     `json:"isCompleted"`
	CompletedBy []string `json:"studentsCompleted"`
}
