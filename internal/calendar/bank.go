package calendar

import (
	"math"

	"bootcal/internal/airtable"
	"bootcal/internal/markdown"
	"bootcal/internal/models"
)

// Filter values with a meaning beyond exact match.
const (
	FilterAll = "all"
	// SourceNone selects work that carries no exam-style questions at all.
	SourceNone = "none"
)

// PotentialAssignment maps a potential_Assignments record to a bank entry.
func PotentialAssignment(rec airtable.Record) (models.PotentialAssignment, error) {
	var f TemplateFields
	if err := rec.Decode(&f); err != nil {
		return models.PotentialAssignment{}, err
	}

	seconds := int(math.Floor(f.Estimated))
	display := ""
	if seconds > 0 {
		display = FormatDuration(seconds)
	}

	return models.PotentialAssignment{
		ID:               rec.ID,
		Title:            orDefault(f.Title, "Untitled"),
		Category:         models.Category(f.Category),
		Subjects:         nonNil(f.Subjects),
		QuestionSource:   f.QuestionSource,
		EstimatedSeconds: seconds,
		EstimatedDisplay: display,
		StartLink:        f.StartLink,
		DescriptionRaw:   f.Description,
		DescriptionHTML:  markdown.Render(f.Description),
		Attachments:      nonNilAttachments(f.Attachments),
		AAMCPassageIDs:   nonNil(f.AAMCPassages),
		UWorldTestIDs:    nonNil(f.UWorldTests),
		OneSMResourceIDs: nonNil(f.OneSMResources),
		UWorldTestID:     f.UWorldTestID.First(),
		UWorldQIDString:  f.QIDString.First(),
	}, nil
}

// PotentialAssignments maps every record, stopping at the first bad one.
func PotentialAssignments(recs []airtable.Record) ([]models.PotentialAssignment, error) {
	out := make([]models.PotentialAssignment, 0, len(recs))
	for _, rec := range recs {
		pa, err := PotentialAssignment(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, pa)
	}
	return out, nil
}

// ConsumedTemplateIDs returns the templates already turned into assignments
// for the given email. An empty email consumes nothing.
func ConsumedTemplateIDs(assignments []airtable.Record, email string) (map[string]struct{}, error) {
	consumed := make(map[string]struct{})
	if email == "" {
		return consumed, nil
	}
	for _, rec := range assignments {
		mine, err := assignedTo(rec, email)
		if err != nil {
			return nil, err
		}
		if !mine {
			continue
		}
		var f provenanceFields
		if err := rec.Decode(&f); err != nil {
			return nil, err
		}
		for _, id := range f.SourceTemplate {
			consumed[id] = struct{}{}
		}
	}
	return consumed, nil
}

// Eligible drops the consumed templates, preserving order.
func Eligible(templates []models.PotentialAssignment, consumed map[string]struct{}) []models.PotentialAssignment {
	out := make([]models.PotentialAssignment, 0, len(templates))
	for _, t := range templates {
		if _, ok := consumed[t.ID]; ok {
			continue
		}
		out = append(out, t)
	}
	return out
}

// ApplyFilters keeps the templates matching every active filter.
func ApplyFilters(templates []models.PotentialAssignment, fs models.FilterState) []models.PotentialAssignment {
	out := make([]models.PotentialAssignment, 0, len(templates))
	for _, t := range templates {
		if matchesFilters(t, fs) {
			out = append(out, t)
		}
	}
	return out
}

func matchesFilters(t models.PotentialAssignment, fs models.FilterState) bool {
	if !isWildcard(fs.Category) && string(t.Category) != fs.Category {
		return false
	}

	switch {
	case isWildcard(fs.QuestionSource):
	case fs.QuestionSource == SourceNone:
		if t.Category == models.CategoryMCATStyle {
			return false
		}
	case t.QuestionSource != fs.QuestionSource:
		return false
	}

	if len(fs.Subjects) > 0 && !intersects(t.Subjects, fs.Subjects) {
		return false
	}
	return true
}

func isWildcard(v string) bool {
	return v == "" || v == FilterAll
}

func intersects(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

func nonNilAttachments(a []models.Attachment) []models.Attachment {
	if a == nil {
		return []models.Attachment{}
	}
	return a
}
