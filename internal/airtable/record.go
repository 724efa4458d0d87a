package airtable

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"bootcal/internal/models"
)

// Record is a raw Airtable row. Fields stays undecoded until a typed mapping
// struct asks for it, so nothing downstream touches untyped keys.
type Record struct {
	ID          string          `json:"id"`
	CreatedTime string          `json:"createdTime,omitempty"`
	Fields      json.RawMessage `json:"fields"`
}

// Decode unmarshals the record's fields into v.
func (r Record) Decode(v any) error {
	if len(r.Fields) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Fields, v); err != nil {
		return fmt.Errorf("%w: record %s: %w", models.ErrSourceFetch, r.ID, err)
	}
	return nil
}

// Page is one page of a list response.
type Page struct {
	Records []Record `json:"records"`
	Offset  string   `json:"offset,omitempty"`
}

// Direction orders a sort.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Sort is one sort key of a list request.
type Sort struct {
	Field     string
	Direction Direction
}

// Query narrows a list request.
type Query struct {
	Filter     string // filterByFormula
	Sort       []Sort
	Fields     []string
	MaxRecords int
}

func (q Query) values() url.Values {
	v := url.Values{}
	if q.Filter != "" {
		v.Set("filterByFormula", q.Filter)
	}
	for i, s := range q.Sort {
		dir := s.Direction
		if dir == "" {
			dir = Asc
		}
		v.Set("sort["+strconv.Itoa(i)+"][field]", s.Field)
		v.Set("sort["+strconv.Itoa(i)+"][direction]", string(dir))
	}
	for i, f := range q.Fields {
		v.Set("fields["+strconv.Itoa(i)+"]", f)
	}
	if q.MaxRecords > 0 {
		v.Set("maxRecords", strconv.Itoa(q.MaxRecords))
	}
	return v
}

// Quote renders s as a double-quoted formula string literal.
func Quote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)
	return `"` + r.Replace(s) + `"`
}
