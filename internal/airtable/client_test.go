package airtable

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"bootcal/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := NewClient(slog.New(slog.NewTextHandler(io.Discard, nil)), Options{
		Endpoint: srv.URL,
		BaseID:   "appBase",
		Token:    "pat123",
	})
	require.NoError(t, err)
	return c
}

func TestNewClientRequiresCredentials(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	_, err := NewClient(logger, Options{Token: "x"})
	assert.Error(t, err)

	_, err = NewClient(logger, Options{BaseID: "x"})
	assert.Error(t, err)
}

func TestFetchAllFollowsOffsetsInOrder(t *testing.T) {
	var offsets []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer pat123", r.Header.Get("Authorization"))
		assert.Equal(t, "/appBase/Student Roster", r.URL.Path)
		assert.Equal(t, `{LIVE}`, r.URL.Query().Get("filterByFormula"))
		assert.Equal(t, "Name", r.URL.Query().Get("sort[0][field]"))
		assert.Equal(t, "asc", r.URL.Query().Get("sort[0][direction]"))
		assert.Equal(t, "Name", r.URL.Query().Get("fields[0]"))

		offset := r.URL.Query().Get("offset")
		offsets = append(offsets, offset)

		var page Page
		switch offset {
		case "":
			page = Page{Records: []Record{{ID: "rec1"}, {ID: "rec2"}}, Offset: "itr1"}
		case "itr1":
			page = Page{Records: []Record{{ID: "rec3"}}, Offset: "itr2"}
		case "itr2":
			page = Page{Records: []Record{{ID: "rec4"}}}
		}
		_ = json.NewEncoder(w).Encode(page)
	})

	recs, err := c.FetchAll(context.Background(), "Student Roster", Query{
		Filter: "{LIVE}",
		Sort:   []Sort{{Field: "Name"}},
		Fields: []string{"Name"},
	})
	require.NoError(t, err)

	var ids []string
	for _, r := range recs {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"rec1", "rec2", "rec3", "rec4"}, ids)
	assert.Equal(t, []string{"", "itr1", "itr2"}, offsets)
}

func TestFetchAllFailsOnAnyPage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("offset") == "" {
			_ = json.NewEncoder(w).Encode(Page{Records: []Record{{ID: "rec1"}}, Offset: "next"})
			return
		}
		http.Error(w, `{"error":"boom"}`, http.StatusUnprocessableEntity)
	})

	recs, err := c.FetchAll(context.Background(), "CC-1", Query{})
	require.Error(t, err)
	assert.Nil(t, recs)
	assert.ErrorIs(t, err, models.ErrSourceFetch)
	assert.NotErrorIs(t, err, models.ErrNotFound)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
}

func TestGetRecordNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/appBase/Assignments/recMissing", r.URL.Path)
		http.Error(w, `{"error":"NOT_FOUND"}`, http.StatusNotFound)
	})

	_, err := c.GetRecord(context.Background(), "Assignments", "recMissing")
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.ErrorIs(t, err, models.ErrSourceFetch)
}

func TestTransportErrorIsSourceFetch(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	c, err := NewClient(slog.New(slog.NewTextHandler(io.Discard, nil)), Options{
		Endpoint: srv.URL,
		BaseID:   "appBase",
		Token:    "pat",
	})
	require.NoError(t, err)

	_, err = c.FetchPage(context.Background(), "CC-1", Query{}, "")
	assert.ErrorIs(t, err, models.ErrSourceFetch)
}

func TestCreateAndUpdateSendFields(t *testing.T) {
	type fields struct {
		Title string `json:"title"`
	}

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Fields fields `json:"fields"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		switch r.Method {
		case http.MethodPost:
			assert.Equal(t, "/appBase/Assignments", r.URL.Path)
		case http.MethodPatch:
			assert.Equal(t, "/appBase/Assignments/recA", r.URL.Path)
		default:
			t.Errorf("unexpected method %s", r.Method)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "recA",
			"fields": body.Fields,
		})
	})

	rec, err := c.CreateRecord(context.Background(), "Assignments", fields{Title: "Read ch. 1"})
	require.NoError(t, err)
	assert.Equal(t, "recA", rec.ID)

	rec, err = c.UpdateRecord(context.Background(), "Assignments", "recA", fields{Title: "Read ch. 2"})
	require.NoError(t, err)

	var got fields
	require.NoError(t, rec.Decode(&got))
	assert.Equal(t, "Read ch. 2", got.Title)
}

func TestRecordDecodeBadPayload(t *testing.T) {
	rec := Record{ID: "rec1", Fields: json.RawMessage(`{"title": 5}`)}
	var v struct {
		Title string `json:"title"`
	}
	assert.ErrorIs(t, rec.Decode(&v), models.ErrSourceFetch)
}

func TestQuote(t *testing.T) {
	assert.Equal(t, `"a@x.com"`, Quote("a@x.com"))
	assert.Equal(t, `"say \"hi\" \\ bye"`, Quote(`say "hi" \ bye`))
}

func TestQueryValuesMaxRecords(t *testing.T) {
	v := Query{MaxRecords: 1, Sort: []Sort{{Field: "title", Direction: Desc}}}.values()
	assert.Equal(t, "1", v.Get("maxRecords"))
	assert.Equal(t, "desc", v.Get("sort[0][direction]"))
	assert.Empty(t, v.Get("filterByFormula"))
}
