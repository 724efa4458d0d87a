package dav

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/emersion/go-webdav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bootcal/internal/ics"
	"bootcal/internal/models"
)

type recordedRequest struct {
	Method, Path, User, Body string
}

func newTestClient(t *testing.T) (*Client, *[]recordedRequest) {
	t.Helper()
	var (
		mu   sync.Mutex
		reqs []recordedRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		user, _, _ := r.BasicAuth()
		mu.Lock()
		reqs = append(reqs, recordedRequest{Method: r.Method, Path: r.URL.Path, User: user, Body: string(body)})
		mu.Unlock()
		switch r.Method {
		case http.MethodPut:
			w.WriteHeader(http.StatusCreated)
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	t.Cleanup(srv.Close)

	httpClient := &http.Client{Transport: &basicAuthTransport{Username: "ada", Password: "pw", Transport: http.DefaultTransport}}
	wc, err := webdav.NewClient(httpClient, srv.URL)
	require.NoError(t, err)

	c := newClient(slog.New(slog.NewTextHandler(io.Discard, nil)), wc, "/cal/bootcamp/")
	c.now = func() time.Time { return time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC) }
	return c, &reqs
}

func TestPublishPutsCalendarObject(t *testing.T) {
	c, reqs := newTestClient(t)
	start := time.Date(2025, 12, 15, 23, 30, 0, 0, time.UTC)

	err := c.Publish(context.Background(), models.CalendarEvent{
		ID:      "recLive",
		Title:   "CARS Live",
		Kind:    models.KindLiveSession,
		StartAt: &start,
	})
	require.NoError(t, err)

	require.Len(t, *reqs, 1)
	got := (*reqs)[0]
	assert.Equal(t, http.MethodPut, got.Method)
	assert.Equal(t, "/cal/bootcamp/"+strings.TrimSuffix(ics.UID("recLive"), "@bootcal")+".ics", got.Path)
	assert.Equal(t, "ada", got.User)
	assert.Contains(t, got.Body, "SUMMARY:CARS Live")
	assert.Contains(t, got.Body, "DTSTART:20251215T233000Z")
}

func TestPublishRequiresStart(t *testing.T) {
	c, reqs := newTestClient(t)
	assert.Error(t, c.Publish(context.Background(), models.CalendarEvent{ID: "recX"}))
	assert.Empty(t, *reqs)
}

func TestRemoveDeletesObject(t *testing.T) {
	c, reqs := newTestClient(t)
	require.NoError(t, c.Remove(context.Background(), "recLive"))

	require.Len(t, *reqs, 1)
	assert.Equal(t, http.MethodDelete, (*reqs)[0].Method)
	assert.True(t, strings.HasSuffix((*reqs)[0].Path, ".ics"))
}
