// Package dav publishes calendar events to a CalDAV collection.
package dav

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav"
	"github.com/emersion/go-webdav/caldav"

	"bootcal/internal/ics"
	"bootcal/internal/models"
)

// DefaultEndpoint is used when no endpoint is configured.
const DefaultEndpoint = "https://caldav.icloud.com/"

// basicAuthTransport adds credentials and the user agent to every request.
type basicAuthTransport struct {
	Username  string
	Password  string
	Transport http.RoundTripper
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.SetBasicAuth(t.Username, t.Password)
	req.Header.Set("User-Agent", "bootcal/1.0")
	return t.Transport.RoundTrip(req)
}

// Client writes events into one calendar collection, one .ics object per
// source record.
type Client struct {
	webdavClient *webdav.Client
	logger       *slog.Logger
	calendarPath string
	now          func() time.Time
}

// Options configures NewClient.
type Options struct {
	Endpoint     string
	Username     string
	Password     string
	CalendarName string
}

// NewClient connects to the server and locates the named calendar.
func NewClient(ctx context.Context, logger *slog.Logger, opts Options) (*Client, error) {
	endpoint := opts.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	httpClient := &http.Client{
		Timeout: 30 * time.Second,
		Transport: &basicAuthTransport{
			Username:  opts.Username,
			Password:  opts.Password,
			Transport: http.DefaultTransport,
		},
	}

	caldavClient, err := caldav.NewClient(httpClient, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create caldav client: %w", err)
	}
	webdavClient, err := webdav.NewClient(httpClient, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create webdav client: %w", err)
	}

	logger.Info("Finding CalDAV calendar", "calendarName", opts.CalendarName, "endpoint", endpoint)
	calendarPath, err := findCalendar(ctx, caldavClient, opts.CalendarName)
	if err != nil {
		return nil, fmt.Errorf("could not find calendar '%s': %w", opts.CalendarName, err)
	}
	logger.Info("Found CalDAV calendar", "path", calendarPath)

	return newClient(logger, webdavClient, calendarPath), nil
}

func newClient(logger *slog.Logger, wc *webdav.Client, calendarPath string) *Client {
	return &Client{
		webdavClient: wc,
		logger:       logger,
		calendarPath: calendarPath,
		now:          time.Now,
	}
}

// Name identifies the target in logs and publish state.
func (c *Client) Name() string { return "caldav" }

// Publish creates or replaces the event's calendar object.
func (c *Client) Publish(ctx context.Context, ev models.CalendarEvent) error {
	if ev.StartAt == nil {
		return fmt.Errorf("event %s has no start time", ev.ID)
	}
	c.logger.Debug("Publishing event to CalDAV", "title", ev.Title, "id", ev.ID)

	cal := ics.NewCalendar("", ics.Event(ev, c.now()))

	w, err := c.webdavClient.Create(ctx, c.objectPath(ev.ID))
	if err != nil {
		return fmt.Errorf("failed to create event on CalDAV server: %w", err)
	}
	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to encode event to iCal format: %w", err)
	}
	// The PUT completes on Close.
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to upload event: %w", err)
	}

	c.logger.Info("Published event to CalDAV", "title", ev.Title)
	return nil
}

// Remove deletes the calendar object of a record.
func (c *Client) Remove(ctx context.Context, recordID string) error {
	if err := c.webdavClient.RemoveAll(ctx, c.objectPath(recordID)); err != nil {
		return fmt.Errorf("failed to remove event %s: %w", recordID, err)
	}
	c.logger.Info("Removed event from CalDAV", "id", recordID)
	return nil
}

func (c *Client) objectPath(recordID string) string {
	uid := strings.TrimSuffix(ics.UID(recordID), "@bootcal")
	return path.Join(c.calendarPath, uid+".ics")
}

// findCalendar walks principal, home set and collections to the calendar
// with the given display name and returns its path.
func findCalendar(ctx context.Context, cc *caldav.Client, name string) (string, error) {
	principalPath, err := cc.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to find principal path: %w", err)
	}

	homeSetPath, err := cc.FindCalendarHomeSet(ctx, principalPath)
	if err != nil {
		return "", fmt.Errorf("failed to find calendar home set: %w", err)
	}

	calendars, err := cc.FindCalendars(ctx, homeSetPath)
	if err != nil {
		return "", fmt.Errorf("failed to find calendars: %w", err)
	}

	for _, cal := range calendars {
		if cal.Name == name {
			return cal.Path, nil
		}
	}
	return "", fmt.Errorf("no calendar found with name '%s'", name)
}
