// Package google publishes calendar events to a Google Calendar and runs
// the OAuth flow that authorizes it.
package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"bootcal/internal/ics"
	"bootcal/internal/models"
)

const (
	credentialsFile = "credentials.json"
	redirectURL     = "urn:ietf:wg:oauth:2.0:oob" // desktop app flow
)

// TokenFile is where the auth command stores the token of an account.
func TokenFile(account string) string {
	return fmt.Sprintf("token-%s.json", account)
}

// CalendarClient writes events into one Google calendar.
type CalendarClient struct {
	service    *calendar.Service
	logger     *slog.Logger
	calendarID string
	now        func() time.Time
}

// NewClient creates a client authorized by the stored token of account.
func NewClient(ctx context.Context, logger *slog.Logger, clientID, clientSecret, account, calendarID string) (*CalendarClient, error) {
	config, err := getOAuthConfig(clientID, clientSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to get OAuth config: %w", err)
	}

	token, err := tokenFromFile(TokenFile(account))
	if err != nil {
		return nil, fmt.Errorf("could not load token for account %s: %w. Please run the 'auth' command first", account, err)
	}

	service, err := calendar.NewService(ctx, option.WithHTTPClient(config.Client(ctx, token)))
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}
	return NewCalendarClient(logger, service, calendarID), nil
}

// NewCalendarClient wraps an existing service.
func NewCalendarClient(logger *slog.Logger, service *calendar.Service, calendarID string) *CalendarClient {
	return &CalendarClient{service: service, logger: logger, calendarID: calendarID, now: time.Now}
}

// Name identifies the target in logs and publish state.
func (c *CalendarClient) Name() string { return "google" }

// Publish inserts the event, or updates it when it was inserted before.
// Event ids derive from the record id so both paths address the same event.
func (c *CalendarClient) Publish(ctx context.Context, ev models.CalendarEvent) error {
	if ev.StartAt == nil {
		return fmt.Errorf("event %s has no start time", ev.ID)
	}
	ge := c.toGoogle(ev)

	_, err := c.service.Events.Insert(c.calendarID, ge).Context(ctx).Do()
	if isStatus(err, http.StatusConflict) {
		c.logger.Debug("Event exists, updating", "title", ev.Title, "eventID", ge.Id)
		_, err = c.service.Events.Update(c.calendarID, ge.Id, ge).Context(ctx).Do()
	}
	if err != nil {
		return fmt.Errorf("failed to publish event to google calendar: %w", err)
	}

	c.logger.Info("Published event to Google Calendar", "title", ev.Title, "calendarID", c.calendarID)
	return nil
}

// Remove deletes the event of a record. An event that is already gone is
// not an error.
func (c *CalendarClient) Remove(ctx context.Context, recordID string) error {
	err := c.service.Events.Delete(c.calendarID, EventID(recordID)).Context(ctx).Do()
	if err != nil && !isStatus(err, http.StatusNotFound) && !isStatus(err, http.StatusGone) {
		return fmt.Errorf("failed to remove event %s: %w", recordID, err)
	}
	c.logger.Info("Removed event from Google Calendar", "id", recordID)
	return nil
}

// EventID maps a record id to a valid Google event id: lowercase hex is a
// subset of the base32hex alphabet the API requires.
func EventID(recordID string) string {
	return strings.ReplaceAll(strings.TrimSuffix(ics.UID(recordID), "@bootcal"), "-", "")
}

func (c *CalendarClient) toGoogle(ev models.CalendarEvent) *calendar.Event {
	end := *ev.StartAt
	if ev.EndAt != nil {
		end = *ev.EndAt
	}
	ge := &calendar.Event{
		Id:          EventID(ev.ID),
		ICalUID:     ics.UID(ev.ID),
		Summary:     ev.Title,
		Description: ics.Description(ev, c.now()),
		Location:    ev.JoinLink,
		Start:       &calendar.EventDateTime{DateTime: ev.StartAt.Format(time.RFC3339)},
		End:         &calendar.EventDateTime{DateTime: end.Format(time.RFC3339)},
	}
	if ev.JoinLink != "" {
		ge.Source = &calendar.EventSource{Title: "Join", Url: ev.JoinLink}
	}
	return ge
}

func isStatus(err error, code int) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == code
}

// GetOAuthConfigForAuthFlow is used by the auth command to get the config for the web flow.
func GetOAuthConfigForAuthFlow(clientID, clientSecret string) (*oauth2.Config, error) {
	return getOAuthConfig(clientID, clientSecret)
}

// getOAuthConfig prefers explicit client credentials over credentials.json.
func getOAuthConfig(clientID, clientSecret string) (*oauth2.Config, error) {
	if clientID != "" && clientSecret != "" {
		return &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{calendar.CalendarEventsScope},
			Endpoint:     google.Endpoint,
		}, nil
	}

	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		var pathErr *fs.PathError
		if errors.As(err, &pathErr) {
			return nil, fmt.Errorf("credentials.json not found. Please provide GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET env vars or place credentials.json in the working directory")
		}
		return nil, fmt.Errorf("unable to read client secret file: %w", err)
	}

	config, err := google.ConfigFromJSON(b, calendar.CalendarEventsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret file to config: %w", err)
	}
	config.RedirectURL = redirectURL
	return config, nil
}

// TokenFromWeb exchanges the code pasted by the user for a token.
func TokenFromWeb(ctx context.Context, config *oauth2.Config, authCode string) (*oauth2.Token, error) {
	return config.Exchange(ctx, authCode)
}

// SaveToken saves a token to a file path.
func SaveToken(path string, token *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("unable to create token file: %w", err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(token)
}

func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(tok)
	return tok, err
}
