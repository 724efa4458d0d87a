// Package syncer pushes the bootcamp's live sessions to external calendars.
package syncer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"bootcal/internal/ics"
	"bootcal/internal/models"
)

// Source supplies the events to publish.
type Source interface {
	LiveSessions(ctx context.Context) ([]models.CalendarEvent, error)
}

// Target is an external calendar.
type Target interface {
	Name() string
	Publish(ctx context.Context, ev models.CalendarEvent) error
	Remove(ctx context.Context, recordID string) error
}

// State records what each target last received: target name to record id
// to content fingerprint.
type State map[string]map[string]string

// Syncer orchestrates publishing from Airtable to the targets.
type Syncer struct {
	logger    *slog.Logger
	source    Source
	targets   []Target
	statePath string
	state     State
	dryRun    bool
	now       func() time.Time
}

// NewSyncer creates a Syncer, loading the state file at statePath.
func NewSyncer(logger *slog.Logger, source Source, targets []Target, statePath string, dryRun bool) (*Syncer, error) {
	state, err := loadState(statePath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load sync state: %w", err)
		}
		logger.Info("No sync state file found, starting fresh.", "file", statePath)
		state = make(State)
	}

	return &Syncer{
		logger:    logger,
		source:    source,
		targets:   targets,
		statePath: statePath,
		state:     state,
		dryRun:    dryRun,
		now:       time.Now,
	}, nil
}

// Sync performs one publish cycle. Failures on single events are logged
// and retried on the next cycle.
func (s *Syncer) Sync(ctx context.Context) error {
	s.logger.Info("Starting sync cycle.")

	events, err := s.source.LiveSessions(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch live sessions: %w", err)
	}
	s.logger.Info("Fetched live sessions.", "count", len(events))

	now := s.now()
	for _, t := range s.targets {
		s.syncTarget(ctx, t, events, now)
	}

	if !s.dryRun {
		if err := s.saveState(); err != nil {
			s.logger.Error("Failed to save sync state", "error", err)
		}
	}

	s.logger.Info("Sync cycle finished.")
	return nil
}

func (s *Syncer) syncTarget(ctx context.Context, t Target, events []models.CalendarEvent, now time.Time) {
	name := t.Name()
	published := s.state[name]
	if published == nil {
		published = make(map[string]string)
		s.state[name] = published
	}

	seen := make(map[string]struct{}, len(events))
	for _, ev := range events {
		if ev.StartAt == nil {
			s.logger.Debug("Event has no start time, skipping.", "title", ev.Title, "id", ev.ID)
			continue
		}
		seen[ev.ID] = struct{}{}

		fp := Fingerprint(ev, now)
		if published[ev.ID] == fp {
			s.logger.Debug("Event unchanged, skipping.", "target", name, "title", ev.Title, "id", ev.ID)
			continue
		}

		if s.dryRun {
			s.logger.Info("[DRY RUN] Would publish event", "target", name, "title", ev.Title, "startTime", ev.StartAt)
			continue
		}
		if err := t.Publish(ctx, ev); err != nil {
			s.logger.Error("Failed to publish event", "target", name, "title", ev.Title, "error", err)
			continue
		}
		published[ev.ID] = fp
	}

	for id := range published {
		if _, ok := seen[id]; ok {
			continue
		}
		if s.dryRun {
			s.logger.Info("[DRY RUN] Would remove event", "target", name, "id", id)
			continue
		}
		if err := t.Remove(ctx, id); err != nil {
			s.logger.Error("Failed to remove event", "target", name, "id", id, "error", err)
			continue
		}
		delete(published, id)
	}
}

// Fingerprint digests what a target shows of ev. The replay link appears
// once the session has ended, so the result depends on now.
func Fingerprint(ev models.CalendarEvent, now time.Time) string {
	view := struct {
		Title       string
		Start, End  *time.Time
		Description string
		Location    string
	}{ev.Title, ev.StartAt, ev.EndAt, ics.Description(ev, now), ev.JoinLink}

	data, _ := json.Marshal(view)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func loadState(path string) (State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	if state == nil {
		state = make(State)
	}
	return state, nil
}

func (s *Syncer) saveState() error {
	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal sync state: %w", err)
	}
	return os.WriteFile(s.statePath, data, 0o644)
}
