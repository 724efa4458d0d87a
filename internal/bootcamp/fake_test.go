package bootcamp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"bootcal/internal/airtable"
	"bootcal/internal/models"
)

// fakeSource is an in-memory RecordSource keyed by table.
type fakeSource struct {
	mu      sync.Mutex
	tables  map[string][]airtable.Record
	errs    map[string]error // FetchAll failures by table
	queries map[string][]airtable.Query
	writes  []write
	nextID  int
	blocked string // FetchAll on this table waits for cancellation
}

type write struct {
	Table  string
	ID     string
	Fields map[string]any
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		tables:  make(map[string][]airtable.Record),
		errs:    make(map[string]error),
		queries: make(map[string][]airtable.Query),
	}
}

func (f *fakeSource) add(t *testing.T, table, id string, fields map[string]any) {
	t.Helper()
	raw, err := json.Marshal(fields)
	require.NoError(t, err)
	f.tables[table] = append(f.tables[table], airtable.Record{ID: id, Fields: raw})
}

func (f *fakeSource) FetchAll(ctx context.Context, table string, q airtable.Query) ([]airtable.Record, error) {
	f.mu.Lock()
	f.queries[table] = append(f.queries[table], q)
	err := f.errs[table]
	recs := append([]airtable.Record(nil), f.tables[table]...)
	blocked := f.blocked == table
	f.mu.Unlock()

	if blocked {
		<-ctx.Done()
		return nil, fmt.Errorf("%w: %w", models.ErrSourceFetch, ctx.Err())
	}
	if err != nil {
		return nil, err
	}
	return recs, nil
}

func (f *fakeSource) GetRecord(_ context.Context, table, id string) (airtable.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.tables[table] {
		if r.ID == id {
			return r, nil
		}
	}
	return airtable.Record{}, fmt.Errorf("%w: %w: %s", models.ErrSourceFetch, models.ErrNotFound, id)
}

func (f *fakeSource) CreateRecord(_ context.Context, table string, fields any) (airtable.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	rec, m, err := toRecord(fmt.Sprintf("recNew%d", f.nextID), fields)
	if err != nil {
		return airtable.Record{}, err
	}
	f.tables[table] = append(f.tables[table], rec)
	f.writes = append(f.writes, write{Table: table, ID: rec.ID, Fields: m})
	return rec, nil
}

func (f *fakeSource) UpdateRecord(_ context.Context, table, id string, fields any) (airtable.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, r := range f.tables[table] {
		if r.ID != id {
			continue
		}
		_, patch, err := toRecord(id, fields)
		if err != nil {
			return airtable.Record{}, err
		}
		merged := map[string]any{}
		if len(r.Fields) > 0 {
			if err := json.Unmarshal(r.Fields, &merged); err != nil {
				return airtable.Record{}, err
			}
		}
		for k, v := range patch {
			merged[k] = v
		}
		raw, err := json.Marshal(merged)
		if err != nil {
			return airtable.Record{}, err
		}
		f.tables[table][i].Fields = raw
		f.writes = append(f.writes, write{Table: table, ID: id, Fields: patch})
		return f.tables[table][i], nil
	}
	return airtable.Record{}, fmt.Errorf("%w: %w: %s", models.ErrSourceFetch, models.ErrNotFound, id)
}

func toRecord(id string, fields any) (airtable.Record, map[string]any, error) {
	raw, err := json.Marshal(fields)
	if err != nil {
		return airtable.Record{}, nil, err
	}
	m := map[string]any{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return airtable.Record{}, nil, err
	}
	return airtable.Record{ID: id, Fields: raw}, m, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
