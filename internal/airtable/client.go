package airtable

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"bootcal/internal/models"

	"golang.org/x/oauth2"
)

const (
	// DefaultEndpoint is the public Airtable REST API root.
	DefaultEndpoint = "https://api.airtable.com/v0"

	defaultTimeout = 15 * time.Second
)

// Client talks to one Airtable base.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	endpoint   string
	baseID     string
	timeout    time.Duration
}

// Options configures a Client. Zero values fall back to defaults.
type Options struct {
	Endpoint string
	BaseID   string
	Token    string
	Timeout  time.Duration
	// Transport overrides the underlying round tripper, mostly for tests.
	Transport http.RoundTripper
}

// NewClient creates a Client. The personal access token is sent as a bearer
// token on every request.
func NewClient(logger *slog.Logger, opts Options) (*Client, error) {
	if opts.BaseID == "" {
		return nil, fmt.Errorf("airtable: base id is required")
	}
	if opts.Token == "" {
		return nil, fmt.Errorf("airtable: token is required")
	}
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultEndpoint
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}

	base := opts.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	httpClient := &http.Client{
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token, TokenType: "Bearer"}),
			Base:   base,
		},
	}

	return &Client{
		httpClient: httpClient,
		logger:     logger,
		endpoint:   strings.TrimSuffix(opts.Endpoint, "/"),
		baseID:     opts.BaseID,
		timeout:    opts.Timeout,
	}, nil
}

// FetchPage returns one page of records and the cursor for the next one.
// An empty Page.Offset means there are no more pages.
func (c *Client) FetchPage(ctx context.Context, table string, q Query, offset string) (Page, error) {
	params := q.values()
	if offset != "" {
		params.Set("offset", offset)
	}

	var page Page
	if err := c.do(ctx, http.MethodGet, c.tableURL(table, "")+"?"+params.Encode(), nil, &page); err != nil {
		return Page{}, err
	}
	return page, nil
}

// FetchAll follows the pagination cursor until it runs out. Pages are fetched
// one after another since a cursor is only valid once its page was read.
func (c *Client) FetchAll(ctx context.Context, table string, q Query) ([]Record, error) {
	var (
		all    []Record
		offset string
		pages  int
	)
	for {
		page, err := c.FetchPage(ctx, table, q, offset)
		if err != nil {
			return nil, fmt.Errorf("fetching %s page %d: %w", table, pages+1, err)
		}
		pages++
		all = append(all, page.Records...)
		offset = page.Offset
		if offset == "" {
			break
		}
	}
	c.logger.Debug("Fetched records", "table", table, "count", len(all), "pages", pages)
	return all, nil
}

// GetRecord fetches a single record. A missing record yields an error
// matching models.ErrNotFound.
func (c *Client) GetRecord(ctx context.Context, table, id string) (Record, error) {
	var rec Record
	if err := c.do(ctx, http.MethodGet, c.tableURL(table, id), nil, &rec); err != nil {
		return Record{}, fmt.Errorf("getting %s/%s: %w", table, id, err)
	}
	return rec, nil
}

// CreateRecord inserts a record built from fields, which must marshal to a
// JSON object keyed by Airtable field names.
func (c *Client) CreateRecord(ctx context.Context, table string, fields any) (Record, error) {
	var rec Record
	if err := c.do(ctx, http.MethodPost, c.tableURL(table, ""), writeRequest{Fields: fields}, &rec); err != nil {
		return Record{}, fmt.Errorf("creating %s record: %w", table, err)
	}
	c.logger.Info("Created record", "table", table, "id", rec.ID)
	return rec, nil
}

// UpdateRecord patches the given fields of a record, leaving others as they are.
func (c *Client) UpdateRecord(ctx context.Context, table, id string, fields any) (Record, error) {
	var rec Record
	if err := c.do(ctx, http.MethodPatch, c.tableURL(table, id), writeRequest{Fields: fields}, &rec); err != nil {
		return Record{}, fmt.Errorf("updating %s/%s: %w", table, id, err)
	}
	c.logger.Info("Updated record", "table", table, "id", rec.ID)
	return rec, nil
}

type writeRequest struct {
	Fields any `json:"fields"`
}

func (c *Client) tableURL(table, id string) string {
	u := c.endpoint + "/" + url.PathEscape(c.baseID) + "/" + url.PathEscape(table)
	if id != "" {
		u += "/" + url.PathEscape(id)
	}
	return u
}

func (c *Client) do(ctx context.Context, method, rawURL string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", models.ErrSourceFetch, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: reading response: %w", models.ErrSourceFetch, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Debug("Airtable request failed", "method", method, "status", resp.StatusCode)
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: decoding response: %w", models.ErrSourceFetch, err)
	}
	return nil
}

// APIError is a non-success response from Airtable.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return "airtable: status " + strconv.Itoa(e.StatusCode) + ": " + e.Body
}

// Unwrap exposes the failure kinds the response maps to.
func (e *APIError) Unwrap() []error {
	if e.StatusCode == http.StatusNotFound {
		return []error{models.ErrSourceFetch, models.ErrNotFound}
	}
	return []error{models.ErrSourceFetch}
}
