// Package config reads the service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"bootcal/internal/airtable"
)

// Defaults for optional settings.
const (
	DefaultCohort          = "wbc25"
	DefaultListenAddr      = ":8787"
	DefaultStudentCacheTTL = 10 * time.Minute
	DefaultRequestTimeout  = 15 * time.Second
	DefaultCacheMaxAge     = 60
	DefaultBootcampStart   = "2025-12-13"
	DefaultBootcampWeeks   = 9
	DefaultSyncStateFile   = "publish-state.json"
)

var (
	defaultOrigins = []string{
		"https://joe-1sm.github.io",
		"https://mcat.live",
		"https://www.mcat.live",
		"http://localhost:8000",
		"http://localhost:8080",
		"http://localhost:8888",
		"http://127.0.0.1:8000",
		"http://127.0.0.1:8888",
	}
	defaultOriginPatterns = []string{
		`^https://.*\.softr\.app$`,
		`^https://.*\.softr\.io$`,
	}
)

// Config holds everything the commands need.
type Config struct {
	AirtableToken  string
	AirtableBaseID string
	AirtableAPIURL string

	Cohort     string
	ListenAddr string
	LogLevel   string

	AllowedOrigins        []string
	AllowedOriginPatterns []*regexp.Regexp

	RedisAddr       string
	StudentCacheTTL time.Duration
	RequestTimeout  time.Duration
	CacheMaxAge     int

	BootcampStart time.Time // date only, interpreted in US Eastern time
	BootcampWeeks int

	CalDAV CalDAV
	Google Google

	SyncStateFile string
}

// CalDAV configures the CalDAV publish target.
type CalDAV struct {
	Endpoint     string
	Username     string
	Password     string
	CalendarName string
}

// Enabled reports whether enough is set to publish.
func (c CalDAV) Enabled() bool {
	return c.Endpoint != "" && c.Username != "" && c.CalendarName != ""
}

// Google configures the Google Calendar publish target.
type Google struct {
	ClientID     string
	ClientSecret string
	CalendarID   string
	Account      string
}

// Enabled reports whether enough is set to publish.
func (g Google) Enabled() bool {
	return g.ClientID != "" && g.ClientSecret != "" && g.CalendarID != ""
}

// Load reads the environment. Malformed values are errors; missing ones
// take their defaults. Call Validate before talking to Airtable.
func Load() (*Config, error) {
	cfg := &Config{
		AirtableToken:  os.Getenv("AIRTABLE_TOKEN"),
		AirtableBaseID: os.Getenv("AIRTABLE_BASE_ID"),
		AirtableAPIURL: getenv("AIRTABLE_API_URL", airtable.DefaultEndpoint),
		Cohort:         getenv("COHORT", DefaultCohort),
		ListenAddr:     getenv("LISTEN_ADDR", DefaultListenAddr),
		LogLevel:       getenv("LOG_LEVEL", "info"),
		AllowedOrigins: splitList(getenv("ALLOWED_ORIGINS", strings.Join(defaultOrigins, ","))),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		CalDAV: CalDAV{
			Endpoint:     os.Getenv("CALDAV_ENDPOINT"),
			Username:     os.Getenv("CALDAV_USERNAME"),
			Password:     os.Getenv("CALDAV_PASSWORD"),
			CalendarName: os.Getenv("CALDAV_CALENDAR_NAME"),
		},
		Google: Google{
			ClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
			ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
			CalendarID:   os.Getenv("GOOGLE_CALENDAR_ID"),
			Account:      getenv("GOOGLE_ACCOUNT", "default"),
		},
		SyncStateFile: getenv("SYNC_STATE_FILE", DefaultSyncStateFile),
	}

	var errs []error
	var err error

	patterns := defaultOriginPatterns
	if v, ok := os.LookupEnv("ALLOWED_ORIGIN_PATTERNS"); ok {
		patterns = splitList(v)
	}
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			errs = append(errs, fmt.Errorf("ALLOWED_ORIGIN_PATTERNS %q: %w", p, err))
			continue
		}
		cfg.AllowedOriginPatterns = append(cfg.AllowedOriginPatterns, re)
	}

	if cfg.StudentCacheTTL, err = durationEnv("STUDENT_CACHE_TTL", DefaultStudentCacheTTL); err != nil {
		errs = append(errs, err)
	}
	if cfg.RequestTimeout, err = durationEnv("REQUEST_TIMEOUT", DefaultRequestTimeout); err != nil {
		errs = append(errs, err)
	}
	if cfg.CacheMaxAge, err = intEnv("CACHE_MAX_AGE", DefaultCacheMaxAge); err != nil {
		errs = append(errs, err)
	}
	if cfg.BootcampWeeks, err = intEnv("BOOTCAMP_WEEKS", DefaultBootcampWeeks); err != nil {
		errs = append(errs, err)
	}

	start := getenv("BOOTCAMP_START", DefaultBootcampStart)
	if cfg.BootcampStart, err = time.Parse(time.DateOnly, start); err != nil {
		errs = append(errs, fmt.Errorf("BOOTCAMP_START %q: %w", start, err))
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

// Validate checks the settings every Airtable-backed command needs.
func (c *Config) Validate() error {
	var errs []error
	if c.AirtableToken == "" {
		errs = append(errs, errors.New("AIRTABLE_TOKEN environment variable not set"))
	}
	if c.AirtableBaseID == "" {
		errs = append(errs, errors.New("AIRTABLE_BASE_ID environment variable not set"))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("REQUEST_TIMEOUT must be positive"))
	}
	if c.BootcampWeeks < 1 {
		errs = append(errs, errors.New("BOOTCAMP_WEEKS must be at least 1"))
	}
	if c.CacheMaxAge < 0 {
		errs = append(errs, errors.New("CACHE_MAX_AGE must not be negative"))
	}
	return errors.Join(errs...)
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s %q: %w", key, v, err)
	}
	return d, nil
}

func intEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s %q: %w", key, v, err)
	}
	return n, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
