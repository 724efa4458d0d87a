package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"golang.org/x/oauth2"

	"bootcal/internal/airtable"
	"bootcal/internal/bootcamp"
	"bootcal/internal/cache"
	"bootcal/internal/calendar"
	"bootcal/internal/config"
	"bootcal/internal/dav"
	"bootcal/internal/google"
	"bootcal/internal/ics"
	"bootcal/internal/models"
	"bootcal/internal/server"
	"bootcal/internal/syncer"
)

func main() {
	// Load .env file first, but don't error if it doesn't exist.
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "bootcal",
		Usage: "Serve and publish the bootcamp calendar backed by Airtable.",
		Commands: []*cli.Command{
			serveCommand(),
			eventsCommand(),
			bankCommand(),
			exportCommand(),
			publishCommand(),
			authCommand(),
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunContext(ctx, os.Args); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}

// app bundles what every Airtable-backed command builds first.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	service *bootcamp.Service
}

func setup(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	logger := setupLogger(cfg.LogLevel)

	client, err := airtable.NewClient(logger, airtable.Options{
		Endpoint: cfg.AirtableAPIURL,
		BaseID:   cfg.AirtableBaseID,
		Token:    cfg.AirtableToken,
		Timeout:  cfg.RequestTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create airtable client: %w", err)
	}

	svc := bootcamp.NewService(logger, client, cache.Connect(ctx, logger, cfg.RedisAddr), bootcamp.Options{
		Cohort:     cfg.Cohort,
		StudentTTL: cfg.StudentCacheTTL,
	})
	return &app{cfg: cfg, logger: logger, service: svc}, nil
}

func (a *app) weeks() []models.Week {
	return calendar.Weeks(easternDate(a.cfg.BootcampStart), a.cfg.BootcampWeeks)
}

// easternDate reads a configured date as midnight Eastern.
func easternDate(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, calendar.Eastern)
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API used by the calendar widget.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Usage: "Listen address. Overrides LISTEN_ADDR."},
		},
		Action: func(c *cli.Context) error {
			a, err := setup(c.Context)
			if err != nil {
				return err
			}
			addr := a.cfg.ListenAddr
			if c.IsSet("addr") {
				addr = c.String("addr")
			}

			if a.cfg.LogLevel != "debug" {
				gin.SetMode(gin.ReleaseMode)
			}
			srv := server.New(a.logger, a.service, server.Options{
				AllowedOrigins: a.cfg.AllowedOrigins,
				OriginPatterns: a.cfg.AllowedOriginPatterns,
				CacheMaxAge:    a.cfg.CacheMaxAge,
				Weeks:          a.weeks(),
				CalendarName:   "Bootcamp " + a.cfg.Cohort,
			})
			return srv.Run(c.Context, addr)
		},
	}
}

func eventsCommand() *cli.Command {
	return &cli.Command{
		Name:  "events",
		Usage: "Print the merged calendar as JSON.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "email", Usage: "Viewer email. Without it only live sessions are listed."},
			&cli.IntFlag{Name: "week", Usage: "Only events of this bootcamp week (1-based)."},
		},
		Action: func(c *cli.Context) error {
			a, err := setup(c.Context)
			if err != nil {
				return err
			}
			events, err := a.service.Events(c.Context, c.String("email"))
			if err != nil {
				return fmt.Errorf("failed to load events: %w", err)
			}
			if c.IsSet("week") {
				w, ok := calendar.FindWeek(a.weeks(), c.Int("week"))
				if !ok {
					return fmt.Errorf("unknown week %d", c.Int("week"))
				}
				events = calendar.InWeek(events, w)
			}
			return printJSON(events)
		},
	}
}

func bankCommand() *cli.Command {
	return &cli.Command{
		Name:  "bank",
		Usage: "Print the assignment bank as JSON.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "email", Usage: "Hide templates already assigned to this student."},
			&cli.StringFlag{Name: "type", Usage: "Category filter, or 'all'."},
			&cli.StringSliceFlag{Name: "subject", Usage: "Subject filter. Repeatable."},
			&cli.StringFlag{Name: "source", Usage: "Question source filter, 'all' or 'none'."},
		},
		Action: func(c *cli.Context) error {
			a, err := setup(c.Context)
			if err != nil {
				return err
			}
			templates, err := a.service.Bank(c.Context, c.String("email"), models.FilterState{
				Category:       c.String("type"),
				Subjects:       c.StringSlice("subject"),
				QuestionSource: c.String("source"),
			})
			if err != nil {
				return fmt.Errorf("failed to load assignment bank: %w", err)
			}
			return printJSON(templates)
		},
	}
}

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Write the calendar as an iCalendar file.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "email", Usage: "Viewer email."},
			&cli.StringFlag{Name: "out", Value: "bootcamp.ics", Usage: "Output file, '-' for stdout."},
		},
		Action: func(c *cli.Context) error {
			a, err := setup(c.Context)
			if err != nil {
				return err
			}
			events, err := a.service.Events(c.Context, c.String("email"))
			if err != nil {
				return fmt.Errorf("failed to load events: %w", err)
			}

			out := os.Stdout
			if path := c.String("out"); path != "-" {
				f, err := os.Create(path)
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", path, err)
				}
				defer f.Close()
				out = f
			}
			if err := ics.Encode(out, "Bootcamp "+a.cfg.Cohort, events, time.Now()); err != nil {
				return err
			}
			a.logger.Info("Exported calendar.", "events", len(events), "file", c.String("out"))
			return nil
		},
	}
}

func publishCommand() *cli.Command {
	return &cli.Command{
		Name:  "publish",
		Usage: "Push live sessions to CalDAV and Google calendars.",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "once", Usage: "Run the publish cycle once and exit."},
			&cli.BoolFlag{Name: "dry-run", Usage: "Log what would be published without making changes."},
			&cli.IntFlag{Name: "watch", Value: 300, Usage: "Run every N seconds. Overrides --once."},
			&cli.BoolFlag{Name: "caldav", Value: true, Usage: "Publish to the CalDAV calendar when configured."},
			&cli.BoolFlag{Name: "google", Value: true, Usage: "Publish to the Google calendar when configured."},
		},
		Action: func(c *cli.Context) error {
			a, err := setup(c.Context)
			if err != nil {
				return err
			}
			logger := a.logger

			if c.Bool("dry-run") {
				logger.Info("Performing a dry run. No changes will be made.")
			}

			var targets []syncer.Target
			if c.Bool("caldav") && a.cfg.CalDAV.Enabled() {
				d, err := dav.NewClient(c.Context, logger, dav.Options{
					Endpoint:     a.cfg.CalDAV.Endpoint,
					Username:     a.cfg.CalDAV.Username,
					Password:     a.cfg.CalDAV.Password,
					CalendarName: a.cfg.CalDAV.CalendarName,
				})
				if err != nil {
					return fmt.Errorf("failed to create caldav client: %w", err)
				}
				targets = append(targets, d)
			}
			if c.Bool("google") && a.cfg.Google.Enabled() {
				g := a.cfg.Google
				gc, err := google.NewClient(c.Context, logger, g.ClientID, g.ClientSecret, g.Account, g.CalendarID)
				if err != nil {
					return fmt.Errorf("failed to create google client: %w", err)
				}
				targets = append(targets, gc)
			}
			if len(targets) == 0 {
				return fmt.Errorf("no publish target configured: set CALDAV_* or GOOGLE_* environment variables")
			}
			logger.Info("Initialized publish targets.", "count", len(targets))

			s, err := syncer.NewSyncer(logger, a.service, targets, a.cfg.SyncStateFile, c.Bool("dry-run"))
			if err != nil {
				return fmt.Errorf("failed to create syncer: %w", err)
			}

			// --watch flag takes precedence
			if c.IsSet("watch") {
				interval := time.Duration(c.Int("watch")) * time.Second
				logger.Info("Starting watcher.", "interval", interval)
				ticker := time.NewTicker(interval)
				defer ticker.Stop()
				for {
					if err := s.Sync(c.Context); err != nil {
						logger.Error("Publish cycle failed", "error", err)
					}
					select {
					case <-c.Context.Done():
						logger.Info("Watcher stopped.")
						return nil
					case <-ticker.C:
					}
				}
			}

			logger.Info("Running a single publish cycle.")
			if err := s.Sync(c.Context); err != nil {
				return fmt.Errorf("single publish cycle failed: %w", err)
			}
			return nil
		},
	}
}

func authCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authorize a Google account for publishing.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "account", Usage: "Name for the stored token. Defaults to GOOGLE_ACCOUNT."},
		},
		Action: func(c *cli.Context) error {
			// Airtable settings are not needed here, so no Validate.
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			logger := setupLogger(cfg.LogLevel)
			logger.Info("Starting Google authentication flow.")

			oauthConfig, err := google.GetOAuthConfigForAuthFlow(cfg.Google.ClientID, cfg.Google.ClientSecret)
			if err != nil {
				return fmt.Errorf("failed to get google oauth config: %w", err)
			}

			authURL := oauthConfig.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
			fmt.Printf("Go to the following link in your browser then type the "+
				"authorization code: \n%v\n", authURL)

			fmt.Print("Enter Authorization Code: ")
			reader := bufio.NewReader(os.Stdin)
			authCode, _ := reader.ReadString('\n')
			authCode = strings.TrimSpace(authCode)

			token, err := google.TokenFromWeb(c.Context, oauthConfig, authCode)
			if err != nil {
				return fmt.Errorf("unable to retrieve token from web: %w", err)
			}

			account := cfg.Google.Account
			if c.IsSet("account") {
				account = c.String("account")
			}
			tokenFile := google.TokenFile(account)
			if err := google.SaveToken(tokenFile, token); err != nil {
				return fmt.Errorf("failed to save token: %w", err)
			}

			logger.Info("Successfully authenticated and saved token.", "file", tokenFile)
			return nil
		},
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}
