// Package server exposes the calendar over HTTP for the embedded widget.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"bootcal/internal/models"
)

// Service is what the handlers need from the bootcamp service.
type Service interface {
	Events(ctx context.Context, email string) ([]models.CalendarEvent, error)
	Bank(ctx context.Context, email string, fs models.FilterState) ([]models.PotentialAssignment, error)
	LookupStudent(ctx context.Context, email string) (models.Student, error)
	ResolveStudentID(ctx context.Context, studentID, email string) (string, error)
	CreateAssignment(ctx context.Context, in models.NewAssignment) (models.AssignmentSummary, error)
	UpdateAssignment(ctx context.Context, id, studentID string, patch models.AssignmentPatch) (models.AssignmentSummary, error)
	ToggleComplete(ctx context.Context, id, studentID string, completed bool) (models.Completion, error)
}

// Options configures the HTTP layer.
type Options struct {
	AllowedOrigins []string
	OriginPatterns []*regexp.Regexp
	CacheMaxAge    int // seconds, for cacheable GET responses
	Weeks          []models.Week
	CalendarName   string // X-WR-CALNAME of the iCalendar feed
}

// Server wires the routes onto a gin engine.
type Server struct {
	logger *slog.Logger
	svc    Service
	opts   Options
	engine *gin.Engine
}

func New(logger *slog.Logger, svc Service, opts Options) *Server {
	s := &Server{logger: logger, svc: svc, opts: opts, engine: gin.New()}
	s.routes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) routes() {
	r := s.engine
	r.Use(s.requestLogger(), s.recovery(), s.cors())

	r.GET("/", s.getEvents)
	r.GET("/events.ics", s.getFeed)
	r.GET("/potential-assignments", s.getBank)
	r.GET("/student-lookup", s.getStudent)
	r.GET("/weeks", s.getWeeks)
	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	assignments := r.Group("/assignments")
	{
		assignments.POST("", s.createAssignment)
		assignments.PUT("/:id", s.updateAssignment)
		assignments.PATCH("/:id/toggle-complete", s.toggleComplete)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// cacheable marks a successful GET response as publicly cacheable.
func (s *Server) cacheable(c *gin.Context) {
	c.Header("Cache-Control", "public, max-age="+strconv.Itoa(s.opts.CacheMaxAge))
}

// writeError maps the error taxonomy to a status code.
func (s *Server) writeError(c *gin.Context, err error) {
	status, msg := http.StatusInternalServerError, "Server error"
	switch {
	case errors.Is(err, models.ErrValidation):
		status, msg = http.StatusBadRequest, "Invalid request"
	case errors.Is(err, models.ErrUnauthorized):
		status, msg = http.StatusForbidden, "Unauthorized: only the creator can edit this assignment"
	case errors.Is(err, models.ErrNotFound):
		status, msg = http.StatusNotFound, "Not found"
	case errors.Is(err, models.ErrSourceFetch):
		status, msg = http.StatusBadGateway, "Upstream request failed"
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", "path", c.FullPath(), "status", status, "error", err)
	} else {
		s.logger.Debug("Request rejected", "path", c.FullPath(), "status", status, "error", err)
	}
	c.JSON(status, gin.H{"error": msg, "details": err.Error()})
}
