package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"bootcal/internal/bootcamp"
	"bootcal/internal/calendar"
	"bootcal/internal/ics"
	"bootcal/internal/models"
)

// nullable renders an empty query value as JSON null.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func (s *Server) getEvents(c *gin.Context) {
	email := strings.TrimSpace(c.Query("studentEmail"))

	var week *models.Week
	if raw := c.Query("week"); raw != "" {
		n, err := strconv.Atoi(raw)
		w, ok := calendar.FindWeek(s.opts.Weeks, n)
		if err != nil || !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown week", "week": raw})
			return
		}
		week = &w
	}

	events, err := s.svc.Events(c.Request.Context(), email)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if week != nil {
		events = calendar.InWeek(events, *week)
	}

	s.cacheable(c)
	c.JSON(http.StatusOK, gin.H{"events": events, "studentEmail": nullable(email)})
}

func (s *Server) getFeed(c *gin.Context) {
	email := strings.TrimSpace(c.Query("studentEmail"))
	events, err := s.svc.Events(c.Request.Context(), email)
	if err != nil {
		s.writeError(c, err)
		return
	}

	s.cacheable(c)
	c.Header("Content-Type", "text/calendar; charset=utf-8")
	c.Status(http.StatusOK)
	if err := ics.Encode(c.Writer, s.opts.CalendarName, events, time.Now()); err != nil {
		s.logger.Error("Failed to write calendar feed", "error", err)
	}
}

func (s *Server) getBank(c *gin.Context) {
	email := strings.TrimSpace(c.Query("studentEmail"))
	fs := models.FilterState{
		Category:       c.Query("assignmentType"),
		QuestionSource: c.Query("questionSource"),
	}
	if raw := c.Query("subjects"); raw != "" {
		for _, subj := range strings.Split(raw, ",") {
			if subj = strings.TrimSpace(subj); subj != "" {
				fs.Subjects = append(fs.Subjects, subj)
			}
		}
	}

	templates, err := s.svc.Bank(c.Request.Context(), email, fs)
	if err != nil {
		s.writeError(c, err)
		return
	}

	s.cacheable(c)
	c.JSON(http.StatusOK, gin.H{"assignments": templates, "filters": fs, "studentEmail": nullable(email)})
}

func (s *Server) getStudent(c *gin.Context) {
	email := strings.TrimSpace(c.Query("email"))
	if email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email parameter required"})
		return
	}

	student, err := s.svc.LookupStudent(c.Request.Context(), email)
	if errors.Is(err, models.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Student not found", "email": email})
		return
	}
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"student": student})
}

func (s *Server) getWeeks(c *gin.Context) {
	s.cacheable(c)
	c.JSON(http.StatusOK, gin.H{"weeks": s.opts.Weeks})
}

func (s *Server) createAssignment(c *gin.Context) {
	var in models.NewAssignment
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body", "details": err.Error()})
		return
	}

	created, err := s.svc.CreateAssignment(c.Request.Context(), in)
	var missing *models.MissingFieldsError
	if errors.As(err, &missing) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":    "Missing required fields",
			"details":  err.Error(),
			"missing":  missing.Fields,
			"required": bootcamp.RequiredAssignmentFields,
		})
		return
	}
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "assignment": created})
}

// studentRef names the acting student by roster id or by email.
type studentRef struct {
	StudentID    string `json:"studentRecordId"`
	StudentEmail string `json:"studentEmail"`
}

type updateRequest struct {
	studentRef
	models.AssignmentPatch
}

func (s *Server) updateAssignment(c *gin.Context) {
	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body", "details": err.Error()})
		return
	}

	studentID, err := s.svc.ResolveStudentID(c.Request.Context(), req.StudentID, req.StudentEmail)
	if err != nil {
		s.writeError(c, err)
		return
	}
	updated, err := s.svc.UpdateAssignment(c.Request.Context(), c.Param("id"), studentID, req.AssignmentPatch)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "assignment": updated})
}

type toggleRequest struct {
	studentRef
	IsCompleted bool `json:"isCompleted"`
}

func (s *Server) toggleComplete(c *gin.Context) {
	var req toggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body", "details": err.Error()})
		return
	}

	studentID, err := s.svc.ResolveStudentID(c.Request.Context(), req.StudentID, req.StudentEmail)
	if err != nil {
		s.writeError(c, err)
		return
	}
	result, err := s.svc.ToggleComplete(c.Request.Context(), c.Param("id"), studentID, req.IsCompleted)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
