package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"storyboarder/internal/api"
	"storyboarder/internal/events"
	"storyboarder/internal/jobs"
	"storyboarder/internal/logging"
	"storyboarder/internal/services"
	"storyboarder/internal/storyboard"
)

const defaultJobListLimit = 50

func (s *Server) routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestID())
	r.Use(requestLogger(s.logger))

	group := r.Group("/api", authMiddleware(s.token))
	group.GET("/health", s.handleHealth)
	group.GET("/stats", s.handleStats)
	group.POST("/plan", s.handlePlan)
	group.POST("/storyboards", s.handleStoryboards)
	group.GET("/jobs", s.handleJobs)
	group.GET("/jobs/:id", s.handleJob)
	group.DELETE("/jobs/:id", s.handleRemoveJob)
	group.GET("/jobs/:id/events", s.handleJobEvents)
	return r
}

func (s *Server) handleHealth(c *gin.Context) {
	stats, err := s.service.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, api.HealthResponse{Status: "degraded", Model: s.model})
		return
	}
	c.JSON(http.StatusOK, api.HealthResponse{Status: "ok", Model: s.model, Jobs: stats})
}

func (s *Server) handleStats(c *gin.Context) {
	stats, err := s.service.Stats(c.Request.Context())
	if err != nil {
		s.writeError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, api.JobStatsResponse{Counts: stats})
}

func (s *Server) handlePlan(c *gin.Context) {
	var req api.PlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, services.Wrap(services.ErrValidation, "plan", "decode request", "", err), "")
		return
	}
	resp, err := s.service.Plan(req.Transcript)
	if err != nil {
		s.writeError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleStoryboards(c *gin.Context) {
	var req api.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, services.Wrap(services.ErrValidation, "storyboard", "decode request", "", err), "")
		return
	}
	req.Source = "api"

	if req.Async {
		job, err := s.service.Start(s.backgroundContext(), req)
		if err != nil {
			s.writeError(c, err, "")
			return
		}
		c.Header("Location", "/api/jobs/"+job.ID)
		c.JSON(http.StatusAccepted, api.JobResponse{Job: *job})
		return
	}

	resp, err := s.service.Generate(c.Request.Context(), req)
	if err != nil {
		jobID := ""
		if resp != nil {
			jobID = resp.Job.ID
		}
		s.writeError(c, err, jobID)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleJobs(c *gin.Context) {
	var statuses []jobs.Status
	for _, value := range c.QueryArray("status") {
		for _, part := range strings.Split(value, ",") {
			trimmed := strings.TrimSpace(part)
			if trimmed == "" {
				continue
			}
			status, ok := jobs.ParseStatus(trimmed)
			if !ok {
				s.writeError(c, services.Wrap(services.ErrValidation, "jobs", "list", "unknown status "+strconv.Quote(trimmed), nil), "")
				return
			}
			statuses = append(statuses, status)
		}
	}
	limit := defaultJobListLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			s.writeError(c, services.Wrap(services.ErrValidation, "jobs", "list", "invalid limit", nil), "")
			return
		}
		limit = parsed
	}

	list, err := s.service.Jobs(c.Request.Context(), limit, statuses...)
	if err != nil {
		s.writeError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, api.JobListResponse{Jobs: list})
}

func (s *Server) handleJob(c *gin.Context) {
	job, err := s.service.Job(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, api.JobResponse{Job: *job})
}

func (s *Server) handleRemoveJob(c *gin.Context) {
	id := c.Param("id")
	if err := s.service.Remove(c.Request.Context(), id); err != nil {
		s.writeError(c, err, id)
		return
	}
	c.Status(http.StatusNoContent)
}

// handleJobEvents streams a job's progress as server-sent events. Jobs that
// finished before the client connected get a single terminal event built
// from the stored record.
func (s *Server) handleJobEvents(c *gin.Context) {
	id := c.Param("id")
	stream, ok := s.service.Events(id)
	if !ok {
		job, err := s.service.Job(c.Request.Context(), id)
		if err != nil {
			s.writeError(c, err, "")
			return
		}
		evt, ok := terminalEvent(job)
		if !ok {
			c.JSON(http.StatusConflict, api.ErrorResponse{Error: "job has no live event stream", JobID: id})
			return
		}
		c.SSEvent(string(evt.Type), evt)
		return
	}

	sub := stream.Subscribe()
	defer sub.Close()
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	ctx := c.Request.Context()
	c.Stream(func(io.Writer) bool {
		evt, err := sub.Next(ctx)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, context.Canceled) {
				s.logger.Debug("event stream ended", logging.String(logging.FieldJobID, id), logging.Error(err))
			}
			return false
		}
		c.SSEvent(string(evt.Type), evt)
		return !evt.Type.Terminal()
	})
}

func terminalEvent(job *api.Job) (events.Event, bool) {
	evt := events.Event{JobID: job.ID, Attempt: job.Attempts}
	switch jobs.Status(job.Status) {
	case jobs.StatusCompleted:
		evt.Type = events.TypeCompleted
	case jobs.StatusFailed, jobs.StatusInvalid:
		evt.Type = events.TypeFailed
		evt.Message = job.ErrorMessage
	default:
		return events.Event{}, false
	}
	return evt, true
}

// writeError maps service errors onto HTTP statuses.
func (s *Server) writeError(c *gin.Context, err error, jobID string) {
	resp := api.ErrorResponse{Error: err.Error(), JobID: jobID}
	status := http.StatusInternalServerError

	var exhausted *storyboard.ExhaustedError
	switch {
	case errors.As(err, &exhausted):
		status = http.StatusUnprocessableEntity
		resp.Error = "storyboard failed validation after final repair pass"
		resp.Details = exhausted.Errors
	case errors.Is(err, services.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, api.ErrJobActive):
		status = http.StatusConflict
	case errors.Is(err, services.ErrConfiguration):
		status = http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, services.ErrTimeout):
		status = http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		// Client went away; nothing useful can be written.
		c.Status(499)
		return
	}
	c.JSON(status, resp)
}
