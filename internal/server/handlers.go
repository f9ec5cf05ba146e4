package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ifuryst/outreach/internal/models"
	"github.com/ifuryst/outreach/internal/service"
	"github.com/ifuryst/outreach/internal/service/platform"
)

// respondError maps service errors onto HTTP status codes.
func (s *Server) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrJobNotFound), errors.Is(err, service.ErrCampaignNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrActiveJobExists), errors.Is(err, service.ErrInvalidTransition):
		status = http.StatusConflict
	case errors.Is(err, service.ErrInvalidRequest),
		errors.Is(err, platform.ErrUnsupportedPlatform),
		errors.Is(err, platform.ErrDisabled):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	}

	if status == http.StatusInternalServerError {
		s.Logger.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.JSON(status, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func idParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid id"})
		return 0, false
	}
	return uint(id), true
}

func queryInt(c *gin.Context, key string) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return 0
	}
	return v
}

func (s *Server) handleLogin(c *gin.Context) {
	var req struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Token is required"})
		return
	}

	token, expires, err := s.Auth.Login(req.Token)
	if err != nil {
		s.respondError(c, err)
		return
	}

	s.Auth.SetSessionCookie(c, token)
	c.JSON(http.StatusOK, gin.H{"token": token, "expires_at": expires})
}

func (s *Server) handleCreateCampaign(c *gin.Context) {
	var req service.CreateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	campaign, err := s.Automation.CreateCampaign(c.Request.Context(), req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, campaign)
}

func (s *Server) handleGetCampaign(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	campaign, err := s.Automation.GetCampaign(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, campaign)
}

func (s *Server) handleStartJob(c *gin.Context) {
	var req service.StartJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job, err := s.Automation.StartJob(c.Request.Context(), req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, job)
}

func (s *Server) handleListJobs(c *gin.Context) {
	jobs, err := s.Automation.ListJobs(c.Request.Context(), uint(queryInt(c, "user_id")))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}

func (s *Server) handleGetJob(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	job, err := s.Automation.GetJob(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

func (s *Server) handleUpdateJob(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req service.UpdateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job, err := s.Automation.UpdateJob(c.Request.Context(), id, req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

func (s *Server) handleDeleteJob(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := s.Automation.DeleteJob(c.Request.Context(), id); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleJobStats(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	stats, err := s.Automation.JobStats(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) handleListEntries(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	entries, total, err := s.Automation.ListEntries(c.Request.Context(), id, queryInt(c, "limit"), queryInt(c, "offset"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries, "total": total})
}

func (s *Server) handleListRuns(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	runs, err := s.Automation.ListRuns(c.Request.Context(), id, queryInt(c, "limit"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (s *Server) handlePauseJob(c *gin.Context) {
	s.changeStatus(c, s.Automation.PauseJob)
}

func (s *Server) handleResumeJob(c *gin.Context) {
	s.changeStatus(c, s.Automation.ResumeJob)
}

func (s *Server) handleStopJob(c *gin.Context) {
	s.changeStatus(c, s.Automation.StopJob)
}

type statusChange func(ctx context.Context, id uint) (*models.AutomationJob, error)

func (s *Server) changeStatus(c *gin.Context, change statusChange) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	job, err := change(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

func (s *Server) handleListPlatforms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"platforms": s.Automation.Platforms()})
}

func (s *Server) handleRecentErrors(c *gin.Context) {
	limit := queryInt(c, "limit")
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	logs, err := s.Monitoring.GetRecentErrors(limit)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"errors": logs})
}

func (s *Server) handlePlatformStats(c *gin.Context) {
	days := queryInt(c, "days")
	if days <= 0 {
		days = 7
	}
	stats, err := s.Monitoring.GetPlatformStats(days)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats})
}
