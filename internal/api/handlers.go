package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Rishu22889/ai-apply/internal/history"
	"github.com/Rishu22889/ai-apply/internal/profile"
)

func (s *Server) triggerAutopilot(c *gin.Context) {
	userID := s.userID(c)

	runID, err := s.orchestrator.Trigger(c.Request.Context(), userID)
	if err != nil {
		s.renderError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"run_id": runID})
}

func (s *Server) cancelAutopilot(c *gin.Context) {
	userID := s.userID(c)

	if !s.orchestrator.Cancel(userID) {
		c.JSON(http.StatusConflict, gin.H{"error": "no active run to cancel"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cancelled": true})
}

func (s *Server) autopilotStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.orchestrator.Status(s.userID(c)))
}

func (s *Server) classifiedJobs(c *gin.Context) {
	jobs := s.orchestrator.Classified(s.userID(c))
	c.JSON(http.StatusOK, gin.H{"jobs": jobs, "count": len(jobs)})
}

func (s *Server) listApplications(c *gin.Context) {
	userID := s.userID(c)

	filter := history.Filter{
		Outcome: history.Outcome(c.Query("outcome")),
	}
	if raw := c.Query("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be RFC 3339"})
			return
		}
		filter.Since = since
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		filter.Limit = limit
	}

	entries, err := s.ledger.List(c.Request.Context(), userID, filter)
	if err != nil {
		s.renderError(c, err)
		return
	}
	if entries == nil {
		entries = []*history.Entry{}
	}
	c.JSON(http.StatusOK, gin.H{"applications": entries, "count": len(entries)})
}

func (s *Server) getProfile(c *gin.Context) {
	p, err := s.profiles.Get(c.Request.Context(), s.userID(c))
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) putProfile(c *gin.Context) {
	userID := s.userID(c)

	var p profile.Profile
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.profiles.Save(c.Request.Context(), userID, &p); err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, &p)
}

type patchRequest struct {
	Path  string `json:"path" binding:"required"`
	Value any    `json:"value"`
}

func (s *Server) patchProfile(c *gin.Context) {
	userID := s.userID(c)

	var req patchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p, err := s.profiles.ApplyPatch(c.Request.Context(), userID, req.Path, req.Value)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}
