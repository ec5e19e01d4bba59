package httpserver

import (
	"errors"
	"net/http"

	"github.com/brainz-lab/recall/internal/model"
	"github.com/gin-gonic/gin"
)

// sessionPreviewLogs is how many records the session detail route embeds.
const sessionPreviewLogs = 100

func (s *Server) handleListSessions(c *gin.Context) {
	sessions, err := s.store.ListSessions(c.Request.Context(), s.limitParam(c, 50))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if sessions == nil {
		sessions = []model.SessionSummary{}
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

func (s *Server) handleGetSession(c *gin.Context) {
	id := c.Param("id")
	sum, err := s.store.SessionSummary(c.Request.Context(), id)
	if errors.Is(err, model.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	logs, err := s.store.SessionLogs(c.Request.Context(), id, "", sessionPreviewLogs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session_id": sum.SessionID,
		"log_count":  sum.LogCount,
		"first_log":  sum.FirstLog,
		"last_log":   sum.LastLog,
		"levels":     sum.LevelCounts,
		"logs":       logs,
	})
}

func (s *Server) handleSessionLogs(c *gin.Context) {
	id := c.Param("id")
	level := model.Level(c.Query("level"))
	logs, err := s.store.SessionLogs(c.Request.Context(), id, level, s.limitParam(c, model.DefaultSessionLimit))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session_id": id,
		"count":      len(logs),
		"logs":       logs,
	})
}

func (s *Server) handleCreateSession(c *gin.Context) {
	c.JSON(http.StatusCreated, gin.H{"session_id": model.NewSessionID()})
}

func (s *Server) handleDeleteSession(c *gin.Context) {
	id := c.Param("id")
	n, err := s.store.DeleteSession(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": n, "session_id": id})
}
