package httpserver

import (
	"errors"
	"net/http"

	"github.com/brainz-lab/recall/internal/savedsearch"
	"github.com/gin-gonic/gin"
)

type searchRequest struct {
	Name  string `json:"name"`
	Query string `json:"query"`
}

// searchError maps saved search errors onto statuses.
func searchError(c *gin.Context, err error) {
	var verr *savedsearch.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": verr.Error()})
	case errors.Is(err, savedsearch.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Saved search not found"})
	case errors.Is(err, savedsearch.ErrDuplicateName):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func (s *Server) handleListSearches(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"saved_searches": s.searches.List()})
}

func (s *Server) handleGetSearch(c *gin.Context) {
	search, err := s.searches.Get(c.Param("name"))
	if err != nil {
		searchError(c, err)
		return
	}
	c.JSON(http.StatusOK, search)
}

func (s *Server) handleCreateSearch(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}
	search, err := s.searches.Create(req.Name, req.Query)
	if err != nil {
		searchError(c, err)
		return
	}
	c.JSON(http.StatusCreated, search)
}

func (s *Server) handleUpdateSearch(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}
	search, err := s.searches.Update(c.Param("name"), req.Query)
	if err != nil {
		searchError(c, err)
		return
	}
	c.JSON(http.StatusOK, search)
}

func (s *Server) handleDeleteSearch(c *gin.Context) {
	if err := s.searches.Delete(c.Param("name")); err != nil {
		searchError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// handleRunSearch executes a saved search like GET /api/v1/logs?q=.
func (s *Server) handleRunSearch(c *gin.Context) {
	search, err := s.searches.Get(c.Param("name"))
	if err != nil {
		searchError(c, err)
		return
	}
	s.respondQuery(c, search.Query, s.limitParam(c, s.conf.DefaultLimit))
}
