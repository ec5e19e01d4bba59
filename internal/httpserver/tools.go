package httpserver

import (
	"errors"
	"net/http"

	"github.com/brainz-lab/recall/internal/mcp"
	"github.com/gin-gonic/gin"
)

func (s *Server) handleListTools(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tools": s.tools.Tools()})
}

// handleCallTool runs one tool with the JSON body as its arguments. An
// empty body means no arguments.
func (s *Server) handleCallTool(c *gin.Context) {
	args := mcp.Arguments{}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&args); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
			return
		}
	}

	result, err := s.tools.CallTool(c.Request.Context(), c.Param("name"), args)
	if err != nil {
		var argErr *mcp.ArgumentError
		if errors.Is(err, mcp.ErrUnknownTool) || errors.As(err, &argErr) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		c.JSON(queryStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleRPC(c *gin.Context) {
	body, ok := readBody(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.tools.HandleRPC(c.Request.Context(), body))
}
