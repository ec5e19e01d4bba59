package httpserver

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// requestKey reads the caller's key from the Authorization bearer token,
// the X-API-Key header, or the api_key query parameter, in that order.
func requestKey(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
		return strings.TrimSpace(auth)
	}
	if key := c.GetHeader("X-API-Key"); key != "" {
		return key
	}
	return c.Query("api_key")
}

func keyMatches(got, want string) bool {
	return want != "" && subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

// requireKey guards a route group. Read routes need the API key; ingest
// routes accept either key. A group no configured key guards stays open.
func (s *Server) requireKey(ingest bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		guarded := s.conf.APIKey != "" || (ingest && s.conf.IngestKey != "")
		if !guarded {
			c.Next()
			return
		}
		key := requestKey(c)
		if keyMatches(key, s.conf.APIKey) || (ingest && keyMatches(key, s.conf.IngestKey)) {
			c.Next()
			return
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
	}
}
