// internal/api/system.go
package api

import (
	"context"
	"net/http"
	"sort"
	"time"

	apperrors "job-board/internal/common/errors"

	"github.com/gin-gonic/gin"
)

const readinessTimeout = 2 * time.Second

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().UTC(),
	})
}

// ready runs every dependency check; any failure makes the instance unready.
func (s *Server) ready(c *gin.Context) {
	names := make([]string, 0, len(s.deps.Readiness))
	for name := range s.deps.Readiness {
		names = append(names, name)
	}
	sort.Strings(names)

	checks := make(map[string]string, len(names))
	status := http.StatusOK
	for _, name := range names {
		ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
		err := s.deps.Readiness[name](ctx)
		cancel()
		if err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			s.logger.WithError(err).Warn("readiness check failed", map[string]interface{}{"check": name})
			continue
		}
		checks[name] = "ok"
	}

	state := "ready"
	if status != http.StatusOK {
		state = "unavailable"
	}
	c.JSON(status, gin.H{"status": state, "checks": checks})
}

// beginSignIn redirects to the identity provider, remembering redirect_url.
func (s *Server) beginSignIn(c *gin.Context) {
	location, err := s.deps.SignIn.Begin(c.Request.Context(), c.Query("redirect_url"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Redirect(http.StatusFound, location)
}

// completeSignIn handles the provider callback and returns the tokens with
// the path the user started from.
func (s *Server) completeSignIn(c *gin.Context) {
	if providerErr := c.Query("error"); providerErr != "" {
		s.fail(c, apperrors.NewUnauthenticatedError(providerErr+": "+c.Query("error_description")))
		return
	}
	result, err := s.deps.SignIn.Complete(c.Request.Context(), c.Query("state"), c.Query("code"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
