// internal/api/middleware.go
package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"job-board/internal/common/auth"
	apperrors "job-board/internal/common/errors"
	"job-board/internal/common/metrics"
	"job-board/internal/models"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
)

const (
	requestIDHeader  = "X-Request-ID"
	returnPathHeader = "X-Return-Path"
	requestIDKey     = "requestId"
	identityKey      = "identity"
)

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"route":      c.FullPath(),
			"status":     c.Writer.Status(),
			"durationMs": time.Since(start).Milliseconds(),
			"requestId":  c.GetString(requestIDKey),
		}
		if identity := identityFrom(c); identity != nil {
			fields["userId"] = identity.ID
		}
		s.logger.Info("request served", fields)
	}
}

// instrument records Prometheus metrics and, when tracing is configured, a
// server span per request.
func (s *Server) instrument() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		if obs := s.deps.Obs; obs != nil {
			ctx, span := obs.StartSpan(c.Request.Context(), c.Request.Method+" "+route,
				attribute.String("http.method", c.Request.Method),
				attribute.String("http.route", route),
				attribute.String("request.id", c.GetString(requestIDKey)),
			)
			defer span.End()
			c.Request = c.Request.WithContext(ctx)
		}

		c.Next()

		status := c.Writer.Status()
		elapsed := time.Since(start)
		metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, route).Observe(elapsed.Seconds())
		if obs := s.deps.Obs; obs != nil {
			obs.RecordRequest(c.Request.Context(), route, status, elapsed)
		}
	}
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.DefaultConfig()
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	cfg.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", requestIDHeader, returnPathHeader}
	cfg.ExposeHeaders = []string{requestIDHeader}
	return cors.New(cfg)
}

func requestTimeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func metricsHandler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

// authenticate resolves the bearer token. With required set, anonymous
// callers get 401 and the sign-in URL that returns them here. Optional
// routes treat a rejected token as anonymous.
func (s *Server) authenticate(required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			if required {
				s.unauthenticated(c, apperrors.NewUnauthenticatedError("sign-in required"))
				return
			}
			c.Next()
			return
		}

		identity, err := s.deps.Verifier.VerifyToken(c.Request.Context(), token)
		if err != nil {
			code := apperrors.CodeOf(err)
			switch {
			case code == apperrors.ErrCodeTokenInvalid && !required:
				s.logger.Debug("ignoring rejected token on optional route", map[string]interface{}{
					"requestId": c.GetString(requestIDKey),
				})
				c.Next()
			case code == apperrors.ErrCodeTokenInvalid || code == apperrors.ErrCodeUnauthenticated:
				s.unauthenticated(c, err)
			default:
				s.fail(c, err)
			}
			return
		}

		c.Set(identityKey, identity)
		c.Next()
	}
}

func (s *Server) unauthenticated(c *gin.Context, err error) {
	stdErr, ok := apperrors.As(err)
	if !ok {
		stdErr = apperrors.NewUnauthenticatedError(err.Error())
	}
	returnPath := c.GetHeader(returnPathHeader)
	if returnPath == "" {
		returnPath = c.Request.URL.RequestURI()
	}
	stdErr.WithMetadata("signInUrl", auth.SignInRedirectURL(s.cfg.SignInPath, returnPath))
	s.fail(c, stdErr)
}

func bearerToken(header string) string {
	const prefix = "bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

func identityFrom(c *gin.Context) *models.Identity {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil
	}
	identity, _ := v.(*models.Identity)
	return identity
}

// pathID parses the :id route parameter.
func pathID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationFailedError("id must be a positive integer").
			WithMetadata("id", c.Param("id"))
	}
	return id, nil
}

func bindJSON(c *gin.Context, dst interface{}) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		return apperrors.NewValidationFailedError("invalid JSON body: " + err.Error())
	}
	return nil
}

func writeJSON(c *gin.Context, status int, body interface{}) {
	if status == http.StatusNoContent {
		c.Status(status)
		return
	}
	c.JSON(status, body)
}
