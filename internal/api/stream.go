// internal/api/stream.go
package api

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "job-board/internal/common/errors"
	"job-board/internal/jobboard/feed"
	"job-board/internal/jobboard/listing"
	"job-board/internal/models"

	"github.com/gin-gonic/gin"
)

// streamJobs serves the live listing as server-sent events: one snapshot
// event, then insert, update and delete events, and a new snapshot after
// every feed resync.
func (s *Server) streamJobs(c *gin.Context) {
	if s.deps.Hub == nil {
		s.fail(c, apperrors.NewExternalServiceError("feed", errors.New("change feed is not running")))
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	viewerID := models.IdentityID(identityFrom(c))
	filter := listing.FilterStateFromQuery(c.Request.URL.Query())
	view, err := listing.OpenLiveView(ctx, s.deps.Hub, s.deps.Listings, viewerID, filter)
	if err != nil {
		s.fail(c, err)
		return
	}
	defer view.Close()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	c.SSEvent(eventName(listing.OpSnapshot), view.Snapshot())
	c.Writer.Flush()

	deltas := make(chan listing.Delta)
	failed := make(chan error, 1)
	go func() {
		for {
			d, err := view.Next(ctx)
			if err != nil {
				failed <- err
				return
			}
			select {
			case deltas <- d:
			case <-ctx.Done():
				return
			}
		}
	}()

	keepAlive := time.NewTicker(s.cfg.StreamKeepAlive)
	defer keepAlive.Stop()

	fields := map[string]interface{}{"requestId": c.GetString(requestIDKey), "viewerId": viewerID}
	s.logger.Debug("job stream opened", fields)

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("job stream closed by client", fields)
			return
		case err := <-failed:
			if !errors.Is(err, context.Canceled) {
				s.logger.WithError(err).Warn("job stream ended", fields)
			}
			return
		case d := <-deltas:
			c.SSEvent(eventName(d.Op), d)
			c.Writer.Flush()
		case <-keepAlive.C:
			if _, err := fmt.Fprint(c.Writer, ": ping\n\n"); err != nil {
				return
			}
			c.Writer.Flush()
		}
	}
}

func eventName(op feed.Op) string {
	return strings.ToLower(string(op))
}
