// internal/jobboard/search/service.go
package search

import (
	"context"

	"job-board/internal/common/config"
	apperrors "job-board/internal/common/errors"
	"job-board/internal/common/logger"
	"job-board/internal/models"
)

type Service struct {
	index        *Index
	enabled      bool
	defaultLimit int
	maxLimit     int
	logger       logger.Logger
}

// NewService builds the search endpoint's backend; a nil index disables it.
func NewService(index *Index, cfg config.SearchConfig, log logger.Logger) *Service {
	s := &Service{
		index:        index,
		enabled:      cfg.Enabled && index != nil,
		defaultLimit: cfg.DefaultLimit,
		maxLimit:     cfg.MaxLimit,
		logger:       log.WithFields(map[string]interface{}{"component": "search"}),
	}
	if s.defaultLimit <= 0 {
		s.defaultLimit = 20
	}
	if s.maxLimit <= 0 {
		s.maxLimit = 100
	}
	return s
}

func (s *Service) Enabled() bool { return s.enabled }

// Search returns open or paused jobs matching q that viewerID did not post.
func (s *Service) Search(ctx context.Context, viewerID, q string, limit int) ([]models.Job, error) {
	if !s.enabled {
		return nil, apperrors.NewSearchDisabledError()
	}
	if limit <= 0 {
		limit = s.defaultLimit
	}
	if limit > s.maxLimit {
		limit = s.maxLimit
	}

	jobs, err := s.index.search(ctx, buildSearchQuery(q, viewerID, limit))
	if err != nil {
		s.logger.WithError(err).Error("job search failed", map[string]interface{}{"q": q})
		return nil, apperrors.NewSearchQueryFailedError(s.index.Name(), err)
	}
	return jobs, nil
}
