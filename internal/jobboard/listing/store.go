package listing

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	apperrors "job-board/internal/common/errors"
	"job-board/internal/common/logger"
	"job-board/internal/models"

	"github.com/redis/go-redis/v9"
)

const filterOptionsKey = "jobboard:filter-options"

// FilterOptions are the choices offered by the filter panel.
type FilterOptions struct {
	Companies  []string `json:"companies"`
	Locations  []string `json:"locations"`
	JobTypes   []string `json:"jobTypes"`
	Workplaces []string `json:"workplaces"`
}

type Store struct {
	db       *sql.DB
	rdb      *redis.Client
	cacheTTL time.Duration
	logger   logger.Logger
}

// NewStore builds the listing store. rdb may be nil, which disables caching.
func NewStore(db *sql.DB, rdb *redis.Client, cacheTTL time.Duration, log logger.Logger) *Store {
	return &Store{
		db:       db,
		rdb:      rdb,
		cacheTTL: cacheTTL,
		logger:   log.WithFields(map[string]interface{}{"component": "listing"}),
	}
}

// ListOpen returns non-closed jobs, newest first, without the viewer's own postings.
func (s *Store) ListOpen(ctx context.Context, viewerID string) ([]models.Job, error) {
	query := `SELECT ` + models.JobColumns + ` FROM postjob WHERE status <> 'closed'`
	args := []interface{}{}
	if viewerID != "" {
		query += ` AND user_id <> $1`
		args = append(args, viewerID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewDatabaseQueryFailedError("list open jobs", err)
	}
	defer rows.Close()

	jobs := []models.Job{}
	for rows.Next() {
		job, err := models.ScanJob(rows)
		if err != nil {
			return nil, apperrors.NewDatabaseQueryFailedError("scan job", err)
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewDatabaseQueryFailedError("list open jobs", err)
	}
	return jobs, nil
}

// FilterOptions lists distinct companies and locations, served from Redis when cached.
func (s *Store) FilterOptions(ctx context.Context) (*FilterOptions, error) {
	if opts, ok := s.cachedOptions(ctx); ok {
		return opts, nil
	}

	companies, err := s.distinct(ctx, "company")
	if err != nil {
		return nil, err
	}
	locations, err := s.distinct(ctx, "location")
	if err != nil {
		return nil, err
	}

	opts := &FilterOptions{
		Companies:  companies,
		Locations:  locations,
		JobTypes:   models.JobTypes,
		Workplaces: models.Workplaces,
	}
	s.storeOptions(ctx, opts)
	return opts, nil
}

// InvalidateFilterOptions drops the cached options after a posting changes.
func (s *Store) InvalidateFilterOptions(ctx context.Context) {
	if s.rdb == nil {
		return
	}
	if err := s.rdb.Del(ctx, filterOptionsKey).Err(); err != nil {
		s.logger.Warn("filter options invalidation failed", map[string]interface{}{"error": err})
	}
}

// distinct only accepts the fixed column names used above.
func (s *Store) distinct(ctx context.Context, column string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT `+column+` FROM postjob WHERE `+column+` <> '' ORDER BY `+column)
	if err != nil {
		return nil, apperrors.NewDatabaseQueryFailedError("distinct "+column, err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, apperrors.NewDatabaseQueryFailedError("distinct "+column, err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *Store) cachedOptions(ctx context.Context) (*FilterOptions, bool) {
	if s.rdb == nil {
		return nil, false
	}
	raw, err := s.rdb.Get(ctx, filterOptionsKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn("filter options cache read failed", map[string]interface{}{"error": err})
		}
		return nil, false
	}
	var opts FilterOptions
	if err := json.Unmarshal(raw, &opts); err != nil {
		return nil, false
	}
	return &opts, true
}

func (s *Store) storeOptions(ctx context.Context, opts *FilterOptions) {
	if s.rdb == nil || s.cacheTTL <= 0 {
		return
	}
	raw, err := json.Marshal(opts)
	if err != nil {
		return
	}
	if err := s.rdb.Set(ctx, filterOptionsKey, raw, s.cacheTTL).Err(); err != nil {
		s.logger.Warn("filter options cache write failed", map[string]interface{}{"error": err})
	}
}
