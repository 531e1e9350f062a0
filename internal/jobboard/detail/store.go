// Package detail loads a single job and renders it for either its owner or
// a seeker.
package detail

import (
	"context"
	"database/sql"
	"errors"

	apperrors "job-board/internal/common/errors"
	"job-board/internal/models"
)

// Store holds the per-job read queries shared by the detail views.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// GetJobWithCounts returns the job with applicant and saved counts.
func (s *Store) GetJobWithCounts(ctx context.Context, jobID int64) (*models.JobWithCounts, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+models.JobColumnsAs("p")+`,
			(SELECT COUNT(*) FROM applications a WHERE a.job_id = p.id),
			(SELECT COUNT(*) FROM savedjobs s WHERE s.job_id = p.id)
		FROM postjob p
		WHERE p.id = $1`, jobID)

	var out models.JobWithCounts
	job, err := models.ScanJob(row, &out.ApplicantCount, &out.SavedCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewJobNotFoundError(jobID)
	}
	if err != nil {
		return nil, apperrors.NewDatabaseQueryFailedError("get job", err)
	}
	out.Job = *job
	return &out, nil
}

// GetSettings falls back to DefaultSettings when the job has no settings row.
func (s *Store) GetSettings(ctx context.Context, jobID int64) (models.Settings, error) {
	settings := models.DefaultSettings(jobID)
	err := s.db.QueryRowContext(ctx,
		`SELECT job_id, auto_close FROM settings WHERE job_id = $1`, jobID).
		Scan(&settings.JobID, &settings.AutoClose)
	if errors.Is(err, sql.ErrNoRows) {
		return models.DefaultSettings(jobID), nil
	}
	if err != nil {
		return settings, apperrors.NewDatabaseQueryFailedError("get settings", err)
	}
	return settings, nil
}

func (s *Store) CountInProgress(ctx context.Context, jobID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM applications WHERE job_id = $1 AND status = $2`,
		jobID, models.ApplicationInProgress).Scan(&n)
	if err != nil {
		return 0, apperrors.NewDatabaseQueryFailedError("count in-progress applications", err)
	}
	return n, nil
}

// FindApplication returns the user's application for the job, or nil.
func (s *Store) FindApplication(ctx context.Context, jobID int64, userID string) (*models.Application, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+models.ApplicationColumns+` FROM applications WHERE job_id = $1 AND user_id = $2`,
		jobID, userID)
	app, err := models.ScanApplication(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewDatabaseQueryFailedError("find application", err)
	}
	return app, nil
}

func (s *Store) IsSaved(ctx context.Context, jobID int64, userID string) (bool, error) {
	var saved bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM savedjobs WHERE job_id = $1 AND user_id = $2)`,
		jobID, userID).Scan(&saved)
	if err != nil {
		return false, apperrors.NewDatabaseQueryFailedError("check saved", err)
	}
	return saved, nil
}
