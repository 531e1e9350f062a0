// Package postings implements the poster side of a job: create, edit,
// delete, status and settings.
package postings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	apperrors "job-board/internal/common/errors"
	"job-board/internal/common/logger"
	"job-board/internal/common/metrics"
	"job-board/internal/common/validation"
	"job-board/internal/jobboard/lifecycle"
	"job-board/internal/models"
)

// CacheInvalidator is told when postings change the company or location sets.
type CacheInvalidator interface {
	InvalidateFilterOptions(ctx context.Context)
}

type Service struct {
	db     *sql.DB
	cache  CacheInvalidator
	logger logger.Logger
}

// NewService builds the postings service; cache may be nil.
func NewService(db *sql.DB, cache CacheInvalidator, log logger.Logger) *Service {
	return &Service{
		db:     db,
		cache:  cache,
		logger: log.WithFields(map[string]interface{}{"component": "postings"}),
	}
}

func (s *Service) Create(ctx context.Context, identity *models.Identity, in JobInput) (*models.Job, error) {
	if identity == nil {
		return nil, apperrors.NewUnauthenticatedError("posting a job requires sign-in")
	}
	if err := validation.ValidateJobPosting(in); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO postjob (user_id, title, company, location, jobtype, workplace, jobdesc, openings, screeningquestions, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+models.JobColumns,
		identity.ID, in.Title, in.Company, in.Location, in.JobType, in.Workplace, in.JobDesc,
		in.Openings, in.ScreeningQuestions, models.JobStatusOpen)

	job, err := models.ScanJob(row)
	if err != nil {
		return nil, apperrors.NewDatabaseInsertFailedError(err)
	}

	s.invalidate(ctx)
	s.logger.Info("job posted", map[string]interface{}{
		"jobId":   job.ID,
		"userId":  identity.ID,
		"company": job.Company,
	})
	return job, nil
}

// Update edits a job. It only succeeds while nobody has applied; the check
// and the write are one statement.
func (s *Service) Update(ctx context.Context, identity *models.Identity, jobID int64, in JobInput) (*models.Job, error) {
	if identity == nil {
		return nil, apperrors.NewUnauthenticatedError("editing a job requires sign-in")
	}
	if err := validation.ValidateJobPosting(in); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		UPDATE postjob
		SET title = $3, company = $4, location = $5, jobtype = $6, workplace = $7,
			jobdesc = $8, openings = $9, screeningquestions = $10
		WHERE id = $1 AND user_id = $2
			AND NOT EXISTS (SELECT 1 FROM applications WHERE job_id = $1)
		RETURNING `+models.JobColumns,
		jobID, identity.ID, in.Title, in.Company, in.Location, in.JobType, in.Workplace,
		in.JobDesc, in.Openings, in.ScreeningQuestions)

	job, err := models.ScanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, s.explainMiss(ctx, identity, jobID, apperrors.NewNotEditableError(jobID))
	}
	if err != nil {
		return nil, apperrors.NewDatabaseQueryFailedError("update job", err)
	}

	s.invalidate(ctx)
	s.logger.Info("job updated", map[string]interface{}{"jobId": jobID, "userId": identity.ID})
	return job, nil
}

// Delete removes a job with no applicants, or a closed job with nobody in progress.
func (s *Service) Delete(ctx context.Context, identity *models.Identity, jobID int64) error {
	if identity == nil {
		return apperrors.NewUnauthenticatedError("deleting a job requires sign-in")
	}

	res, err := s.db.ExecContext(ctx, `
		DELETE FROM postjob
		WHERE id = $1 AND user_id = $2
			AND (
				NOT EXISTS (SELECT 1 FROM applications WHERE job_id = $1)
				OR (status = $3 AND NOT EXISTS (SELECT 1 FROM applications WHERE job_id = $1 AND status = $4))
			)`,
		jobID, identity.ID, models.JobStatusClosed, models.ApplicationInProgress)
	if err != nil {
		return apperrors.NewDatabaseQueryFailedError("delete job", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperrors.NewDatabaseQueryFailedError("delete job", err)
	}
	if n == 0 {
		return s.explainMiss(ctx, identity, jobID, apperrors.NewNotDeletableError(jobID))
	}

	s.invalidate(ctx)
	s.logger.Info("job deleted", map[string]interface{}{"jobId": jobID, "userId": identity.ID})
	return nil
}

// SetStatus moves the job to any valid status.
func (s *Service) SetStatus(ctx context.Context, identity *models.Identity, jobID int64, status models.JobStatus) (*models.Job, error) {
	if identity == nil {
		return nil, apperrors.NewUnauthenticatedError("changing job status requires sign-in")
	}
	if !lifecycle.ValidJobStatus(status) {
		return nil, apperrors.NewValidationFailedError(fmt.Sprintf("unknown job status %q", status))
	}

	job, err := UpdateStatus(ctx, s.db, jobID, identity.ID, status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, s.explainMiss(ctx, identity, jobID, apperrors.NewForbiddenError("not the job owner"))
	}
	if err != nil {
		return nil, apperrors.NewDatabaseQueryFailedError("update job status", err)
	}

	s.logger.Info("job status changed", map[string]interface{}{
		"jobId":  jobID,
		"status": string(status),
	})
	return job, nil
}

// UpdateStatus is the owner-scoped status write shared with auto-close.
func UpdateStatus(ctx context.Context, db queryRower, jobID int64, ownerID string, status models.JobStatus) (*models.Job, error) {
	row := db.QueryRowContext(ctx, `
		UPDATE postjob SET status = $3
		WHERE id = $1 AND user_id = $2
		RETURNING `+models.JobColumns,
		jobID, ownerID, status)
	job, err := models.ScanJob(row)
	if err != nil {
		return nil, err
	}
	metrics.JobStatusChanges.WithLabelValues(string(status)).Inc()
	return job, nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// SetAutoClose upserts the job's settings row.
func (s *Service) SetAutoClose(ctx context.Context, identity *models.Identity, jobID int64, autoClose bool) (models.Settings, error) {
	if identity == nil {
		return models.Settings{}, apperrors.NewUnauthenticatedError("changing settings requires sign-in")
	}

	var settings models.Settings
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO settings (job_id, auto_close)
		SELECT id, $3 FROM postjob WHERE id = $1 AND user_id = $2
		ON CONFLICT (job_id) DO UPDATE SET auto_close = EXCLUDED.auto_close
		RETURNING job_id, auto_close`,
		jobID, identity.ID, autoClose).Scan(&settings.JobID, &settings.AutoClose)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Settings{}, s.explainMiss(ctx, identity, jobID, apperrors.NewForbiddenError("not the job owner"))
	}
	if err != nil {
		return models.Settings{}, apperrors.NewDatabaseQueryFailedError("upsert settings", err)
	}

	s.logger.Info("job settings saved", map[string]interface{}{"jobId": jobID, "autoClose": autoClose})
	return settings, nil
}

// ListPosted is the poster's own jobs with counts, newest first.
func (s *Service) ListPosted(ctx context.Context, identity *models.Identity) ([]models.JobWithCounts, error) {
	if identity == nil {
		return nil, apperrors.NewUnauthenticatedError("listing posted jobs requires sign-in")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+models.JobColumnsAs("p")+`,
			(SELECT COUNT(*) FROM applications a WHERE a.job_id = p.id),
			(SELECT COUNT(*) FROM savedjobs s WHERE s.job_id = p.id)
		FROM postjob p
		WHERE p.user_id = $1
		ORDER BY p.created_at DESC`, identity.ID)
	if err != nil {
		return nil, apperrors.NewDatabaseQueryFailedError("list posted jobs", err)
	}
	defer rows.Close()

	out := []models.JobWithCounts{}
	for rows.Next() {
		var jc models.JobWithCounts
		job, err := models.ScanJob(rows, &jc.ApplicantCount, &jc.SavedCount)
		if err != nil {
			return nil, apperrors.NewDatabaseQueryFailedError("scan posted job", err)
		}
		jc.Job = *job
		out = append(out, jc)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewDatabaseQueryFailedError("list posted jobs", err)
	}
	return out, nil
}

// explainMiss turns a conditional write that matched nothing into the
// specific reason: missing job, foreign job, or the rule in fallback.
func (s *Service) explainMiss(ctx context.Context, identity *models.Identity, jobID int64, fallback error) error {
	var owner string
	err := s.db.QueryRowContext(ctx, `SELECT user_id FROM postjob WHERE id = $1`, jobID).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.NewJobNotFoundError(jobID)
	}
	if err != nil {
		return apperrors.NewDatabaseQueryFailedError("load job owner", err)
	}
	if owner != identity.ID {
		return apperrors.NewForbiddenError("not the job owner")
	}
	return fallback
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache != nil {
		s.cache.InvalidateFilterOptions(ctx)
	}
}
