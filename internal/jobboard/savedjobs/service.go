// Package savedjobs is the applicant's save/unsave toggle and saved list.
package savedjobs

import (
	"context"
	"database/sql"
	"errors"

	"job-board/internal/common/database"
	apperrors "job-board/internal/common/errors"
	"job-board/internal/common/logger"
	"job-board/internal/models"

	"github.com/lib/pq"
)

const foreignKeyViolation = "23503"

// SavedJob is a saved entry with the job it points at.
type SavedJob struct {
	models.SavedJob
	Job models.Job `json:"job"`
}

type Service struct {
	db     *sql.DB
	logger logger.Logger
}

func NewService(db *sql.DB, log logger.Logger) *Service {
	return &Service{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "savedjobs"}),
	}
}

// Toggle flips the saved state of jobID for the caller and reports the new
// state. Concurrent toggles serialize on the (user_id, job_id) row.
func (s *Service) Toggle(ctx context.Context, identity *models.Identity, jobID int64) (bool, error) {
	if identity == nil {
		return false, apperrors.NewUnauthenticatedError("saving a job requires sign-in")
	}

	var saved bool
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM savedjobs WHERE user_id = $1 AND job_id = $2`, identity.ID, jobID)
		if err != nil {
			return apperrors.NewDatabaseQueryFailedError("unsave job", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return apperrors.NewDatabaseQueryFailedError("unsave job", err)
		}
		if n > 0 {
			saved = false
			return nil
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO savedjobs (user_id, job_id) VALUES ($1, $2) ON CONFLICT (user_id, job_id) DO NOTHING`,
			identity.ID, jobID)
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == foreignKeyViolation {
			return apperrors.NewJobNotFoundError(jobID)
		}
		if err != nil {
			return apperrors.NewDatabaseInsertFailedError(err)
		}
		saved = true
		return nil
	})
	if err != nil {
		return false, err
	}

	s.logger.Debug("saved job toggled", map[string]interface{}{
		"jobId":  jobID,
		"userId": identity.ID,
		"saved":  saved,
	})
	return saved, nil
}

// ListSaved returns the caller's saved jobs, most recently saved first.
func (s *Service) ListSaved(ctx context.Context, identity *models.Identity) ([]SavedJob, error) {
	if identity == nil {
		return nil, apperrors.NewUnauthenticatedError("listing saved jobs requires sign-in")
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.user_id, s.job_id, s.created_at, `+models.JobColumnsAs("p")+`
		FROM savedjobs s
		JOIN postjob p ON p.id = s.job_id
		WHERE s.user_id = $1
		ORDER BY s.created_at DESC`, identity.ID)
	if err != nil {
		return nil, apperrors.NewDatabaseQueryFailedError("list saved jobs", err)
	}
	defer rows.Close()

	out := []SavedJob{}
	for rows.Next() {
		var sj SavedJob
		dest := []interface{}{&sj.ID, &sj.UserID, &sj.JobID, &sj.CreatedAt}
		job, err := models.ScanJob(prefixed{rows, dest})
		if err != nil {
			return nil, apperrors.NewDatabaseQueryFailedError("scan saved job", err)
		}
		sj.Job = *job
		out = append(out, sj)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewDatabaseQueryFailedError("list saved jobs", err)
	}
	return out, nil
}

// SavedIDs returns the ids of every job the caller saved; empty for anonymous.
func (s *Service) SavedIDs(ctx context.Context, identity *models.Identity) ([]int64, error) {
	ids := []int64{}
	if identity == nil {
		return ids, nil
	}
	rows, err := s.db.QueryContext(ctx, `SELECT job_id FROM savedjobs WHERE user_id = $1`, identity.ID)
	if err != nil {
		return nil, apperrors.NewDatabaseQueryFailedError("list saved ids", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, apperrors.NewDatabaseQueryFailedError("scan saved id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewDatabaseQueryFailedError("list saved ids", err)
	}
	return ids, nil
}

// prefixed scans leading columns into head before the wrapped scanner's own.
type prefixed struct {
	row  models.RowScanner
	head []interface{}
}

func (p prefixed) Scan(dest ...interface{}) error {
	return p.row.Scan(append(append([]interface{}{}, p.head...), dest...)...)
}
