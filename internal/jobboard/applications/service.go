// Package applications runs the application lifecycle: apply, poster
// transitions, withdraw, and the applicant and poster read paths.
package applications

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"job-board/internal/common/database"
	apperrors "job-board/internal/common/errors"
	"job-board/internal/common/logger"
	"job-board/internal/common/metrics"
	"job-board/internal/common/validation"
	"job-board/internal/jobboard/lifecycle"
	"job-board/internal/jobboard/postings"
	"job-board/internal/models"

	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// ObjectStore is the subset of the storage client used for resumes.
type ObjectStore interface {
	Upload(ctx context.Context, bucket, key, contentType string, body io.Reader, size int64) error
	SignedURL(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
}

// Notifier receives committed application changes. It must not block on failure.
type Notifier interface {
	Notify(ctx context.Context, evt models.ApplicationEvent)
}

type Service struct {
	db       *sql.DB
	store    ObjectStore
	notifier Notifier
	cfg      *Config
	logger   logger.Logger
	now      func() time.Time
}

// NewService wires the application service; notifier may be nil.
func NewService(cfg *Config, db *sql.DB, store ObjectStore, notifier Notifier, log logger.Logger) *Service {
	return &Service{
		db:       db,
		store:    store,
		notifier: notifier,
		cfg:      cfg,
		logger:   log.WithFields(map[string]interface{}{"component": "applications"}),
		now:      time.Now,
	}
}

// Apply creates the caller's application. The resume is stored before the
// row is written, so a failed upload leaves nothing behind.
func (s *Service) Apply(ctx context.Context, identity *models.Identity, jobID int64, in ApplyInput, resume Resume) (*models.Application, error) {
	if identity == nil {
		return nil, apperrors.NewUnauthenticatedError("applying requires sign-in")
	}
	if err := validation.ValidateApplication(in); err != nil {
		return nil, err
	}

	job, err := s.loadJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.UserID == identity.ID {
		return nil, apperrors.NewForbiddenError("cannot apply to your own job")
	}
	if !lifecycle.AcceptsApplications(job.Status) {
		return nil, apperrors.NewNotAcceptingApplicationsError(jobID, string(job.Status))
	}
	if err := matchAnswers(job.ScreeningQuestions, in.Answers); err != nil {
		return nil, err
	}

	var exists bool
	err = s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM applications WHERE job_id = $1 AND user_id = $2)`,
		jobID, identity.ID).Scan(&exists)
	if err != nil {
		return nil, apperrors.NewDatabaseQueryFailedError("duplicate check", err)
	}
	if exists {
		return nil, apperrors.NewDuplicateApplicationError(jobID, identity.ID)
	}

	if err := CheckResume(resume.Data, s.cfg.MaxResumeBytes); err != nil {
		return nil, err
	}
	key := resumeKey(identity.ID, s.now().UnixMilli())
	if err := s.store.Upload(ctx, s.cfg.ResumeBucket, key, pdfMIME, bytes.NewReader(resume.Data), int64(len(resume.Data))); err != nil {
		return nil, apperrors.NewStorageUploadFailedError(s.cfg.ResumeBucket, err)
	}

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO applications (job_id, user_id, email, phone, resume_path, answers, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+models.ApplicationColumns,
		jobID, identity.ID, in.Email, in.Phone, key, in.Answers, models.ApplicationInProgress)
	app, err := models.ScanApplication(row)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return nil, apperrors.NewDuplicateApplicationError(jobID, identity.ID)
		}
		return nil, apperrors.NewDatabaseInsertFailedError(err)
	}

	s.logger.Info("application created", map[string]interface{}{
		"applicationId": app.ID,
		"jobId":         jobID,
		"userId":        identity.ID,
	})
	s.notify(ctx, models.ApplicationEvent{
		Type:          models.EventApplicationCreated,
		ApplicationID: app.ID,
		JobID:         jobID,
		JobTitle:      job.Title,
		Company:       job.Company,
		ApplicantID:   identity.ID,
		ApplicantMail: app.Email,
		PosterID:      job.UserID,
		To:            app.Status,
	})
	return app, nil
}

var errNoMatch = errors.New("conditional update matched no row")

// Transition is the poster's status change. The write only applies when the
// application is still in expected, so a stale decision fails with
// STATUS_CONFLICT instead of overwriting a newer one.
func (s *Service) Transition(ctx context.Context, identity *models.Identity, applicationID int64, to, expected models.ApplicationStatus) (*TransitionResult, error) {
	if identity == nil {
		return nil, apperrors.NewUnauthenticatedError("changing an application requires sign-in")
	}
	if expected == "" {
		expected = models.ApplicationInProgress
	}
	if err := lifecycle.CanPosterTransition(expected, to); err != nil {
		return nil, apperrors.NewInvalidStatusTransitionError(string(expected), string(to)).
			WithMetadata("reason", err.Error())
	}

	if to == expected {
		app, err := s.loadForPoster(ctx, identity, applicationID)
		if err != nil {
			return nil, err
		}
		if app.Status != expected {
			return nil, apperrors.NewStatusConflictError(string(expected)).WithMetadata("current", app.Status)
		}
		return &TransitionResult{Application: app}, nil
	}

	var (
		app      *models.Application
		job      models.Job
		closed   bool
		settings = models.DefaultSettings(0)
	)
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			UPDATE applications a SET status = $3, updated_at = NOW()
			FROM postjob p
			WHERE a.id = $1 AND a.status = $2 AND p.id = a.job_id AND p.user_id = $4
			RETURNING `+models.ApplicationColumnsAs("a")+`, p.title, p.company, p.openings`,
			applicationID, expected, to, identity.ID)
		var err error
		app, err = models.ScanApplication(row, &job.Title, &job.Company, &job.Openings)
		if errors.Is(err, sql.ErrNoRows) {
			return errNoMatch
		}
		if err != nil {
			return apperrors.NewDatabaseQueryFailedError("transition application", err)
		}

		if to != models.ApplicationAccepted {
			return nil
		}

		var accepted int
		err = tx.QueryRowContext(ctx, `
			SELECT COALESCE((SELECT auto_close FROM settings WHERE job_id = $1), FALSE),
				(SELECT COUNT(*) FROM applications WHERE job_id = $1 AND status = $2)`,
			app.JobID, models.ApplicationAccepted).Scan(&settings.AutoClose, &accepted)
		if err != nil {
			return apperrors.NewDatabaseQueryFailedError("auto-close check", err)
		}
		if !lifecycle.ShouldAutoClose(settings, job.Openings, accepted) {
			return nil
		}
		if _, err := postings.UpdateStatus(ctx, tx, app.JobID, identity.ID, models.JobStatusClosed); err != nil {
			return apperrors.NewDatabaseQueryFailedError("auto-close job", err)
		}
		closed = true
		return nil
	})
	if errors.Is(err, errNoMatch) {
		return nil, s.explainTransitionMiss(ctx, identity, applicationID, expected)
	}
	if err != nil {
		return nil, err
	}

	metrics.ApplicationTransitions.WithLabelValues(string(expected), string(to)).Inc()
	s.logger.Info("application status changed", map[string]interface{}{
		"applicationId": applicationID,
		"jobId":         app.JobID,
		"from":          string(expected),
		"to":            string(to),
		"jobClosed":     closed,
	})
	s.notify(ctx, models.ApplicationEvent{
		Type:          models.EventApplicationStatusChanged,
		ApplicationID: app.ID,
		JobID:         app.JobID,
		JobTitle:      job.Title,
		Company:       job.Company,
		ApplicantID:   app.UserID,
		ApplicantMail: app.Email,
		PosterID:      identity.ID,
		From:          expected,
		To:            to,
	})
	return &TransitionResult{Application: app, JobClosed: closed}, nil
}

// Withdraw is the applicant's own move to withdrawn, recording reason.
func (s *Service) Withdraw(ctx context.Context, identity *models.Identity, jobID int64, reason string) (*models.Application, error) {
	if identity == nil {
		return nil, apperrors.NewUnauthenticatedError("withdrawing requires sign-in")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperrors.NewValidationFailedError("a withdraw reason is required").
			WithMetadata("fields", []validation.ValidationError{{Field: "reason", Message: "must not be blank"}})
	}

	var job models.Job
	row := s.db.QueryRowContext(ctx, `
		UPDATE applications a SET status = $4, withdraw_reason = $3, updated_at = NOW()
		FROM postjob p
		WHERE a.job_id = $1 AND a.user_id = $2 AND a.status = $5 AND p.id = a.job_id
		RETURNING `+models.ApplicationColumnsAs("a")+`, p.user_id, p.title, p.company`,
		jobID, identity.ID, reason, models.ApplicationWithdrawn, models.ApplicationInProgress)
	app, err := models.ScanApplication(row, &job.UserID, &job.Title, &job.Company)
	if errors.Is(err, sql.ErrNoRows) {
		current, err := s.Mine(ctx, identity, jobID)
		if err != nil {
			return nil, err
		}
		if current == nil {
			return nil, apperrors.NewApplicationNotFoundError(fmt.Sprintf("no application for job %d", jobID))
		}
		return nil, apperrors.NewInvalidStatusTransitionError(string(current.Status), string(models.ApplicationWithdrawn))
	}
	if err != nil {
		return nil, apperrors.NewDatabaseQueryFailedError("withdraw application", err)
	}

	metrics.ApplicationTransitions.WithLabelValues(string(models.ApplicationInProgress), string(models.ApplicationWithdrawn)).Inc()
	s.logger.Info("application withdrawn", map[string]interface{}{
		"applicationId": app.ID,
		"jobId":         jobID,
		"userId":        identity.ID,
	})
	s.notify(ctx, models.ApplicationEvent{
		Type:          models.EventApplicationWithdrawn,
		ApplicationID: app.ID,
		JobID:         jobID,
		JobTitle:      job.Title,
		Company:       job.Company,
		ApplicantID:   identity.ID,
		ApplicantMail: app.Email,
		PosterID:      job.UserID,
		From:          models.ApplicationInProgress,
		To:            models.ApplicationWithdrawn,
		Reason:        reason,
	})
	return app, nil
}

// Mine returns the caller's application for the job, or nil.
func (s *Service) Mine(ctx context.Context, identity *models.Identity, jobID int64) (*models.Application, error) {
	if identity == nil {
		return nil, apperrors.NewUnauthenticatedError("reading an application requires sign-in")
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+models.ApplicationColumns+` FROM applications WHERE job_id = $1 AND user_id = $2`,
		jobID, identity.ID)
	app, err := models.ScanApplication(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewDatabaseQueryFailedError("get application", err)
	}
	return app, nil
}

// ListApplicants is the owner's view of every application to the job, each
// with a short-lived resume link.
func (s *Service) ListApplicants(ctx context.Context, identity *models.Identity, jobID int64) ([]Applicant, error) {
	if identity == nil {
		return nil, apperrors.NewUnauthenticatedError("listing applicants requires sign-in")
	}
	job, err := s.loadJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.UserID != identity.ID {
		return nil, apperrors.NewForbiddenError("not the job owner")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+models.ApplicationColumns+` FROM applications WHERE job_id = $1 ORDER BY created_at DESC`, jobID)
	if err != nil {
		return nil, apperrors.NewDatabaseQueryFailedError("list applicants", err)
	}
	defer rows.Close()

	out := []Applicant{}
	for rows.Next() {
		app, err := models.ScanApplication(rows)
		if err != nil {
			return nil, apperrors.NewDatabaseQueryFailedError("scan applicant", err)
		}
		out = append(out, Applicant{
			Application:          *app,
			StatusOptions:        lifecycle.PosterStatusOptions(app.Status),
			RequiresConfirmation: confirmTargets(app.Status),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewDatabaseQueryFailedError("list applicants", err)
	}
	rows.Close()

	for i := range out {
		url, err := s.store.SignedURL(ctx, s.cfg.ResumeBucket, out[i].ResumePath, s.cfg.SignedURLTTL)
		if err != nil {
			s.logger.Warn("resume signing failed", map[string]interface{}{
				"applicationId": out[i].ID,
				"error":         apperrors.NewStorageSignFailedError(out[i].ResumePath, err),
			})
			continue
		}
		out[i].ResumeURL = url
	}
	return out, nil
}

// ListApplied is the caller's applications with job summaries, newest first.
func (s *Service) ListApplied(ctx context.Context, identity *models.Identity) ([]AppliedJob, error) {
	if identity == nil {
		return nil, apperrors.NewUnauthenticatedError("listing applications requires sign-in")
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+models.ApplicationColumnsAs("a")+`, p.title, p.company, p.location, p.status
		FROM applications a
		JOIN postjob p ON p.id = a.job_id
		WHERE a.user_id = $1
		ORDER BY a.created_at DESC`, identity.ID)
	if err != nil {
		return nil, apperrors.NewDatabaseQueryFailedError("list applied jobs", err)
	}
	defer rows.Close()

	out := []AppliedJob{}
	for rows.Next() {
		var aj AppliedJob
		app, err := models.ScanApplication(rows, &aj.JobTitle, &aj.Company, &aj.Location, &aj.JobStatus)
		if err != nil {
			return nil, apperrors.NewDatabaseQueryFailedError("scan applied job", err)
		}
		aj.Application = *app
		out = append(out, aj)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewDatabaseQueryFailedError("list applied jobs", err)
	}
	return out, nil
}

func (s *Service) loadJob(ctx context.Context, jobID int64) (*models.Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+models.JobColumns+` FROM postjob WHERE id = $1`, jobID)
	job, err := models.ScanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewJobNotFoundError(jobID)
	}
	if err != nil {
		return nil, apperrors.NewDatabaseQueryFailedError("get job", err)
	}
	return job, nil
}

// loadForPoster returns the application only when the caller owns its job.
func (s *Service) loadForPoster(ctx context.Context, identity *models.Identity, applicationID int64) (*models.Application, error) {
	var owner string
	row := s.db.QueryRowContext(ctx, `
		SELECT `+models.ApplicationColumnsAs("a")+`, p.user_id
		FROM applications a
		JOIN postjob p ON p.id = a.job_id
		WHERE a.id = $1`, applicationID)
	app, err := models.ScanApplication(row, &owner)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewApplicationNotFoundError(fmt.Sprintf("application %d not found", applicationID))
	}
	if err != nil {
		return nil, apperrors.NewDatabaseQueryFailedError("get application", err)
	}
	if owner != identity.ID {
		return nil, apperrors.NewForbiddenError("not the job owner")
	}
	return app, nil
}

func (s *Service) explainTransitionMiss(ctx context.Context, identity *models.Identity, applicationID int64, expected models.ApplicationStatus) error {
	app, err := s.loadForPoster(ctx, identity, applicationID)
	if err != nil {
		return err
	}
	return apperrors.NewStatusConflictError(string(expected)).WithMetadata("current", app.Status)
}

func (s *Service) notify(ctx context.Context, evt models.ApplicationEvent) {
	if s.notifier == nil {
		return
	}
	evt.OccurredAt = s.now().UTC()
	s.notifier.Notify(ctx, evt)
}

// matchAnswers requires one answer per screening question, in order.
func matchAnswers(questions models.ScreeningQuestions, answers models.Answers) error {
	if len(answers) != len(questions) {
		return apperrors.NewValidationFailedError(
			fmt.Sprintf("expected %d answers, got %d", len(questions), len(answers))).
			WithMetadata("fields", []validation.ValidationError{{Field: "answers", Message: "must answer every screening question"}})
	}
	for i, q := range questions {
		if answers[i].Question != q.Question {
			field := fmt.Sprintf("answers.%d.question", i)
			return apperrors.NewValidationFailedError(fmt.Sprintf("answer %d does not match question %q", i, q.Question)).
				WithMetadata("fields", []validation.ValidationError{{Field: field, Message: "does not match the screening question"}})
		}
	}
	return nil
}

func confirmTargets(from models.ApplicationStatus) []models.ApplicationStatus {
	out := []models.ApplicationStatus{}
	for _, to := range lifecycle.PosterStatusOptions(from) {
		if lifecycle.RequiresConfirmation(to) {
			out = append(out, to)
		}
	}
	return out
}
