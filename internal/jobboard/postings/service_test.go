package postings

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	apperrors "job-board/internal/common/errors"
	"job-board/internal/common/logger"
	"job-board/internal/common/validation"
	"job-board/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

var jobColumns = []string{"id", "user_id", "title", "company", "location", "jobtype", "workplace",
	"jobdesc", "openings", "screeningquestions", "status", "created_at"}

func createTestInput() JobInput {
	return JobInput{
		Title:     "Backend Engineer",
		Company:   "Acme",
		Location:  "Karnataka",
		JobType:   "Full Time",
		Workplace: "Hybrid",
		JobDesc:   "Own the API",
		Openings:  2,
		ScreeningQuestions: models.ScreeningQuestions{
			{Question: "Years of Go?"},
		},
	}
}

func jobRow(id int64, owner string, status models.JobStatus) *sqlmock.Rows {
	return sqlmock.NewRows(jobColumns).AddRow(id, owner, "Backend Engineer", "Acme", "Karnataka",
		"Full Time", "Hybrid", "Own the API", 2, []byte(`[{"question":"Years of Go?"}]`), string(status), time.Now())
}

type recordingCache struct {
	calls int
}

func (r *recordingCache) InvalidateFilterOptions(context.Context) { r.calls++ }

var poster = &models.Identity{ID: "poster-1"}

func setup(t *testing.T) (*Service, sqlmock.Sqlmock, *recordingCache) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	cache := &recordingCache{}
	return NewService(db, cache, logger.NewTestLogger(t)), mock, cache
}

func expectOwner(mock sqlmock.Sqlmock, jobID int64, owner string) {
	mock.ExpectQuery(`SELECT user_id FROM postjob WHERE id = \$1`).
		WithArgs(jobID).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow(owner))
}

// ==========================
// Create Tests
// ==========================

func TestCreate_Success(t *testing.T) {
	svc, mock, cache := setup(t)
	in := createTestInput()

	mock.ExpectQuery(`INSERT INTO postjob`).
		WithArgs("poster-1", in.Title, in.Company, in.Location, in.JobType, in.Workplace,
			in.JobDesc, in.Openings, sqlmock.AnyArg(), models.JobStatusOpen).
		WillReturnRows(jobRow(1, "poster-1", models.JobStatusOpen))

	job, err := svc.Create(context.Background(), poster, in)

	require.NoError(t, err)
	assert.Equal(t, int64(1), job.ID)
	assert.Equal(t, models.JobStatusOpen, job.Status)
	assert.Equal(t, 1, cache.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_ValidationFailures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*JobInput)
		field  string
	}{
		{"blank title", func(in *JobInput) { in.Title = "   " }, "title"},
		{"zero openings", func(in *JobInput) { in.Openings = 0 }, "openings"},
		{"unknown job type", func(in *JobInput) { in.JobType = "Gig" }, "jobtype"},
		{"unknown workplace", func(in *JobInput) { in.Workplace = "Moon" }, "workplace"},
		{"too many questions", func(in *JobInput) {
			in.ScreeningQuestions = models.ScreeningQuestions{{Question: "a"}, {Question: "b"}, {Question: "c"}, {Question: "d"}}
		}, "screeningquestions"},
		{"blank question", func(in *JobInput) {
			in.ScreeningQuestions = models.ScreeningQuestions{{Question: ""}}
		}, "screeningquestions.0.question"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, mock, _ := setup(t)
			in := createTestInput()
			tt.mutate(&in)

			_, err := svc.Create(context.Background(), poster, in)

			require.Error(t, err)
			assert.Equal(t, apperrors.ErrCodeValidationFailed, apperrors.CodeOf(err))
			fields := []string{}
			for _, fe := range validation.FieldErrors(err) {
				fields = append(fields, fe.Field)
			}
			assert.Contains(t, fields, tt.field)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestCreate_WithoutQuestionsIsValid(t *testing.T) {
	svc, mock, _ := setup(t)
	in := createTestInput()
	in.ScreeningQuestions = nil

	mock.ExpectQuery(`INSERT INTO postjob`).WillReturnRows(jobRow(2, "poster-1", models.JobStatusOpen))

	_, err := svc.Create(context.Background(), poster, in)
	assert.NoError(t, err)
}

func TestCreate_RequiresIdentity(t *testing.T) {
	svc, _, _ := setup(t)
	_, err := svc.Create(context.Background(), nil, createTestInput())
	assert.Equal(t, apperrors.ErrCodeUnauthenticated, apperrors.CodeOf(err))
}

// ==========================
// Update Tests
// ==========================

func TestUpdate_Success(t *testing.T) {
	svc, mock, cache := setup(t)

	mock.ExpectQuery(`UPDATE postjob\s+SET title = \$3.*NOT EXISTS \(SELECT 1 FROM applications WHERE job_id = \$1\)`).
		WithArgs(int64(1), "poster-1", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(jobRow(1, "poster-1", models.JobStatusOpen))

	_, err := svc.Update(context.Background(), poster, 1, createTestInput())
	require.NoError(t, err)
	assert.Equal(t, 1, cache.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdate_Misses(t *testing.T) {
	tests := []struct {
		name  string
		owner string
		found bool
		want  apperrors.ErrorCode
	}{
		{"job has applicants", "poster-1", true, apperrors.ErrCodeNotEditable},
		{"someone else's job", "poster-2", true, apperrors.ErrCodeForbidden},
		{"missing job", "", false, apperrors.ErrCodeJobNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, mock, cache := setup(t)

			mock.ExpectQuery(`UPDATE postjob`).WillReturnError(sql.ErrNoRows)
			if tt.found {
				expectOwner(mock, 1, tt.owner)
			} else {
				mock.ExpectQuery(`SELECT user_id FROM postjob`).WillReturnError(sql.ErrNoRows)
			}

			_, err := svc.Update(context.Background(), poster, 1, createTestInput())
			assert.Equal(t, tt.want, apperrors.CodeOf(err))
			assert.Zero(t, cache.calls)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

// ==========================
// Delete Tests
// ==========================

func TestDelete_Success(t *testing.T) {
	svc, mock, cache := setup(t)

	mock.ExpectExec(`DELETE FROM postjob`).
		WithArgs(int64(3), "poster-1", models.JobStatusClosed, models.ApplicationInProgress).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, svc.Delete(context.Background(), poster, 3))
	assert.Equal(t, 1, cache.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete_NotDeletable(t *testing.T) {
	svc, mock, _ := setup(t)

	mock.ExpectExec(`DELETE FROM postjob`).WillReturnResult(sqlmock.NewResult(0, 0))
	expectOwner(mock, 3, "poster-1")

	err := svc.Delete(context.Background(), poster, 3)
	assert.Equal(t, apperrors.ErrCodeNotDeletable, apperrors.CodeOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete_DatabaseError(t *testing.T) {
	svc, mock, _ := setup(t)
	mock.ExpectExec(`DELETE FROM postjob`).WillReturnError(errors.New("deadlock detected"))

	err := svc.Delete(context.Background(), poster, 3)
	assert.Equal(t, apperrors.ErrCodeDatabaseQueryFailed, apperrors.CodeOf(err))
}

// ==========================
// Status and Settings Tests
// ==========================

func TestSetStatus_AnyValidStatus(t *testing.T) {
	for _, status := range models.JobStatuses {
		t.Run(string(status), func(t *testing.T) {
			svc, mock, _ := setup(t)
			mock.ExpectQuery(`UPDATE postjob SET status = \$3`).
				WithArgs(int64(1), "poster-1", status).
				WillReturnRows(jobRow(1, "poster-1", status))

			job, err := svc.SetStatus(context.Background(), poster, 1, status)
			require.NoError(t, err)
			assert.Equal(t, status, job.Status)
		})
	}
}

func TestSetStatus_RejectsUnknownStatus(t *testing.T) {
	svc, mock, _ := setup(t)
	_, err := svc.SetStatus(context.Background(), poster, 1, "archived")
	assert.Equal(t, apperrors.ErrCodeValidationFailed, apperrors.CodeOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetStatus_NotOwner(t *testing.T) {
	svc, mock, _ := setup(t)
	mock.ExpectQuery(`UPDATE postjob SET status`).WillReturnError(sql.ErrNoRows)
	expectOwner(mock, 1, "poster-2")

	_, err := svc.SetStatus(context.Background(), poster, 1, models.JobStatusPaused)
	assert.Equal(t, apperrors.ErrCodeForbidden, apperrors.CodeOf(err))
}

func TestSetAutoClose_Upserts(t *testing.T) {
	svc, mock, _ := setup(t)
	mock.ExpectQuery(`INSERT INTO settings .* ON CONFLICT \(job_id\) DO UPDATE`).
		WithArgs(int64(1), "poster-1", true).
		WillReturnRows(sqlmock.NewRows([]string{"job_id", "auto_close"}).AddRow(1, true))

	settings, err := svc.SetAutoClose(context.Background(), poster, 1, true)
	require.NoError(t, err)
	assert.Equal(t, models.Settings{JobID: 1, AutoClose: true}, settings)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListPosted(t *testing.T) {
	svc, mock, _ := setup(t)

	cols := append(append([]string{}, jobColumns...), "applicants", "saved")
	mock.ExpectQuery(`FROM postjob p\s+WHERE p.user_id = \$1\s+ORDER BY p.created_at DESC`).
		WithArgs("poster-1").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(1, "poster-1", "A", "Acme", "Karnataka", "Full Time", "Remote", "", 1, []byte(`[]`), "open", time.Now(), 3, 1).
			AddRow(2, "poster-1", "B", "Acme", "Karnataka", "Contract", "Remote", "", 1, []byte(`[]`), "closed", time.Now(), 0, 0))

	jobs, err := svc.ListPosted(context.Background(), poster)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, 3, jobs[0].ApplicantCount)
	assert.Equal(t, 1, jobs[0].SavedCount)
	assert.Equal(t, models.JobStatusClosed, jobs[1].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}
