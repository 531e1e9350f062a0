package companies

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	apperrors "job-board/internal/common/errors"
	"job-board/internal/common/logger"
	"job-board/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

var pngLogo = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 32)...)

type fakeStore struct {
	keys        []string
	contentType string
	err         error
}

func (f *fakeStore) Upload(_ context.Context, bucket, key, contentType string, body io.Reader, size int64) error {
	if f.err != nil {
		return f.err
	}
	_, _ = io.Copy(io.Discard, body)
	f.keys = append(f.keys, bucket+"/"+key)
	f.contentType = contentType
	return nil
}

func (f *fakeStore) PublicURL(bucket, key string) string {
	return "https://cdn.example/" + bucket + "/" + key
}

func setup(t *testing.T) (*Service, sqlmock.Sqlmock, *fakeStore) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	store := &fakeStore{}
	svc := NewService(db, store, "", 1<<20, logger.NewTestLogger(t))
	svc.now = func() time.Time { return time.UnixMilli(1717000000000) }
	return svc, mock, store
}

var poster = &models.Identity{ID: "poster-1"}

// ==========================
// Add Tests
// ==========================

func TestAdd_Success(t *testing.T) {
	svc, mock, store := setup(t)
	mock.ExpectQuery(`INSERT INTO companies`).
		WithArgs("Acme", "https://cdn.example/companylogo/poster-1/1717000000000.png", "poster-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "companyname", "companylogo", "user_id", "created_at"}).
			AddRow(4, "Acme", "https://cdn.example/companylogo/poster-1/1717000000000.png", "poster-1", time.Now()))

	c, err := svc.Add(context.Background(), poster, "  Acme ", pngLogo)

	require.NoError(t, err)
	assert.Equal(t, int64(4), c.ID)
	assert.Equal(t, []string{"companylogo/poster-1/1717000000000.png"}, store.keys)
	assert.Equal(t, "image/png", store.contentType)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdd_Rejects(t *testing.T) {
	tests := []struct {
		name     string
		identity *models.Identity
		company  string
		logo     []byte
		want     apperrors.ErrorCode
	}{
		{"anonymous", nil, "Acme", pngLogo, apperrors.ErrCodeUnauthenticated},
		{"blank name", poster, "   ", pngLogo, apperrors.ErrCodeValidationFailed},
		{"no logo", poster, "Acme", nil, apperrors.ErrCodeInvalidFile},
		{"pdf logo", poster, "Acme", []byte("%PDF-1.4\n%%EOF"), apperrors.ErrCodeInvalidFile},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, mock, store := setup(t)
			_, err := svc.Add(context.Background(), tt.identity, tt.company, tt.logo)
			assert.Equal(t, tt.want, apperrors.CodeOf(err))
			assert.Empty(t, store.keys)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestAdd_UploadFailure(t *testing.T) {
	svc, mock, store := setup(t)
	store.err = errors.New("access denied")

	_, err := svc.Add(context.Background(), poster, "Acme", pngLogo)

	assert.Equal(t, apperrors.ErrCodeStorageUploadFailed, apperrors.CodeOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// List Tests
// ==========================

func TestList(t *testing.T) {
	svc, mock, _ := setup(t)
	mock.ExpectQuery(`SELECT id, companyname, companylogo FROM companies ORDER BY companyname`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "companyname", "companylogo"}).
			AddRow(1, "Acme", "https://cdn.example/a.png").
			AddRow(2, "Globex", "https://cdn.example/g.png"))

	list, err := svc.List(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []Option{
		{ID: 1, CompanyName: "Acme", CompanyLogo: "https://cdn.example/a.png"},
		{ID: 2, CompanyName: "Globex", CompanyLogo: "https://cdn.example/g.png"},
	}, list)
}
