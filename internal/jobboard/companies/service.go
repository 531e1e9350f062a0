// Package companies manages the company list offered when posting a job.
package companies

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"
	"time"

	apperrors "job-board/internal/common/errors"
	"job-board/internal/common/logger"
	"job-board/internal/common/validation"
	"job-board/internal/models"

	"github.com/gabriel-vasile/mimetype"
)

const DefaultLogoBucket = "companylogo"

// LogoStore is the subset of the storage client used for logos.
type LogoStore interface {
	Upload(ctx context.Context, bucket, key, contentType string, body io.Reader, size int64) error
	PublicURL(bucket, key string) string
}

// Option is one entry of the company selector.
type Option struct {
	ID          int64  `json:"id"`
	CompanyName string `json:"companyname"`
	CompanyLogo string `json:"companylogo"`
}

type Service struct {
	db       *sql.DB
	store    LogoStore
	bucket   string
	maxBytes int64
	logger   logger.Logger
	now      func() time.Time
}

func NewService(db *sql.DB, store LogoStore, bucket string, maxBytes int64, log logger.Logger) *Service {
	if bucket == "" {
		bucket = DefaultLogoBucket
	}
	return &Service{
		db:       db,
		store:    store,
		bucket:   bucket,
		maxBytes: maxBytes,
		logger:   log.WithFields(map[string]interface{}{"component": "companies"}),
		now:      time.Now,
	}
}

// Add uploads the logo and records the company under the caller.
func (s *Service) Add(ctx context.Context, identity *models.Identity, name string, logo []byte) (*models.Company, error) {
	if identity == nil {
		return nil, apperrors.NewUnauthenticatedError("adding a company requires sign-in")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.NewValidationFailedError("company name is required").
			WithMetadata("fields", []validation.ValidationError{{Field: "companyname", Message: "must not be blank"}})
	}

	ext, contentType, err := s.checkLogo(logo)
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("%s/%d%s", identity.ID, s.now().UnixMilli(), ext)
	if err := s.store.Upload(ctx, s.bucket, key, contentType, bytes.NewReader(logo), int64(len(logo))); err != nil {
		return nil, apperrors.NewStorageUploadFailedError(s.bucket, err)
	}

	var c models.Company
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO companies (companyname, companylogo, user_id)
		VALUES ($1, $2, $3)
		RETURNING id, companyname, companylogo, user_id, created_at`,
		name, s.store.PublicURL(s.bucket, key), identity.ID).
		Scan(&c.ID, &c.CompanyName, &c.CompanyLogo, &c.UserID, &c.CreatedAt)
	if err != nil {
		return nil, apperrors.NewDatabaseInsertFailedError(err)
	}

	s.logger.Info("company added", map[string]interface{}{
		"companyId": c.ID,
		"userId":    identity.ID,
	})
	return &c, nil
}

// List returns every company by name.
func (s *Service) List(ctx context.Context) ([]Option, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, companyname, companylogo FROM companies ORDER BY companyname`)
	if err != nil {
		return nil, apperrors.NewDatabaseQueryFailedError("list companies", err)
	}
	defer rows.Close()

	out := []Option{}
	for rows.Next() {
		var o Option
		if err := rows.Scan(&o.ID, &o.CompanyName, &o.CompanyLogo); err != nil {
			return nil, apperrors.NewDatabaseQueryFailedError("scan company", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewDatabaseQueryFailedError("list companies", err)
	}
	return out, nil
}

func (s *Service) checkLogo(logo []byte) (ext, contentType string, err error) {
	if len(logo) == 0 {
		return "", "", apperrors.NewInvalidFileError("logo is empty")
	}
	if s.maxBytes > 0 && int64(len(logo)) > s.maxBytes {
		return "", "", apperrors.NewInvalidFileError(fmt.Sprintf("logo exceeds %d bytes", s.maxBytes))
	}
	mt := mimetype.Detect(logo)
	for m := mt; m != nil; m = m.Parent() {
		if strings.HasPrefix(m.String(), "image/") {
			return mt.Extension(), mt.String(), nil
		}
	}
	return "", "", apperrors.NewInvalidFileError(fmt.Sprintf("logo must be an image, got %s", mt.String()))
}
