package applications

import (
	"bytes"
	"fmt"

	apperrors "job-board/internal/common/errors"

	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"
)

const pdfMIME = "application/pdf"

// CheckResume accepts only a readable PDF with at least one page.
func CheckResume(data []byte, maxBytes int64) (err error) {
	// The pdf parser panics on some malformed input.
	defer func() {
		if r := recover(); r != nil {
			err = apperrors.NewInvalidFileError(fmt.Sprintf("resume is not a readable PDF: %v", r))
		}
	}()

	if len(data) == 0 {
		return apperrors.NewInvalidFileError("resume is empty")
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return apperrors.NewInvalidFileError(fmt.Sprintf("resume exceeds %d bytes", maxBytes))
	}
	if mt := mimetype.Detect(data); !mt.Is(pdfMIME) {
		return apperrors.NewInvalidFileError(fmt.Sprintf("resume must be a PDF, got %s", mt.String()))
	}

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return apperrors.NewInvalidFileError(fmt.Sprintf("resume is not a readable PDF: %v", err))
	}
	if r.NumPage() < 1 {
		return apperrors.NewInvalidFileError("resume has no pages")
	}
	return nil
}

// resumeKey is resume/<userID>/<unixMillis>.pdf.
func resumeKey(userID string, unixMillis int64) string {
	return fmt.Sprintf("resume/%s/%d.pdf", userID, unixMillis)
}
