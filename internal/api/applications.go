// internal/api/applications.go
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	apperrors "job-board/internal/common/errors"
	"job-board/internal/jobboard/applications"
	"job-board/internal/jobboard/lifecycle"

	"github.com/gin-gonic/gin"
)

// multipartOverhead is the room left for form fields around an upload.
const multipartOverhead = 1 << 20

func (s *Server) apply(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		s.fail(c, err)
		return
	}

	if err := s.parseMultipart(c); err != nil {
		s.fail(c, err)
		return
	}

	in := applications.ApplyInput{
		Email: c.PostForm("email"),
		Phone: c.PostForm("phone"),
	}
	if raw := strings.TrimSpace(c.PostForm("answers")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &in.Answers); err != nil {
			s.fail(c, apperrors.NewValidationFailedError("answers must be a JSON array: "+err.Error()))
			return
		}
	}

	filename, data, err := s.readUpload(c, "resume")
	if err != nil {
		s.fail(c, err)
		return
	}

	app, err := s.deps.Applications.Apply(c.Request.Context(), identityFrom(c), id, in,
		applications.Resume{Filename: filename, Data: data})
	if err != nil {
		s.fail(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, app)
}

// parseMultipart parses the form under a body limit sized for one upload.
func (s *Server) parseMultipart(c *gin.Context) error {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxUploadBytes+multipartOverhead)
	if err := c.Request.ParseMultipartForm(s.cfg.MaxUploadBytes + multipartOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperrors.NewInvalidFileError(fmt.Sprintf("upload exceeds %d bytes", s.cfg.MaxUploadBytes))
		}
		return apperrors.NewValidationFailedError("invalid multipart body: " + err.Error())
	}
	return nil
}

// readUpload reads one multipart file, at most one byte past the upload
// limit so the size check downstream can reject it.
func (s *Server) readUpload(c *gin.Context, field string) (string, []byte, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return "", nil, apperrors.NewValidationFailedError(field + " file is required")
		}
		return "", nil, apperrors.NewValidationFailedError("invalid multipart body: " + err.Error())
	}

	f, err := fh.Open()
	if err != nil {
		return "", nil, apperrors.NewValidationFailedError("unreadable upload: " + err.Error())
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, s.cfg.MaxUploadBytes+1))
	if err != nil {
		return "", nil, apperrors.NewValidationFailedError("unreadable upload: " + err.Error())
	}
	return fh.Filename, data, nil
}

func (s *Server) myApplication(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	app, err := s.deps.Applications.Mine(c.Request.Context(), identityFrom(c), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"application": app})
}

func (s *Server) withdraw(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	var in applications.WithdrawInput
	if err := bindJSON(c, &in); err != nil {
		s.fail(c, err)
		return
	}
	app, err := s.deps.Applications.Withdraw(c.Request.Context(), identityFrom(c), id, in.Reason)
	if err != nil {
		s.fail(c, err)
		return
	}
	writeJSON(c, http.StatusOK, app)
}

// transition applies a poster decision. Accept and reject are final, so the
// client must send confirm=true for them.
func (s *Server) transition(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	var in applications.TransitionInput
	if err := bindJSON(c, &in); err != nil {
		s.fail(c, err)
		return
	}
	if lifecycle.RequiresConfirmation(in.Status) && !in.Confirm {
		s.fail(c, apperrors.NewValidationFailedError(fmt.Sprintf("moving to %s must be confirmed", in.Status)).
			WithMetadata("requiresConfirmation", true))
		return
	}

	result, err := s.deps.Applications.Transition(c.Request.Context(), identityFrom(c), id, in.Status, in.Expected)
	if err != nil {
		s.fail(c, err)
		return
	}
	writeJSON(c, http.StatusOK, result)
}
