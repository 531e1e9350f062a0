// internal/api/jobs.go
package api

import (
	"net/http"
	"strconv"

	apperrors "job-board/internal/common/errors"
	"job-board/internal/jobboard/listing"
	"job-board/internal/jobboard/postings"
	"job-board/internal/models"

	"github.com/gin-gonic/gin"
)

type listJobsResponse struct {
	Jobs     []models.Job        `json:"jobs"`
	SavedIDs []int64             `json:"savedIds"`
	Filter   listing.FilterState `json:"filter"`
}

func (s *Server) listJobs(c *gin.Context) {
	ctx := c.Request.Context()
	identity := identityFrom(c)
	viewerID := models.IdentityID(identity)
	filter := listing.FilterStateFromQuery(c.Request.URL.Query())

	jobs, err := s.deps.Listings.ListOpen(ctx, viewerID)
	if err != nil {
		s.fail(c, err)
		return
	}
	saved, err := s.deps.SavedJobs.SavedIDs(ctx, identity)
	if err != nil {
		s.fail(c, err)
		return
	}

	writeJSON(c, http.StatusOK, listJobsResponse{
		Jobs:     listing.Filter(jobs, viewerID, filter),
		SavedIDs: saved,
		Filter:   filter,
	})
}

func (s *Server) filterOptions(c *gin.Context) {
	opts, err := s.deps.Listings.FilterOptions(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	writeJSON(c, http.StatusOK, opts)
}

func (s *Server) searchJobs(c *gin.Context) {
	if s.deps.Search == nil {
		s.fail(c, apperrors.NewSearchDisabledError())
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.fail(c, apperrors.NewValidationFailedError("limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	jobs, err := s.deps.Search.Search(c.Request.Context(), models.IdentityID(identityFrom(c)), c.Query("q"), limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"jobs": jobs})
}

func (s *Server) jobDetail(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	view, err := s.deps.Detail.Load(c.Request.Context(), id, identityFrom(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	writeJSON(c, http.StatusOK, view)
}

func (s *Server) createJob(c *gin.Context) {
	var in postings.JobInput
	if err := bindJSON(c, &in); err != nil {
		s.fail(c, err)
		return
	}
	job, err := s.deps.Postings.Create(c.Request.Context(), identityFrom(c), in)
	if err != nil {
		s.fail(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, job)
}

func (s *Server) updateJob(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	var in postings.JobInput
	if err := bindJSON(c, &in); err != nil {
		s.fail(c, err)
		return
	}
	job, err := s.deps.Postings.Update(c.Request.Context(), identityFrom(c), id, in)
	if err != nil {
		s.fail(c, err)
		return
	}
	writeJSON(c, http.StatusOK, job)
}

func (s *Server) deleteJob(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	if err := s.deps.Postings.Delete(c.Request.Context(), identityFrom(c), id); err != nil {
		s.fail(c, err)
		return
	}
	writeJSON(c, http.StatusNoContent, nil)
}

func (s *Server) setJobStatus(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	var in postings.StatusInput
	if err := bindJSON(c, &in); err != nil {
		s.fail(c, err)
		return
	}
	job, err := s.deps.Postings.SetStatus(c.Request.Context(), identityFrom(c), id, in.Status)
	if err != nil {
		s.fail(c, err)
		return
	}
	writeJSON(c, http.StatusOK, job)
}

func (s *Server) setJobSettings(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	var in postings.SettingsInput
	if err := bindJSON(c, &in); err != nil {
		s.fail(c, err)
		return
	}
	settings, err := s.deps.Postings.SetAutoClose(c.Request.Context(), identityFrom(c), id, in.AutoClose)
	if err != nil {
		s.fail(c, err)
		return
	}
	writeJSON(c, http.StatusOK, settings)
}

func (s *Server) listApplicants(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	applicants, err := s.deps.Applications.ListApplicants(c.Request.Context(), identityFrom(c), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"applicants": applicants})
}
