// internal/api/account.go
package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

func (s *Server) toggleSaved(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	saved, err := s.deps.SavedJobs.Toggle(c.Request.Context(), identityFrom(c), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"jobId": id, "saved": saved})
}

func (s *Server) myPostedJobs(c *gin.Context) {
	jobs, err := s.deps.Postings.ListPosted(c.Request.Context(), identityFrom(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"jobs": jobs})
}

func (s *Server) myApplications(c *gin.Context) {
	applied, err := s.deps.Applications.ListApplied(c.Request.Context(), identityFrom(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"applications": applied})
}

func (s *Server) mySavedJobs(c *gin.Context) {
	saved, err := s.deps.SavedJobs.ListSaved(c.Request.Context(), identityFrom(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"saved": saved})
}

func (s *Server) listCompanies(c *gin.Context) {
	options, err := s.deps.Companies.List(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"companies": options})
}

func (s *Server) addCompany(c *gin.Context) {
	if err := s.parseMultipart(c); err != nil {
		s.fail(c, err)
		return
	}

	name := strings.TrimSpace(c.PostForm("companyname"))
	_, logo, err := s.readUpload(c, "companylogo")
	if err != nil {
		s.fail(c, err)
		return
	}

	company, err := s.deps.Companies.Add(c.Request.Context(), identityFrom(c), name, logo)
	if err != nil {
		s.fail(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, company)
}
