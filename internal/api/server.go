// Package api is the HTTP surface of the job board.
package api

import (
	"context"
	"time"

	"job-board/internal/common/auth"
	apperrors "job-board/internal/common/errors"
	"job-board/internal/common/logger"
	"job-board/internal/common/observability"
	"job-board/internal/jobboard/applications"
	"job-board/internal/jobboard/companies"
	"job-board/internal/jobboard/detail"
	"job-board/internal/jobboard/feed"
	"job-board/internal/jobboard/listing"
	"job-board/internal/jobboard/postings"
	"job-board/internal/jobboard/savedjobs"
	"job-board/internal/models"

	"github.com/gin-gonic/gin"
)

type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (*models.Identity, error)
}

type SignIn interface {
	Begin(ctx context.Context, returnPath string) (string, error)
	Complete(ctx context.Context, state, code string) (*auth.SignInResult, error)
}

type Listings interface {
	ListOpen(ctx context.Context, viewerID string) ([]models.Job, error)
	FilterOptions(ctx context.Context) (*listing.FilterOptions, error)
}

type DetailLoader interface {
	Load(ctx context.Context, jobID int64, viewer *models.Identity) (*detail.View, error)
}

type Postings interface {
	Create(ctx context.Context, identity *models.Identity, in postings.JobInput) (*models.Job, error)
	Update(ctx context.Context, identity *models.Identity, jobID int64, in postings.JobInput) (*models.Job, error)
	Delete(ctx context.Context, identity *models.Identity, jobID int64) error
	SetStatus(ctx context.Context, identity *models.Identity, jobID int64, status models.JobStatus) (*models.Job, error)
	SetAutoClose(ctx context.Context, identity *models.Identity, jobID int64, autoClose bool) (models.Settings, error)
	ListPosted(ctx context.Context, identity *models.Identity) ([]models.JobWithCounts, error)
}

type Applications interface {
	Apply(ctx context.Context, identity *models.Identity, jobID int64, in applications.ApplyInput, resume applications.Resume) (*models.Application, error)
	Transition(ctx context.Context, identity *models.Identity, applicationID int64, to, expected models.ApplicationStatus) (*applications.TransitionResult, error)
	Withdraw(ctx context.Context, identity *models.Identity, jobID int64, reason string) (*models.Application, error)
	Mine(ctx context.Context, identity *models.Identity, jobID int64) (*models.Application, error)
	ListApplicants(ctx context.Context, identity *models.Identity, jobID int64) ([]applications.Applicant, error)
	ListApplied(ctx context.Context, identity *models.Identity) ([]applications.AppliedJob, error)
}

type SavedJobs interface {
	Toggle(ctx context.Context, identity *models.Identity, jobID int64) (bool, error)
	ListSaved(ctx context.Context, identity *models.Identity) ([]savedjobs.SavedJob, error)
	SavedIDs(ctx context.Context, identity *models.Identity) ([]int64, error)
}

type Companies interface {
	Add(ctx context.Context, identity *models.Identity, name string, logo []byte) (*models.Company, error)
	List(ctx context.Context) ([]companies.Option, error)
}

type Searcher interface {
	Search(ctx context.Context, viewerID, q string, limit int) ([]models.Job, error)
}

// ReadinessCheck reports whether a dependency can serve requests.
type ReadinessCheck func(ctx context.Context) error

// Deps are the collaborators behind the routes. Search may be nil.
type Deps struct {
	Verifier     TokenVerifier
	SignIn       SignIn
	Listings     Listings
	Detail       DetailLoader
	Postings     Postings
	Applications Applications
	SavedJobs    SavedJobs
	Companies    Companies
	Search       Searcher
	Hub          *feed.Hub
	Readiness    map[string]ReadinessCheck
	Obs          *observability.Observability
}

type Config struct {
	AllowedOrigins  []string
	SignInPath      string
	MaxUploadBytes  int64
	RequestTimeout  time.Duration
	StreamKeepAlive time.Duration
}

type Server struct {
	deps         Deps
	cfg          Config
	logger       logger.Logger
	errorHandler *apperrors.ErrorHandler
}

func NewServer(deps Deps, cfg Config, log logger.Logger) *Server {
	if cfg.SignInPath == "" {
		cfg.SignInPath = "/auth/sign-in"
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 10 << 20
	}
	if cfg.StreamKeepAlive <= 0 {
		cfg.StreamKeepAlive = 25 * time.Second
	}
	log = log.WithFields(map[string]interface{}{"component": "api"})
	return &Server{
		deps:         deps,
		cfg:          cfg,
		logger:       log,
		errorHandler: apperrors.NewErrorHandler(log),
	}
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestID(), s.accessLog(), s.instrument())
	r.Use(corsMiddleware(s.cfg.AllowedOrigins))

	r.GET("/health", s.health)
	r.GET("/ready", s.ready)
	r.GET("/metrics", metricsHandler())

	r.GET("/auth/sign-in", s.beginSignIn)
	r.GET("/auth/callback", s.completeSignIn)

	optional := s.authenticate(false)
	required := s.authenticate(true)

	// the stream is long-lived and stays outside the request timeout
	r.GET("/api/v1/jobs/stream", optional, s.streamJobs)

	v1 := r.Group("/api/v1", requestTimeout(s.cfg.RequestTimeout))
	{
		v1.GET("/jobs", optional, s.listJobs)
		v1.GET("/jobs/filters", s.filterOptions)
		v1.GET("/jobs/search", optional, s.searchJobs)
		v1.GET("/jobs/:id", optional, s.jobDetail)

		v1.POST("/jobs", required, s.createJob)
		v1.PUT("/jobs/:id", required, s.updateJob)
		v1.DELETE("/jobs/:id", required, s.deleteJob)
		v1.PATCH("/jobs/:id/status", required, s.setJobStatus)
		v1.PUT("/jobs/:id/settings", required, s.setJobSettings)
		v1.GET("/jobs/:id/applicants", required, s.listApplicants)

		v1.POST("/jobs/:id/applications", required, s.apply)
		v1.GET("/jobs/:id/application", required, s.myApplication)
		v1.POST("/jobs/:id/application/withdraw", required, s.withdraw)
		v1.POST("/jobs/:id/save", required, s.toggleSaved)

		v1.PATCH("/applications/:id/status", required, s.transition)

		v1.GET("/me/jobs", required, s.myPostedJobs)
		v1.GET("/me/applications", required, s.myApplications)
		v1.GET("/me/saved", required, s.mySavedJobs)

		v1.GET("/companies", s.listCompanies)
		v1.POST("/companies", required, s.addCompany)
	}
	return r
}

func (s *Server) fail(c *gin.Context, err error) {
	s.errorHandler.HandleRequestError(c, err)
}
