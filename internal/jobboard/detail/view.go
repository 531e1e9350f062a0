package detail

import (
	"context"

	"job-board/internal/common/logger"
	"job-board/internal/jobboard/lifecycle"
	"job-board/internal/models"
)

// View is exactly one of Owner or Applicant, selected by Role.
type View struct {
	Role      lifecycle.ViewerRole `json:"role"`
	Owner     *OwnerView           `json:"owner,omitempty"`
	Applicant *ApplicantView       `json:"applicant,omitempty"`
}

type OwnerView struct {
	Job             models.JobWithCounts `json:"job"`
	Settings        models.Settings      `json:"settings"`
	InProgressCount int                  `json:"inProgressCount"`
	Editable        bool                 `json:"editable"`
	Deletable       bool                 `json:"deletable"`
	StatusOptions   []models.JobStatus   `json:"statusOptions"`
}

type ApplicantView struct {
	Job         models.JobWithCounts     `json:"job"`
	Saved       bool                     `json:"saved"`
	Application *models.Application      `json:"application,omitempty"`
	State       lifecycle.ApplicantState `json:"state"`
}

type Service struct {
	store  *Store
	logger logger.Logger
}

func NewService(store *Store, log logger.Logger) *Service {
	return &Service{
		store:  store,
		logger: log.WithFields(map[string]interface{}{"component": "detail"}),
	}
}

// Load resolves the viewer role once and renders the matching view.
func (s *Service) Load(ctx context.Context, jobID int64, viewer *models.Identity) (*View, error) {
	job, err := s.store.GetJobWithCounts(ctx, jobID)
	if err != nil {
		return nil, err
	}

	role := lifecycle.ResolveViewerRole(models.IdentityID(viewer), job.UserID)
	switch role {
	case lifecycle.RoleOwner:
		owner, err := s.ownerView(ctx, job)
		if err != nil {
			return nil, err
		}
		return &View{Role: role, Owner: owner}, nil
	default:
		applicant, err := s.applicantView(ctx, job, viewer)
		if err != nil {
			return nil, err
		}
		return &View{Role: role, Applicant: applicant}, nil
	}
}

func (s *Service) ownerView(ctx context.Context, job *models.JobWithCounts) (*OwnerView, error) {
	settings, err := s.store.GetSettings(ctx, job.ID)
	if err != nil {
		return nil, err
	}
	inProgress := 0
	if job.ApplicantCount > 0 {
		if inProgress, err = s.store.CountInProgress(ctx, job.ID); err != nil {
			return nil, err
		}
	}
	return &OwnerView{
		Job:             *job,
		Settings:        settings,
		InProgressCount: inProgress,
		Editable:        lifecycle.CanEditJob(job.ApplicantCount),
		Deletable:       lifecycle.CanDeleteJob(job.Status, job.ApplicantCount, inProgress),
		StatusOptions:   models.JobStatuses,
	}, nil
}

func (s *Service) applicantView(ctx context.Context, job *models.JobWithCounts, viewer *models.Identity) (*ApplicantView, error) {
	view := &ApplicantView{Job: *job}
	if viewer != nil {
		app, err := s.store.FindApplication(ctx, job.ID, viewer.ID)
		if err != nil {
			return nil, err
		}
		saved, err := s.store.IsSaved(ctx, job.ID, viewer.ID)
		if err != nil {
			return nil, err
		}
		view.Application = app
		view.Saved = saved
	}
	view.State = lifecycle.ResolveApplicantState(view.Application, job.Status, viewer != nil)
	return view, nil
}
