// internal/jobboard/applications/models.go
package applications

import "job-board/internal/models"

// ApplyInput is the applicant form; the resume travels separately.
type ApplyInput struct {
	Email   string         `json:"email"`
	Phone   string         `json:"phone"`
	Answers models.Answers `json:"answers,omitempty"`
}

// Resume is an uploaded resume file already read into memory.
type Resume struct {
	Filename string
	Data     []byte
}

type TransitionInput struct {
	Status   models.ApplicationStatus `json:"status"`
	Expected models.ApplicationStatus `json:"expected"`
	Confirm  bool                     `json:"confirm"`
}

type TransitionResult struct {
	Application *models.Application `json:"application"`
	JobClosed   bool                `json:"jobClosed"`
}

type WithdrawInput struct {
	Reason string `json:"reason"`
}

// Applicant is one row of the poster's applicant list.
type Applicant struct {
	models.Application
	ResumeURL            string                     `json:"resumeUrl,omitempty"`
	StatusOptions        []models.ApplicationStatus `json:"statusOptions"`
	RequiresConfirmation []models.ApplicationStatus `json:"requiresConfirmation"`
}

// AppliedJob is one row of the seeker's applied-jobs page.
type AppliedJob struct {
	models.Application
	JobTitle  string           `json:"jobTitle"`
	Company   string           `json:"company"`
	Location  string           `json:"location"`
	JobStatus models.JobStatus `json:"jobStatus"`
}
