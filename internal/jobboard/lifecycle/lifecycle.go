// Package lifecycle holds the job and application status rules. Everything
// here is pure so the API, the stores and the tests share one definition.
package lifecycle

import (
	"errors"

	"job-board/internal/models"
)

var (
	ErrTerminalStatus = errors.New("TERMINAL_STATUS")
	ErrInvalidTarget  = errors.New("INVALID_TARGET")
	ErrUnknownStatus  = errors.New("UNKNOWN_STATUS")
)

// ===== Application status =====

func ValidApplicationStatus(s models.ApplicationStatus) bool {
	switch s {
	case models.ApplicationInProgress, models.ApplicationAccepted,
		models.ApplicationRejected, models.ApplicationWithdrawn:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func IsTerminal(s models.ApplicationStatus) bool {
	switch s {
	case models.ApplicationAccepted, models.ApplicationRejected, models.ApplicationWithdrawn:
		return true
	}
	return false
}

// posterTargets is what a job owner may select for an application.
var posterTargets = []models.ApplicationStatus{
	models.ApplicationInProgress,
	models.ApplicationAccepted,
	models.ApplicationRejected,
}

// CanPosterTransition checks a job owner's change of an application from -> to.
// Selecting inprogress on an inprogress application is a no-op and allowed.
func CanPosterTransition(from, to models.ApplicationStatus) error {
	if !ValidApplicationStatus(from) {
		return ErrUnknownStatus
	}
	if IsTerminal(from) {
		return ErrTerminalStatus
	}
	for _, t := range posterTargets {
		if t == to {
			return nil
		}
	}
	return ErrInvalidTarget
}

// CanWithdraw checks the applicant's own withdraw.
func CanWithdraw(from models.ApplicationStatus) error {
	if !ValidApplicationStatus(from) {
		return ErrUnknownStatus
	}
	if IsTerminal(from) {
		return ErrTerminalStatus
	}
	return nil
}

// RequiresConfirmation is true for the irreversible poster decisions.
func RequiresConfirmation(to models.ApplicationStatus) bool {
	return to == models.ApplicationAccepted || to == models.ApplicationRejected
}

// PosterStatusOptions lists the choices shown to the owner; empty once terminal.
func PosterStatusOptions(from models.ApplicationStatus) []models.ApplicationStatus {
	if IsTerminal(from) {
		return []models.ApplicationStatus{}
	}
	out := make([]models.ApplicationStatus, len(posterTargets))
	copy(out, posterTargets)
	return out
}

// ===== Job status =====

func ValidJobStatus(s models.JobStatus) bool {
	switch s {
	case models.JobStatusOpen, models.JobStatusPaused, models.JobStatusClosed:
		return true
	}
	return false
}

// CanSetJobStatus allows any valid status from any valid status.
func CanSetJobStatus(from, to models.JobStatus) error {
	if !ValidJobStatus(from) || !ValidJobStatus(to) {
		return ErrUnknownStatus
	}
	return nil
}

// AcceptsApplications is true only for open jobs.
func AcceptsApplications(s models.JobStatus) bool {
	return s == models.JobStatusOpen
}

// CanEditJob permits edits only before anyone has applied.
func CanEditJob(applicantCount int) bool {
	return applicantCount == 0
}

// CanDeleteJob permits deletion with zero applicants, or once closed with
// nobody still in progress.
func CanDeleteJob(status models.JobStatus, applicantCount, inProgressCount int) bool {
	if applicantCount == 0 {
		return true
	}
	return status == models.JobStatusClosed && inProgressCount == 0
}

// ShouldAutoClose reports whether accepting has filled every opening.
func ShouldAutoClose(settings models.Settings, openings, acceptedCount int) bool {
	return settings.AutoClose && openings > 0 && acceptedCount >= openings
}
