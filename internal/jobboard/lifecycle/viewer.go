package lifecycle

import "job-board/internal/models"

// ViewerRole selects which detail view a caller gets.
type ViewerRole string

const (
	RoleOwner     ViewerRole = "owner"
	RoleApplicant ViewerRole = "applicant"
)

// ResolveViewerRole is Owner only for a signed-in caller who posted the job.
func ResolveViewerRole(viewerID, ownerID string) ViewerRole {
	if viewerID != "" && viewerID == ownerID {
		return RoleOwner
	}
	return RoleApplicant
}

// ApplicantAction is the single call to action on the applicant view.
type ApplicantAction string

const (
	ActionSignIn   ApplicantAction = "sign_in"
	ActionApply    ApplicantAction = "apply"
	ActionWithdraw ApplicantAction = "withdraw"
	ActionNone     ApplicantAction = "none"
)

const (
	LabelApplied   = "Applied"
	LabelWithdrawn = "You withdrew this application"
	LabelAccepted  = "Your application was accepted"
	LabelRejected  = "Your application was rejected"
	LabelPaused    = "This job is not accepting applications right now"
	LabelClosed    = "This job is no longer accepting applicants"
	LabelSignIn    = "Sign in to apply"
)

// ApplicantState is what the applicant view renders for the caller.
type ApplicantState struct {
	Action ApplicantAction `json:"action"`
	Label  string          `json:"label,omitempty"`
}

// ResolveApplicantState picks the action for a non-owner. The caller's own
// application decides first; job pause or closure only matters to people
// who have not applied.
func ResolveApplicantState(application *models.Application, jobStatus models.JobStatus, signedIn bool) ApplicantState {
	if application != nil {
		switch application.Status {
		case models.ApplicationInProgress:
			return ApplicantState{Action: ActionWithdraw, Label: LabelApplied}
		case models.ApplicationWithdrawn:
			return ApplicantState{Action: ActionNone, Label: LabelWithdrawn}
		case models.ApplicationAccepted:
			return ApplicantState{Action: ActionNone, Label: LabelAccepted}
		case models.ApplicationRejected:
			return ApplicantState{Action: ActionNone, Label: LabelRejected}
		}
	}

	switch jobStatus {
	case models.JobStatusPaused:
		return ApplicantState{Action: ActionNone, Label: LabelPaused}
	case models.JobStatusClosed:
		return ApplicantState{Action: ActionNone, Label: LabelClosed}
	}

	if !signedIn {
		return ApplicantState{Action: ActionSignIn, Label: LabelSignIn}
	}
	return ApplicantState{Action: ActionApply}
}
