// internal/models/notification.go
package models

import "time"

type ApplicationEventType string

const (
	EventApplicationCreated       ApplicationEventType = "application.created"
	EventApplicationStatusChanged ApplicationEventType = "application.status_changed"
	EventApplicationWithdrawn     ApplicationEventType = "application.withdrawn"
)

// ApplicationEvent is published after an application change commits.
type ApplicationEvent struct {
	Type          ApplicationEventType `json:"type"`
	ApplicationID int64                `json:"applicationId"`
	JobID         int64                `json:"jobId"`
	JobTitle      string               `json:"jobTitle"`
	Company       string               `json:"company"`
	ApplicantID   string               `json:"applicantId"`
	ApplicantMail string               `json:"applicantEmail"`
	PosterID      string               `json:"posterId"`
	From          ApplicationStatus    `json:"from,omitempty"`
	To            ApplicationStatus    `json:"to"`
	Reason        string               `json:"reason,omitempty"`
	OccurredAt    time.Time            `json:"occurredAt"`
}
