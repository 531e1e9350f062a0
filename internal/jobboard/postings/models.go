// internal/jobboard/postings/models.go
package postings

import "job-board/internal/models"

// JobInput is the create and edit payload of the posting form.
type JobInput struct {
	Title              string                    `json:"title"`
	Company            string                    `json:"company"`
	Location           string                    `json:"location"`
	JobType            string                    `json:"jobtype"`
	Workplace          string                    `json:"workplace"`
	JobDesc            string                    `json:"jobdesc"`
	Openings           int                       `json:"openings"`
	ScreeningQuestions models.ScreeningQuestions `json:"screeningquestions,omitempty"`
}

type StatusInput struct {
	Status models.JobStatus `json:"status"`
}

type SettingsInput struct {
	AutoClose bool `json:"auto_close"`
}
