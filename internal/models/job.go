// internal/models/job.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type JobStatus string

const (
	JobStatusOpen   JobStatus = "open"
	JobStatusPaused JobStatus = "paused"
	JobStatusClosed JobStatus = "closed"
)

var JobStatuses = []JobStatus{JobStatusOpen, JobStatusPaused, JobStatusClosed}

// Job types and workplaces offered by the posting form.
var (
	JobTypes   = []string{"Full Time", "Part Time", "Internship", "Contract", "Volunteer", "Other"}
	Workplaces = []string{"On-site", "Remote", "Hybrid"}
)

const MaxScreeningQuestions = 3

type ScreeningQuestion struct {
	Question string `json:"question"`
}

// ScreeningQuestions is stored as a jsonb array.
type ScreeningQuestions []ScreeningQuestion

func (q ScreeningQuestions) Value() (driver.Value, error) {
	if q == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(q)
}

func (q *ScreeningQuestions) Scan(src interface{}) error {
	return scanJSON(src, q)
}

// Job is a postjob row.
type Job struct {
	ID                 int64              `json:"id"`
	UserID             string             `json:"user_id"`
	Title              string             `json:"title"`
	Company            string             `json:"company"`
	Location           string             `json:"location"`
	JobType            string             `json:"jobtype"`
	Workplace          string             `json:"workplace"`
	JobDesc            string             `json:"jobdesc"`
	Openings           int                `json:"openings"`
	ScreeningQuestions ScreeningQuestions `json:"screeningquestions"`
	Status             JobStatus          `json:"status"`
	CreatedAt          time.Time          `json:"created_at"`
}

// JobColumns lists postjob columns in ScanJob order.
const JobColumns = `id, user_id, title, company, location, jobtype, workplace, jobdesc, openings, screeningquestions, status, created_at`

// JobColumnsAs is JobColumns qualified by a table alias.
func JobColumnsAs(alias string) string {
	return fmt.Sprintf("%[1]s.id, %[1]s.user_id, %[1]s.title, %[1]s.company, %[1]s.location, %[1]s.jobtype, "+
		"%[1]s.workplace, %[1]s.jobdesc, %[1]s.openings, %[1]s.screeningquestions, %[1]s.status, %[1]s.created_at", alias)
}

type RowScanner interface {
	Scan(dest ...interface{}) error
}

// ScanJob reads JobColumns, followed by any extra destinations.
func ScanJob(row RowScanner, extra ...interface{}) (*Job, error) {
	var j Job
	dest := []interface{}{
		&j.ID, &j.UserID, &j.Title, &j.Company, &j.Location, &j.JobType,
		&j.Workplace, &j.JobDesc, &j.Openings, &j.ScreeningQuestions, &j.Status, &j.CreatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return &j, nil
}

// JobWithCounts is a job plus its applicant and saved counts.
type JobWithCounts struct {
	Job
	ApplicantCount int `json:"applicantCount"`
	SavedCount     int `json:"savedCount"`
}

func scanJSON(src interface{}, dest interface{}) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dest)
	case string:
		return json.Unmarshal([]byte(v), dest)
	default:
		return fmt.Errorf("unsupported jsonb source %T", src)
	}
}
