// internal/models/application.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type ApplicationStatus string

const (
	ApplicationInProgress ApplicationStatus = "inprogress"
	ApplicationAccepted   ApplicationStatus = "accepted"
	ApplicationRejected   ApplicationStatus = "rejected"
	ApplicationWithdrawn  ApplicationStatus = "withdrawn"
)

type Answer struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Answers is stored as a jsonb array aligned with the job's screening questions.
type Answers []Answer

func (a Answers) Value() (driver.Value, error) {
	if a == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(a)
}

func (a *Answers) Scan(src interface{}) error {
	return scanJSON(src, a)
}

type Application struct {
	ID             int64             `json:"id"`
	JobID          int64             `json:"job_id"`
	UserID         string            `json:"user_id"`
	Email          string            `json:"email"`
	Phone          string            `json:"phone"`
	ResumePath     string            `json:"resume_path"`
	Answers        Answers           `json:"answers"`
	Status         ApplicationStatus `json:"status"`
	WithdrawReason *string           `json:"withdraw_reason,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

const ApplicationColumns = `id, job_id, user_id, email, phone, resume_path, answers, status, withdraw_reason, created_at, updated_at`

// ApplicationColumnsAs is ApplicationColumns qualified by a table alias.
func ApplicationColumnsAs(alias string) string {
	return fmt.Sprintf("%[1]s.id, %[1]s.job_id, %[1]s.user_id, %[1]s.email, %[1]s.phone, %[1]s.resume_path, "+
		"%[1]s.answers, %[1]s.status, %[1]s.withdraw_reason, %[1]s.created_at, %[1]s.updated_at", alias)
}

func ScanApplication(row RowScanner, extra ...interface{}) (*Application, error) {
	var a Application
	dest := []interface{}{
		&a.ID, &a.JobID, &a.UserID, &a.Email, &a.Phone, &a.ResumePath,
		&a.Answers, &a.Status, &a.WithdrawReason, &a.CreatedAt, &a.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return &a, nil
}
