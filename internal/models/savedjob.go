package models

import "time"

type SavedJob struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	JobID     int64     `json:"job_id"`
	CreatedAt time.Time `json:"created_at"`
}
