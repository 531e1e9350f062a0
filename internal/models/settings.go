package models

// Settings is the per-job poster configuration. A job without a row behaves as DefaultSettings.
type Settings struct {
	JobID     int64 `json:"job_id"`
	AutoClose bool  `json:"auto_close"`
}

func DefaultSettings(jobID int64) Settings {
	return Settings{JobID: jobID, AutoClose: false}
}
