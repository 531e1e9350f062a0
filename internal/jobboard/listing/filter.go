// Package listing serves the seeker job list: the filter predicates, the
// open-job query and the live read model fed by the change feed.
package listing

import (
	"net/url"
	"strings"

	"job-board/internal/models"
)

// FilterState is the seeker's filter selection. Zero values match everything.
type FilterState struct {
	Search    string   `json:"search"`
	Company   string   `json:"company"`
	Location  string   `json:"location"`
	JobTypes  []string `json:"jobtype"`
	Workplace string   `json:"workplace"`
}

// FilterStateFromQuery reads search, company, location, workplace and any
// number of jobtype parameters. A jobtype value may also be comma separated.
func FilterStateFromQuery(q url.Values) FilterState {
	f := FilterState{
		Search:    strings.TrimSpace(q.Get("search")),
		Company:   strings.TrimSpace(q.Get("company")),
		Location:  strings.TrimSpace(q.Get("location")),
		Workplace: strings.TrimSpace(q.Get("workplace")),
	}
	for _, raw := range q["jobtype"] {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				f.JobTypes = append(f.JobTypes, t)
			}
		}
	}
	return f
}

func (f FilterState) IsEmpty() bool {
	return f.Search == "" && f.Company == "" && f.Location == "" && len(f.JobTypes) == 0 && f.Workplace == ""
}

// Matches applies the five predicates. They are independent so order is irrelevant.
func (f FilterState) Matches(job *models.Job) bool {
	if f.Search != "" && !strings.Contains(strings.ToLower(job.Title), strings.ToLower(f.Search)) {
		return false
	}
	if f.Company != "" && job.Company != f.Company {
		return false
	}
	if f.Location != "" && job.Location != f.Location {
		return false
	}
	if len(f.JobTypes) > 0 && !contains(f.JobTypes, job.JobType) {
		return false
	}
	if f.Workplace != "" && job.Workplace != f.Workplace {
		return false
	}
	return true
}

// Visible reports whether a seeker may see job at all in the listing.
func Visible(job *models.Job, viewerID string) bool {
	if job.Status == models.JobStatusClosed {
		return false
	}
	return viewerID == "" || job.UserID != viewerID
}

// Filter is pure: it never mutates jobs and keeps the input order.
func Filter(jobs []models.Job, viewerID string, f FilterState) []models.Job {
	out := make([]models.Job, 0, len(jobs))
	for i := range jobs {
		if Visible(&jobs[i], viewerID) && f.Matches(&jobs[i]) {
			out = append(out, jobs[i])
		}
	}
	return out
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
