package listing

import (
	"sync"

	"job-board/internal/jobboard/feed"
	"job-board/internal/models"
)

const defaultCompactAfter = 256

// ReadModel is a snapshot plus an append-only log of change events. The job
// list is always the snapshot with the log replayed over it.
type ReadModel struct {
	mu           sync.RWMutex
	snapshot     []models.Job
	snapshotSeq  uint64
	events       []feed.ChangeEvent
	jobs         []models.Job
	lastSeq      uint64
	compactAfter int
}

// NewReadModel starts from jobs as of seq. Events at or below seq are ignored.
func NewReadModel(jobs []models.Job, seq uint64) *ReadModel {
	snapshot := make([]models.Job, len(jobs))
	copy(snapshot, jobs)
	current := make([]models.Job, len(jobs))
	copy(current, jobs)
	return &ReadModel{
		snapshot:     snapshot,
		snapshotSeq:  seq,
		jobs:         current,
		lastSeq:      seq,
		compactAfter: defaultCompactAfter,
	}
}

// Apply appends evt to the log and folds it into the list. It returns false
// for events that are stale or not row changes.
func (m *ReadModel) Apply(evt feed.ChangeEvent) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if evt.Seq <= m.lastSeq {
		return false
	}
	next, ok := applyEvent(m.jobs, evt)
	if !ok {
		return false
	}
	m.jobs = next
	m.events = append(m.events, evt)
	m.lastSeq = evt.Seq

	if len(m.events) >= m.compactAfter {
		m.snapshot = make([]models.Job, len(m.jobs))
		copy(m.snapshot, m.jobs)
		m.snapshotSeq = m.lastSeq
		m.events = nil
	}
	return true
}

// Jobs returns a copy of the derived list.
func (m *ReadModel) Jobs() []models.Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Job, len(m.jobs))
	copy(out, m.jobs)
	return out
}

func (m *ReadModel) Has(id int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return indexOf(m.jobs, id) >= 0
}

// Seq is the sequence number of the last applied event.
func (m *ReadModel) Seq() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastSeq
}

// Events returns the log since the last compaction.
func (m *ReadModel) Events() []feed.ChangeEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]feed.ChangeEvent, len(m.events))
	copy(out, m.events)
	return out
}

// Replay rebuilds the list from the snapshot and the log.
func (m *ReadModel) Replay() []models.Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Replay(m.snapshot, m.events)
}

// Replay folds events over jobs in order without touching jobs.
func Replay(jobs []models.Job, events []feed.ChangeEvent) []models.Job {
	out := make([]models.Job, len(jobs))
	copy(out, jobs)
	for _, evt := range events {
		if next, ok := applyEvent(out, evt); ok {
			out = next
		}
	}
	return out
}

// applyEvent: INSERT prepends, UPDATE replaces in place, DELETE removes.
// An INSERT for a job already present replaces it, which happens when the
// snapshot query raced the notification.
func applyEvent(jobs []models.Job, evt feed.ChangeEvent) ([]models.Job, bool) {
	switch evt.Op {
	case feed.OpInsert:
		if evt.Job == nil {
			return jobs, false
		}
		if i := indexOf(jobs, evt.Job.ID); i >= 0 {
			jobs[i] = *evt.Job
			return jobs, true
		}
		return append([]models.Job{*evt.Job}, jobs...), true
	case feed.OpUpdate:
		if evt.Job == nil {
			return jobs, false
		}
		i := indexOf(jobs, evt.Job.ID)
		if i < 0 {
			return jobs, false
		}
		jobs[i] = *evt.Job
		return jobs, true
	case feed.OpDelete:
		i := indexOf(jobs, evt.JobID)
		if i < 0 {
			return jobs, false
		}
		return append(jobs[:i:i], jobs[i+1:]...), true
	}
	return jobs, false
}

func indexOf(jobs []models.Job, id int64) int {
	for i := range jobs {
		if jobs[i].ID == id {
			return i
		}
	}
	return -1
}
