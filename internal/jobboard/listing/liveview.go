package listing

import (
	"context"
	"errors"

	"job-board/internal/jobboard/feed"
	"job-board/internal/models"
)

var ErrViewClosed = errors.New("live view closed")

// OpSnapshot marks a delta that replaces the whole list.
const OpSnapshot feed.Op = "SNAPSHOT"

// Snapshotter loads the job set a live view is seeded from.
type Snapshotter interface {
	ListOpen(ctx context.Context, viewerID string) ([]models.Job, error)
}

// Delta is a change as the viewer sees it. Jobs is only set for OpSnapshot.
type Delta struct {
	Seq   uint64       `json:"seq"`
	Op    feed.Op      `json:"op"`
	JobID int64        `json:"jobId,omitempty"`
	Job   *models.Job  `json:"job,omitempty"`
	Jobs  []models.Job `json:"jobs,omitempty"`
}

// LiveView holds one viewer's listing open against the feed. It owns a hub
// subscription for its whole lifetime and must be closed.
type LiveView struct {
	hub      *feed.Hub
	sub      *feed.Subscription
	source   Snapshotter
	viewerID string
	filter   FilterState
	model    *ReadModel
}

// OpenLiveView subscribes before loading the snapshot so no change between
// the two is lost.
func OpenLiveView(ctx context.Context, hub *feed.Hub, source Snapshotter, viewerID string, filter FilterState) (*LiveView, error) {
	v := &LiveView{
		hub:      hub,
		sub:      hub.Subscribe(),
		source:   source,
		viewerID: viewerID,
		filter:   filter,
	}
	if err := v.reseed(ctx); err != nil {
		v.Close()
		return nil, err
	}
	return v, nil
}

func (v *LiveView) reseed(ctx context.Context) error {
	seq := v.hub.Seq()
	jobs, err := v.source.ListOpen(ctx, v.viewerID)
	if err != nil {
		return err
	}
	v.model = NewReadModel(Filter(jobs, v.viewerID, v.filter), seq)
	return nil
}

// Snapshot is the current list.
func (v *LiveView) Snapshot() Delta {
	return Delta{Seq: v.model.Seq(), Op: OpSnapshot, Jobs: v.model.Jobs()}
}

// Next blocks until the next change visible to this viewer. A feed resync
// reloads the list and yields an OpSnapshot delta.
func (v *LiveView) Next(ctx context.Context) (Delta, error) {
	for {
		select {
		case <-ctx.Done():
			return Delta{}, ctx.Err()
		case evt, ok := <-v.sub.C():
			if !ok {
				return Delta{}, ErrViewClosed
			}
			if evt.Op == feed.OpResync {
				if err := v.reseed(ctx); err != nil {
					return Delta{}, err
				}
				return v.Snapshot(), nil
			}
			translated, ok := v.translate(evt)
			if !ok || !v.model.Apply(translated) {
				continue
			}
			return Delta{Seq: translated.Seq, Op: translated.Op, JobID: translated.JobID, Job: translated.Job}, nil
		}
	}
}

// translate maps a raw row change onto the viewer's list: a job that stops
// being visible is removed, one that becomes visible is inserted.
func (v *LiveView) translate(evt feed.ChangeEvent) (feed.ChangeEvent, bool) {
	switch evt.Op {
	case feed.OpDelete:
		return evt, v.model.Has(evt.JobID)
	case feed.OpInsert, feed.OpUpdate:
		if evt.Job == nil {
			return evt, false
		}
		visible := Visible(evt.Job, v.viewerID) && v.filter.Matches(evt.Job)
		present := v.model.Has(evt.Job.ID)
		switch {
		case visible && present:
			evt.Op = feed.OpUpdate
		case visible:
			evt.Op = feed.OpInsert
		case present:
			evt.Op = feed.OpDelete
			evt.JobID = evt.Job.ID
			evt.Job = nil
		default:
			return evt, false
		}
		return evt, true
	}
	return evt, false
}

// Close releases the feed subscription.
func (v *LiveView) Close() {
	v.sub.Release()
}
