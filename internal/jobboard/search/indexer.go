// internal/jobboard/search/indexer.go
package search

import (
	"context"

	"job-board/internal/common/logger"
	"job-board/internal/jobboard/feed"
	"job-board/internal/models"
)

// JobSource provides the full list used to rebuild the index after a resync.
type JobSource interface {
	ListOpen(ctx context.Context, viewerID string) ([]models.Job, error)
}

type writer interface {
	Put(ctx context.Context, job *models.Job) error
	Delete(ctx context.Context, jobID int64) error
	Prune(ctx context.Context, keep []int64) error
}

// Indexer mirrors the change feed into the index. Write failures are logged
// and skipped; the next change to the same job repairs its document.
type Indexer struct {
	index  writer
	source JobSource
	logger logger.Logger
}

func NewIndexer(index *Index, source JobSource, log logger.Logger) *Indexer {
	return &Indexer{
		index:  index,
		source: source,
		logger: log.WithFields(map[string]interface{}{"component": "search-indexer"}),
	}
}

// Run consumes sub until ctx is done or the subscription closes, then
// releases it.
func (x *Indexer) Run(ctx context.Context, sub *feed.Subscription) error {
	defer sub.Release()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-sub.C():
			if !ok {
				return nil
			}
			x.apply(ctx, evt)
		}
	}
}

func (x *Indexer) apply(ctx context.Context, evt feed.ChangeEvent) {
	fields := map[string]interface{}{"op": string(evt.Op), "jobId": evt.JobID, "seq": evt.Seq}

	switch evt.Op {
	case feed.OpInsert, feed.OpUpdate:
		if evt.Job == nil {
			return
		}
		if err := x.index.Put(ctx, evt.Job); err != nil {
			x.logger.WithError(err).Warn("index job failed", fields)
		}
	case feed.OpDelete:
		if err := x.index.Delete(ctx, evt.JobID); err != nil {
			x.logger.WithError(err).Warn("delete job document failed", fields)
		}
	case feed.OpResync:
		x.reindex(ctx)
	}
}

// reindex rewrites every listable job and drops the documents of jobs that
// closed or were deleted while their events were missed.
func (x *Indexer) reindex(ctx context.Context) {
	jobs, err := x.source.ListOpen(ctx, "")
	if err != nil {
		x.logger.WithError(err).Error("reindex skipped: list jobs failed", nil)
		return
	}
	failed := 0
	keep := make([]int64, 0, len(jobs))
	for i := range jobs {
		keep = append(keep, jobs[i].ID)
		if err := x.index.Put(ctx, &jobs[i]); err != nil {
			failed++
		}
	}
	if err := x.index.Prune(ctx, keep); err != nil {
		x.logger.WithError(err).Warn("prune stale documents failed", nil)
	}
	x.logger.Info("search index rebuilt", map[string]interface{}{"jobs": len(jobs), "failed": failed})
}
