package feed

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"job-board/internal/common/logger"
	"job-board/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

type fakeLoader struct {
	jobs  map[int64]*models.Job
	err   error
	calls []int64
}

func (f *fakeLoader) LoadJob(_ context.Context, id int64) (*models.Job, error) {
	f.calls = append(f.calls, id)
	if f.err != nil {
		return nil, f.err
	}
	return f.jobs[id], nil
}

type fakeConn struct {
	closed bool
}

func (f *fakeConn) Ping() error  { return nil }
func (f *fakeConn) Close() error { f.closed = true; return nil }

func receive(t *testing.T, sub *Subscription) ChangeEvent {
	t.Helper()
	select {
	case evt, ok := <-sub.C():
		require.True(t, ok, "subscription closed")
		return evt
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return ChangeEvent{}
	}
}

func jobColumns() []string {
	return []string{"id", "user_id", "title", "company", "location", "jobtype", "workplace",
		"jobdesc", "openings", "screeningquestions", "status", "created_at"}
}

// ==========================
// Hub Tests
// ==========================

func TestHub_PublishAssignsIncreasingSeq(t *testing.T) {
	hub := NewHub(8, logger.NewTestLogger(t))
	sub := hub.Subscribe()
	defer sub.Release()

	first := hub.Publish(ChangeEvent{Op: OpInsert, JobID: 1})
	second := hub.Publish(ChangeEvent{Op: OpDelete, JobID: 1})

	assert.Equal(t, uint64(1), first.Seq)
	assert.Equal(t, uint64(2), second.Seq)
	assert.Equal(t, uint64(2), hub.Seq())
	assert.False(t, first.At.IsZero())

	assert.Equal(t, first, receive(t, sub))
	assert.Equal(t, second, receive(t, sub))
}

func TestHub_FanOutToEverySubscriber(t *testing.T) {
	hub := NewHub(4, logger.NewTestLogger(t))
	a, b := hub.Subscribe(), hub.Subscribe()
	defer a.Release()
	defer b.Release()
	assert.Equal(t, 2, hub.Subscribers())

	hub.Publish(ChangeEvent{Op: OpUpdate, JobID: 9})

	assert.Equal(t, int64(9), receive(t, a).JobID)
	assert.Equal(t, int64(9), receive(t, b).JobID)
}

func TestHub_FullBufferDropsWithoutBlocking(t *testing.T) {
	hub := NewHub(1, logger.NewTestLogger(t))
	sub := hub.Subscribe()
	defer sub.Release()

	hub.Publish(ChangeEvent{Op: OpInsert, JobID: 1})
	hub.Publish(ChangeEvent{Op: OpInsert, JobID: 2})
	hub.Publish(ChangeEvent{Op: OpInsert, JobID: 3})

	assert.Equal(t, int64(2), sub.Dropped())
	assert.Equal(t, int64(1), receive(t, sub).JobID)

	// the first drop queues one resync; the second is covered by it
	resync := receive(t, sub)
	assert.Equal(t, OpResync, resync.Op)
	assert.Equal(t, uint64(2), resync.Seq)
	assert.Empty(t, sub.C())
}

func TestHub_DropAfterDrainQueuesFreshResync(t *testing.T) {
	hub := NewHub(2, logger.NewTestLogger(t))
	sub := hub.Subscribe()
	defer sub.Release()

	for id := int64(1); id <= 3; id++ {
		hub.Publish(ChangeEvent{Op: OpUpdate, JobID: id})
	}
	var ops []Op
	for i := 0; i < 3; i++ {
		ops = append(ops, receive(t, sub).Op)
	}
	assert.Equal(t, []Op{OpUpdate, OpUpdate, OpResync}, ops)

	// a drained subscriber receives normally again
	hub.Publish(ChangeEvent{Op: OpDelete, JobID: 4})
	assert.Equal(t, OpDelete, receive(t, sub).Op)

	for id := int64(5); id <= 7; id++ {
		hub.Publish(ChangeEvent{Op: OpUpdate, JobID: id})
	}
	assert.Equal(t, int64(5), receive(t, sub).JobID)
	assert.Equal(t, int64(6), receive(t, sub).JobID)
	assert.Equal(t, OpResync, receive(t, sub).Op)
	assert.Equal(t, int64(2), sub.Dropped())
}

func TestSubscription_ReleaseClosesAndIsIdempotent(t *testing.T) {
	hub := NewHub(0, logger.NewTestLogger(t))
	sub := hub.Subscribe()

	sub.Release()
	sub.Release()

	_, ok := <-sub.C()
	assert.False(t, ok)
	assert.Equal(t, 0, hub.Subscribers())

	// publishing after release must not panic on a closed channel
	hub.Publish(ChangeEvent{Op: OpInsert, JobID: 1})
}

func TestHub_CloseReleasesAll(t *testing.T) {
	hub := NewHub(2, logger.NewTestLogger(t))
	sub := hub.Subscribe()

	hub.Close()

	_, ok := <-sub.C()
	assert.False(t, ok)
	sub.Release()

	late := hub.Subscribe()
	_, ok = <-late.C()
	assert.False(t, ok)
	assert.Equal(t, 0, hub.Subscribers())
}

// ==========================
// Listener Tests
// ==========================

func TestListener_InsertLoadsRow(t *testing.T) {
	hub := NewHub(4, logger.NewTestLogger(t))
	sub := hub.Subscribe()
	defer sub.Release()

	loader := &fakeLoader{jobs: map[int64]*models.Job{7: {ID: 7, Title: "Go Engineer", Status: models.JobStatusOpen}}}
	l := newListener(nil, nil, loader, hub, logger.NewTestLogger(t))

	l.handle(context.Background(), `{"op":"INSERT","id":7}`)

	evt := receive(t, sub)
	assert.Equal(t, OpInsert, evt.Op)
	assert.Equal(t, int64(7), evt.JobID)
	require.NotNil(t, evt.Job)
	assert.Equal(t, "Go Engineer", evt.Job.Title)
}

func TestListener_DeleteSkipsLoader(t *testing.T) {
	hub := NewHub(4, logger.NewTestLogger(t))
	sub := hub.Subscribe()
	defer sub.Release()

	loader := &fakeLoader{}
	l := newListener(nil, nil, loader, hub, logger.NewTestLogger(t))

	l.handle(context.Background(), `{"op":"DELETE","id":3}`)

	evt := receive(t, sub)
	assert.Equal(t, OpDelete, evt.Op)
	assert.Nil(t, evt.Job)
	assert.Empty(t, loader.calls)
}

func TestListener_IgnoresBadPayloads(t *testing.T) {
	hub := NewHub(4, logger.NewTestLogger(t))
	loader := &fakeLoader{jobs: map[int64]*models.Job{}}
	l := newListener(nil, nil, loader, hub, logger.NewTestLogger(t))

	l.handle(context.Background(), `not json`)
	l.handle(context.Background(), `{"op":"TRUNCATE","id":1}`)
	l.handle(context.Background(), `{"op":"UPDATE","id":404}`) // row gone

	loader.err = errors.New("connection reset")
	l.handle(context.Background(), `{"op":"UPDATE","id":5}`)

	assert.Equal(t, uint64(0), hub.Seq())
}

func TestListener_RunPublishesResyncOnReconnect(t *testing.T) {
	hub := NewHub(4, logger.NewTestLogger(t))
	sub := hub.Subscribe()
	defer sub.Release()

	notify := make(chan *pq.Notification, 2)
	conn := &fakeConn{}
	loader := &fakeLoader{jobs: map[int64]*models.Job{1: {ID: 1}}}
	l := newListener(notify, conn, loader, hub, logger.NewTestLogger(t))

	notify <- nil
	notify <- &pq.Notification{Channel: "postjob_changes", Extra: `{"op":"UPDATE","id":1}`}
	close(notify)

	require.NoError(t, l.Run(context.Background()))
	assert.Equal(t, OpResync, receive(t, sub).Op)
	assert.Equal(t, OpUpdate, receive(t, sub).Op)

	require.NoError(t, l.Close())
	assert.True(t, conn.closed)
}

func TestListener_RunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	l := newListener(make(chan *pq.Notification), nil, &fakeLoader{}, NewHub(1, logger.NewNoOpLogger()), logger.NewNoOpLogger())
	assert.ErrorIs(t, l.Run(ctx), context.Canceled)
}

// ==========================
// SQLJobLoader Tests
// ==========================

func TestSQLJobLoader_LoadJob(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT id, user_id, title .* FROM postjob WHERE id = \$1`).
		WithArgs(int64(11)).
		WillReturnRows(sqlmock.NewRows(jobColumns()).AddRow(
			11, "poster-1", "Backend Engineer", "Acme", "Berlin", "Full Time", "Remote",
			"desc", 2, []byte(`[{"question":"Why Go?"}]`), "open", created))
	mock.ExpectQuery(`FROM postjob WHERE id = \$1`).
		WithArgs(int64(12)).
		WillReturnError(sql.ErrNoRows)

	loader := NewSQLJobLoader(db)

	job, err := loader.LoadJob(context.Background(), 11)
	require.NoError(t, err)
	assert.Equal(t, "Acme", job.Company)
	assert.Equal(t, models.ScreeningQuestions{{Question: "Why Go?"}}, job.ScreeningQuestions)

	missing, err := loader.LoadJob(context.Background(), 12)
	require.NoError(t, err)
	assert.Nil(t, missing)

	assert.NoError(t, mock.ExpectationsWereMet())
}
