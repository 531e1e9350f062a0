package search

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"job-board/internal/common/config"
	apperrors "job-board/internal/common/errors"
	"job-board/internal/common/logger"
	"job-board/internal/jobboard/feed"
	"job-board/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

type recordedRequest struct {
	method string
	path   string
	body   string
}

// fakeTransport answers every request with status and body and records it.
type fakeTransport struct {
	mu       sync.Mutex
	requests []recordedRequest
	status   int
	body     string
}

func (f *fakeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var body string
	if req.Body != nil {
		b, _ := io.ReadAll(req.Body)
		body = string(b)
	}
	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{req.Method, req.URL.Path, body})
	f.mu.Unlock()

	status := f.status
	if status == 0 {
		status = http.StatusOK
	}
	respBody := f.body
	if respBody == "" {
		respBody = "{}"
	}
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"X-Elastic-Product": []string{"Elasticsearch"}, "Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(respBody)),
	}, nil
}

func createTestIndex(t *testing.T, tr *fakeTransport) *Index {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{"http://es.test:9200"},
		Transport: tr,
	})
	require.NoError(t, err)
	return NewIndex(client, "")
}

func createTestConfig() config.SearchConfig {
	return config.SearchConfig{Enabled: true, Index: DefaultIndex, DefaultLimit: 20, MaxLimit: 50}
}

// ==========================
// Query Tests
// ==========================

func TestBuildSearchQuery(t *testing.T) {
	q := buildSearchQuery("  golang ", "seeker-1", 10)

	b, err := json.Marshal(q)
	require.NoError(t, err)
	s := string(b)
	assert.Contains(t, s, `"multi_match":{"fields":["title^3","company^2","jobdesc"],"query":"golang","type":"best_fields"}`)
	assert.Contains(t, s, `{"term":{"status":"closed"}}`)
	assert.Contains(t, s, `{"term":{"user_id":"seeker-1"}}`)
	assert.Equal(t, 10, q["size"])
	assert.NotContains(t, q, "sort")

	anon := buildSearchQuery("", "", 5)
	b, _ = json.Marshal(anon)
	assert.Contains(t, string(b), `"match_all":{}`)
	assert.NotContains(t, string(b), "user_id")
	assert.Contains(t, anon, "sort")
}

// ==========================
// Service Tests
// ==========================

func TestSearch_ReturnsSources(t *testing.T) {
	tr := &fakeTransport{body: `{"hits":{"hits":[
		{"_source":{"id":7,"user_id":"poster-1","title":"Backend Engineer","company":"Acme","status":"open"}},
		{"_source":{"id":9,"user_id":"poster-2","title":"Go Developer","company":"Globex","status":"paused"}}
	]}}`}
	svc := NewService(createTestIndex(t, tr), createTestConfig(), logger.NewTestLogger(t))

	jobs, err := svc.Search(context.Background(), "seeker-1", "go", 500)

	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, int64(7), jobs[0].ID)
	assert.Equal(t, models.JobStatusPaused, jobs[1].Status)

	require.Len(t, tr.requests, 1)
	assert.Equal(t, "/jobs/_search", tr.requests[0].path)
	assert.Contains(t, tr.requests[0].body, `"size":50`, "limit is capped")
}

func TestSearch_Disabled(t *testing.T) {
	cfg := createTestConfig()
	cfg.Enabled = false
	svc := NewService(createTestIndex(t, &fakeTransport{}), cfg, logger.NewTestLogger(t))

	_, err := svc.Search(context.Background(), "", "go", 0)
	assert.Equal(t, apperrors.ErrCodeSearchDisabled, apperrors.CodeOf(err))
	assert.False(t, svc.Enabled())

	svc = NewService(nil, createTestConfig(), logger.NewTestLogger(t))
	assert.False(t, svc.Enabled())
}

func TestSearch_BackendError(t *testing.T) {
	tr := &fakeTransport{status: http.StatusBadRequest, body: `{"error":{"type":"parsing_exception"}}`}
	svc := NewService(createTestIndex(t, tr), createTestConfig(), logger.NewTestLogger(t))

	_, err := svc.Search(context.Background(), "", "go", 0)
	assert.Equal(t, apperrors.ErrCodeSearchQueryFailed, apperrors.CodeOf(err))
}

// ==========================
// Index Tests
// ==========================

func TestIndex_PutAndDelete(t *testing.T) {
	tr := &fakeTransport{}
	idx := createTestIndex(t, tr)

	require.NoError(t, idx.Put(context.Background(), &models.Job{ID: 7, Title: "Backend Engineer", Status: models.JobStatusOpen}))
	require.Len(t, tr.requests, 1)
	assert.Equal(t, http.MethodPut, tr.requests[0].method)
	assert.Equal(t, "/jobs/_doc/7", tr.requests[0].path)
	assert.Contains(t, tr.requests[0].body, `"title":"Backend Engineer"`)

	tr.status = http.StatusNotFound
	assert.NoError(t, idx.Delete(context.Background(), 7), "deleting a missing document is fine")
	assert.Equal(t, "/jobs/_doc/7", tr.requests[1].path)

	tr.status = http.StatusInternalServerError
	assert.Error(t, idx.Delete(context.Background(), 7))
}

func TestIndex_PruneKeepsListedIDs(t *testing.T) {
	tr := &fakeTransport{}
	idx := createTestIndex(t, tr)

	require.NoError(t, idx.Prune(context.Background(), []int64{1, 2}))
	require.Len(t, tr.requests, 1)
	assert.Equal(t, http.MethodPost, tr.requests[0].method)
	assert.Equal(t, "/jobs/_delete_by_query", tr.requests[0].path)

	var q map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(tr.requests[0].body), &q))
	values := q["query"].(map[string]interface{})["bool"].(map[string]interface{})["must_not"].(map[string]interface{})["ids"].(map[string]interface{})["values"]
	assert.Equal(t, []interface{}{"1", "2"}, values)

	tr.status = http.StatusInternalServerError
	assert.Error(t, idx.Prune(context.Background(), nil))
}

func TestIndexer_OverflowReindexesAndPrunes(t *testing.T) {
	hub := feed.NewHub(1, logger.NewNoOpLogger())
	w := &fakeWriter{}
	x := &Indexer{index: w, source: &fakeSource{jobs: []models.Job{{ID: 1}}}, logger: logger.NewTestLogger(t)}

	// published before Run reads, so the second event overflows the buffer
	sub := hub.Subscribe()
	hub.Publish(feed.ChangeEvent{Op: feed.OpInsert, JobID: 1, Job: &models.Job{ID: 1}})
	hub.Publish(feed.ChangeEvent{Op: feed.OpDelete, JobID: 2})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = x.Run(ctx, sub) }()

	require.Eventually(t, func() bool { return len(w.prunes()) == 1 }, time.Second, 5*time.Millisecond)
	put, deleted := w.snapshot()
	assert.Equal(t, []int64{1, 1}, put)
	assert.Empty(t, deleted)
	assert.Equal(t, [][]int64{{1}}, w.prunes())
}

func TestIndex_EnsureCreatesWhenMissing(t *testing.T) {
	tr := &fakeTransport{status: http.StatusNotFound}
	idx := createTestIndex(t, tr)

	// the create call also sees 404 from the fake, which is an error response
	err := idx.Ensure(context.Background())
	assert.Error(t, err)
	require.Len(t, tr.requests, 2)
	assert.Equal(t, http.MethodHead, tr.requests[0].method)
	assert.Equal(t, http.MethodPut, tr.requests[1].method)
	assert.Contains(t, tr.requests[1].body, `"status":     {"type": "keyword"}`)

	tr = &fakeTransport{}
	idx = createTestIndex(t, tr)
	require.NoError(t, idx.Ensure(context.Background()))
	assert.Len(t, tr.requests, 1, "existing index is left alone")
}

// ==========================
// Indexer Tests
// ==========================

type fakeWriter struct {
	mu      sync.Mutex
	put     []int64
	deleted []int64
	pruned  [][]int64
	err     error
}

func (f *fakeWriter) Put(_ context.Context, job *models.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.put = append(f.put, job.ID)
	return f.err
}

func (f *fakeWriter) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return f.err
}

func (f *fakeWriter) Prune(_ context.Context, keep []int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pruned = append(f.pruned, append([]int64{}, keep...))
	return f.err
}

func (f *fakeWriter) prunes() [][]int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]int64{}, f.pruned...)
}

func (f *fakeWriter) snapshot() ([]int64, []int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64{}, f.put...), append([]int64{}, f.deleted...)
}

type fakeSource struct {
	jobs []models.Job
	err  error
}

func (f *fakeSource) ListOpen(context.Context, string) ([]models.Job, error) {
	return f.jobs, f.err
}

func TestIndexer_MirrorsFeed(t *testing.T) {
	hub := feed.NewHub(8, logger.NewNoOpLogger())
	w := &fakeWriter{}
	src := &fakeSource{jobs: []models.Job{{ID: 1}, {ID: 2}}}
	x := &Indexer{index: w, source: src, logger: logger.NewTestLogger(t)}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	sub := hub.Subscribe()
	go func() { done <- x.Run(ctx, sub) }()

	hub.Publish(feed.ChangeEvent{Op: feed.OpInsert, JobID: 7, Job: &models.Job{ID: 7}})
	hub.Publish(feed.ChangeEvent{Op: feed.OpUpdate, JobID: 7, Job: &models.Job{ID: 7, Status: models.JobStatusClosed}})
	hub.Publish(feed.ChangeEvent{Op: feed.OpDelete, JobID: 8})
	hub.Publish(feed.ChangeEvent{Op: feed.OpResync})

	require.Eventually(t, func() bool {
		put, deleted := w.snapshot()
		return len(put) == 4 && len(deleted) == 1
	}, time.Second, 5*time.Millisecond)

	put, deleted := w.snapshot()
	assert.Equal(t, []int64{7, 7, 1, 2}, put)
	assert.Equal(t, []int64{8}, deleted)
	require.Eventually(t, func() bool { return len(w.prunes()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, [][]int64{{1, 2}}, w.prunes(), "job 7 is closed and leaves the index")

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, 0, hub.Subscribers(), "Run releases its subscription")
}

func TestIndexer_FailuresDoNotStopRun(t *testing.T) {
	hub := feed.NewHub(8, logger.NewNoOpLogger())
	w := &fakeWriter{err: errors.New("es unavailable")}
	x := &Indexer{index: w, source: &fakeSource{err: errors.New("db down")}, logger: logger.NewTestLogger(t)}

	sub := hub.Subscribe()
	done := make(chan error, 1)
	go func() { done <- x.Run(context.Background(), sub) }()

	hub.Publish(feed.ChangeEvent{Op: feed.OpInsert, JobID: 1, Job: &models.Job{ID: 1}})
	hub.Publish(feed.ChangeEvent{Op: feed.OpResync})
	hub.Publish(feed.ChangeEvent{Op: feed.OpDelete, JobID: 1})

	require.Eventually(t, func() bool {
		_, deleted := w.snapshot()
		return len(deleted) == 1
	}, time.Second, 5*time.Millisecond)

	hub.Close()
	assert.NoError(t, <-done)
}
