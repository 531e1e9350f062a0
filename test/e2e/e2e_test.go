//go:build e2e

// test/e2e/e2e_test.go
package e2e

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"job-board/internal/common/config"
	"job-board/internal/common/database"
	"job-board/internal/common/logger"
	"job-board/internal/jobboard/applications"
	"job-board/internal/jobboard/feed"
	"job-board/internal/jobboard/listing"
	"job-board/internal/jobboard/postings"
	"job-board/internal/jobboard/savedjobs"
	"job-board/internal/models"
)

var zapLog *zap.Logger

func TestMain(m *testing.M) {
	zapLog, _ = zap.NewDevelopment()
	code := m.Run()
	_ = zapLog.Sync()
	os.Exit(code)
}

// ==========================
// Test Helper Functions
// ==========================

type memoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (s *memoryStore) Upload(_ context.Context, bucket, key, _ string, body io.Reader, _ int64) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[bucket+"/"+key] = data
	return nil
}

func (s *memoryStore) SignedURL(_ context.Context, bucket, key string, ttl time.Duration) (string, error) {
	return fmt.Sprintf("memory://%s/%s?ttl=%d", bucket, key, int(ttl.Seconds())), nil
}

type environment struct {
	cfg   *config.Config
	pg    *database.PostgresClient
	redis *database.RedisClient
	log   logger.Logger
}

// setupEnvironment connects to the local stack and migrates the schema.
// The suite is skipped unless E2E_ENABLED is set.
func setupEnvironment(t *testing.T) *environment {
	if os.Getenv("E2E_ENABLED") == "" {
		t.Skip("set E2E_ENABLED=1 with postgres and redis running to run the e2e suite")
	}

	cfg, err := config.Load()
	require.NoError(t, err)
	cfg.Database.Postgres.Host = "localhost"
	cfg.Database.Redis.Address = "localhost:6379"

	ctx := context.Background()
	pg, err := database.NewPostgres(cfg.Database.Postgres)
	require.NoError(t, err, "PostgreSQL connection failed")
	require.NoError(t, pg.Ping(ctx), "PostgreSQL ping failed")
	t.Cleanup(func() { pg.Close() })

	_, err = database.Migrate(ctx, pg.DB, database.Migrations)
	require.NoError(t, err)
	require.NoError(t, database.EnsureChangeFeed(ctx, pg.DB, cfg.Feed.Channel))

	rdb, err := database.NewRedis(cfg.Database.Redis)
	require.NoError(t, err, "Redis client creation failed")
	require.NoError(t, rdb.Ping(ctx), "Redis ping failed")
	t.Cleanup(func() { rdb.Close() })

	return &environment{cfg: cfg, pg: pg, redis: rdb, log: logger.NewZapAdapter(zapLog)}
}

func uniqueUser(prefix string) *models.Identity {
	id := fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
	return &models.Identity{ID: id, Email: id + "@example.com"}
}

func minimalPDF() []byte {
	var b bytes.Buffer
	b.WriteString("%PDF-1.4\n")
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>",
	}
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n", len(objects)+1)
	b.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return b.Bytes()
}

func waitFor(t *testing.T, sub *feed.Subscription, match func(feed.ChangeEvent) bool) feed.ChangeEvent {
	t.Helper()
	timeout := time.After(10 * time.Second)
	for {
		select {
		case evt := <-sub.C():
			if match(evt) {
				return evt
			}
		case <-timeout:
			t.Fatal("timed out waiting for change event")
			return feed.ChangeEvent{}
		}
	}
}

// ==========================
// E2E Tests
// ==========================

// TestE2E_HireFlow posts a job with one opening, applies, accepts and checks
// that the job closed and every step reached the change feed.
func TestE2E_HireFlow(t *testing.T) {
	env := setupEnvironment(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	hub := feed.NewHub(64, env.log)
	defer hub.Close()
	listener, err := feed.NewListener(env.pg.DSN, env.cfg.Feed, feed.NewSQLJobLoader(env.pg.DB), hub, env.log)
	require.NoError(t, err)
	defer listener.Close()
	go func() { _ = listener.Run(ctx) }()
	sub := hub.Subscribe()
	defer sub.Release()

	listings := listing.NewStore(env.pg.DB, env.redis.Client, time.Minute, env.log)
	posts := postings.NewService(env.pg.DB, listings, env.log)
	store := &memoryStore{objects: map[string][]byte{}}
	apps := applications.NewService(applications.LoadConfig(env.cfg.Storage), env.pg.DB, store, nil, env.log)
	saved := savedjobs.NewService(env.pg.DB, env.log)

	poster := uniqueUser("poster")
	seeker := uniqueUser("seeker")

	job, err := posts.Create(ctx, poster, postings.JobInput{
		Title:              "E2E Backend Engineer",
		Company:            "E2E Corp",
		Location:           "Berlin",
		JobType:            "Full Time",
		Workplace:          "Remote",
		JobDesc:            "Build things",
		Openings:           1,
		ScreeningQuestions: models.ScreeningQuestions{{Question: "Years of Go?"}},
	})
	require.NoError(t, err)
	t.Logf("posted job %d", job.ID)

	inserted := waitFor(t, sub, func(e feed.ChangeEvent) bool { return e.Op == feed.OpInsert && e.JobID == job.ID })
	require.NotNil(t, inserted.Job)
	assert.Equal(t, "E2E Backend Engineer", inserted.Job.Title)

	_, err = posts.SetAutoClose(ctx, poster, job.ID, true)
	require.NoError(t, err)

	isSaved, err := saved.Toggle(ctx, seeker, job.ID)
	require.NoError(t, err)
	assert.True(t, isSaved)

	open, err := listings.ListOpen(ctx, seeker.ID)
	require.NoError(t, err)
	found := false
	for _, j := range open {
		found = found || j.ID == job.ID
	}
	assert.True(t, found, "new job is listed for other users")

	app, err := apps.Apply(ctx, seeker, job.ID, applications.ApplyInput{
		Email:   seeker.Email,
		Phone:   "+49 30 1234567",
		Answers: models.Answers{{Question: "Years of Go?", Answer: "6"}},
	}, applications.Resume{Filename: "cv.pdf", Data: minimalPDF()})
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationInProgress, app.Status)
	assert.Len(t, store.objects, 1)

	_, err = apps.Apply(ctx, seeker, job.ID, applications.ApplyInput{Email: seeker.Email, Phone: "+49 30 1234567",
		Answers: models.Answers{{Question: "Years of Go?", Answer: "6"}}}, applications.Resume{Filename: "cv.pdf", Data: minimalPDF()})
	assert.Error(t, err, "second application is rejected")

	applicants, err := apps.ListApplicants(ctx, poster, job.ID)
	require.NoError(t, err)
	require.Len(t, applicants, 1)
	assert.Contains(t, applicants[0].ResumeURL, "memory://")

	result, err := apps.Transition(ctx, poster, app.ID, models.ApplicationAccepted, models.ApplicationInProgress)
	require.NoError(t, err)
	assert.True(t, result.JobClosed, "the only opening is filled")

	closed := waitFor(t, sub, func(e feed.ChangeEvent) bool {
		return e.Op == feed.OpUpdate && e.JobID == job.ID && e.Job != nil && e.Job.Status == models.JobStatusClosed
	})
	assert.Equal(t, job.ID, closed.Job.ID)

	_, err = apps.Transition(ctx, poster, app.ID, models.ApplicationRejected, models.ApplicationInProgress)
	assert.Error(t, err, "stale decision is refused")

	applied, err := apps.ListApplied(ctx, seeker)
	require.NoError(t, err)
	require.NotEmpty(t, applied)
	assert.Equal(t, models.JobStatusClosed, applied[0].JobStatus)
}

func TestE2E_WithdrawAndDelete(t *testing.T) {
	env := setupEnvironment(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	posts := postings.NewService(env.pg.DB, nil, env.log)
	apps := applications.NewService(applications.LoadConfig(env.cfg.Storage), env.pg.DB,
		&memoryStore{objects: map[string][]byte{}}, nil, env.log)

	poster := uniqueUser("poster")
	seeker := uniqueUser("seeker")

	job, err := posts.Create(ctx, poster, postings.JobInput{
		Title: "E2E Support", Company: "E2E Corp", Location: "Lisbon",
		JobType: "Part Time", Workplace: "On-site", JobDesc: "Help people", Openings: 2,
	})
	require.NoError(t, err)

	_, err = apps.Apply(ctx, seeker, job.ID, applications.ApplyInput{Email: seeker.Email, Phone: "+351 21 1234567"},
		applications.Resume{Filename: "cv.pdf", Data: minimalPDF()})
	require.NoError(t, err)

	assert.Error(t, posts.Delete(ctx, poster, job.ID), "an in-progress application blocks deletion")

	withdrawn, err := apps.Withdraw(ctx, seeker, job.ID, "found another role")
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationWithdrawn, withdrawn.Status)

	_, err = posts.SetStatus(ctx, poster, job.ID, models.JobStatusClosed)
	require.NoError(t, err)
	assert.NoError(t, posts.Delete(ctx, poster, job.ID))
}
