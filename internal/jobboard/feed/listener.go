package feed

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"job-board/internal/common/config"
	"job-board/internal/common/logger"
	"job-board/internal/models"

	"github.com/lib/pq"
)

// JobLoader re-reads a row named by a notification. A nil job means the row is gone.
type JobLoader interface {
	LoadJob(ctx context.Context, id int64) (*models.Job, error)
}

type SQLJobLoader struct {
	db *sql.DB
}

func NewSQLJobLoader(db *sql.DB) *SQLJobLoader {
	return &SQLJobLoader{db: db}
}

func (l *SQLJobLoader) LoadJob(ctx context.Context, id int64) (*models.Job, error) {
	row := l.db.QueryRowContext(ctx, `SELECT `+models.JobColumns+` FROM postjob WHERE id = $1`, id)
	job, err := models.ScanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load job %d: %w", id, err)
	}
	return job, nil
}

type notification struct {
	Op Op    `json:"op"`
	ID int64 `json:"id"`
}

type pinger interface {
	Ping() error
	Close() error
}

// Listener consumes postjob NOTIFY payloads and publishes them on a Hub.
type Listener struct {
	notify       <-chan *pq.Notification
	conn         pinger
	loader       JobLoader
	hub          *Hub
	logger       logger.Logger
	pingInterval time.Duration
}

// NewListener opens a dedicated LISTEN connection on cfg.Channel.
func NewListener(dsn string, cfg config.FeedConfig, loader JobLoader, hub *Hub, log logger.Logger) (*Listener, error) {
	log = log.WithFields(map[string]interface{}{"component": "feed-listener", "channel": cfg.Channel})

	pql := pq.NewListener(dsn,
		config.GetDuration(cfg.MinReconnectInterval),
		config.GetDuration(cfg.MaxReconnectInterval),
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				log.Warn("listener connection event", map[string]interface{}{"event": int(ev), "error": err})
			}
		},
	)
	if err := pql.Listen(cfg.Channel); err != nil {
		_ = pql.Close()
		return nil, fmt.Errorf("listen %s: %w", cfg.Channel, err)
	}

	return newListener(pql.Notify, pql, loader, hub, log), nil
}

func newListener(notify <-chan *pq.Notification, conn pinger, loader JobLoader, hub *Hub, log logger.Logger) *Listener {
	return &Listener{
		notify:       notify,
		conn:         conn,
		loader:       loader,
		hub:          hub,
		logger:       log,
		pingInterval: 90 * time.Second,
	}
}

// Run blocks until ctx is done or the notification channel closes.
func (l *Listener) Run(ctx context.Context) error {
	l.logger.Info("change feed listening", nil)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case n, ok := <-l.notify:
			if !ok {
				return nil
			}
			if n == nil {
				// lib/pq sends nil after re-establishing the connection.
				l.logger.Warn("change feed reconnected, requesting resync", nil)
				l.hub.Publish(ChangeEvent{Op: OpResync})
				continue
			}
			l.handle(ctx, n.Extra)
		case <-time.After(l.pingInterval):
			if l.conn != nil {
				go func() {
					if err := l.conn.Ping(); err != nil {
						l.logger.Warn("change feed ping failed", map[string]interface{}{"error": err})
					}
				}()
			}
		}
	}
}

func (l *Listener) handle(ctx context.Context, payload string) {
	var n notification
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		l.logger.Warn("malformed change payload", map[string]interface{}{"payload": payload, "error": err})
		return
	}

	switch n.Op {
	case OpDelete:
		l.hub.Publish(ChangeEvent{Op: OpDelete, JobID: n.ID})
	case OpInsert, OpUpdate:
		job, err := l.loader.LoadJob(ctx, n.ID)
		if err != nil {
			l.logger.Error("change feed row load failed", map[string]interface{}{"jobId": n.ID, "error": err})
			return
		}
		if job == nil {
			// Deleted before we read it; the DELETE notification follows.
			l.logger.Debug("changed row already gone", map[string]interface{}{"jobId": n.ID})
			return
		}
		l.hub.Publish(ChangeEvent{Op: n.Op, JobID: n.ID, Job: job})
	default:
		l.logger.Warn("unknown change op", map[string]interface{}{"op": string(n.Op)})
	}
}

func (l *Listener) Close() error {
	if l.conn == nil {
		return nil
	}
	return l.conn.Close()
}
