// Package feed turns postjob row changes into ordered events and fans them
// out to subscribers.
package feed

import (
	"sync"
	"sync/atomic"
	"time"

	"job-board/internal/common/logger"
	"job-board/internal/common/metrics"
	"job-board/internal/models"
)

type Op string

const (
	OpInsert Op = "INSERT"
	OpUpdate Op = "UPDATE"
	OpDelete Op = "DELETE"
	// OpResync tells subscribers that events may have been missed and
	// their state should be reloaded.
	OpResync Op = "RESYNC"
)

// ChangeEvent is one entry of the postjob event log.
type ChangeEvent struct {
	Seq   uint64      `json:"seq"`
	Op    Op          `json:"op"`
	JobID int64       `json:"jobId"`
	Job   *models.Job `json:"job,omitempty"`
	At    time.Time   `json:"at"`
}

const DefaultBufferSize = 64

// Hub assigns sequence numbers and delivers events to every subscription.
// Delivery never blocks: a full subscriber buffer drops the event and queues
// an OpResync into the slot each subscription keeps in reserve, so the
// subscriber reloads instead of drifting.
type Hub struct {
	mu         sync.RWMutex
	subs       map[uint64]*Subscription
	nextID     uint64
	seq        atomic.Uint64
	bufferSize int
	closed     bool
	logger     logger.Logger
}

func NewHub(bufferSize int, log logger.Logger) *Hub {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Hub{
		subs:       map[uint64]*Subscription{},
		bufferSize: bufferSize,
		logger:     log.WithFields(map[string]interface{}{"component": "feed-hub"}),
	}
}

// Seq is the sequence number of the last published event.
func (h *Hub) Seq() uint64 {
	return h.seq.Load()
}

// Subscribe acquires a subscription. The caller must Release it.
func (h *Hub) Subscribe() *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	sub := &Subscription{
		id:  h.nextID,
		hub: h,
		ch:  make(chan ChangeEvent, h.bufferSize+1),
	}
	if h.closed {
		close(sub.ch)
		sub.released.Store(true)
		return sub
	}
	h.subs[sub.id] = sub
	metrics.FeedSubscribers.Inc()
	return sub
}

// Publish stamps evt with the next sequence number and fans it out.
// Publishes are serialized so every subscriber sees events in Seq order.
func (h *Hub) Publish(evt ChangeEvent) ChangeEvent {
	h.mu.Lock()
	defer h.mu.Unlock()

	evt.Seq = h.seq.Add(1)
	if evt.At.IsZero() {
		evt.At = time.Now().UTC()
	}
	metrics.FeedEvents.WithLabelValues(string(evt.Op)).Inc()

	for _, sub := range h.subs {
		h.deliver(sub, evt)
	}
	return evt
}

// deliver requires the hub lock. Regular events only fill bufferSize slots;
// the last slot is taken by a resync after a drop. A full channel therefore
// ends in an unread resync, which already covers evt.
func (h *Hub) deliver(sub *Subscription, evt ChangeEvent) {
	if len(sub.ch) < h.bufferSize {
		sub.ch <- evt
		return
	}

	sub.dropped.Add(1)
	metrics.FeedEventsDropped.Inc()
	fields := map[string]interface{}{
		"subscription": sub.id,
		"seq":          evt.Seq,
		"op":           string(evt.Op),
	}
	select {
	case sub.ch <- ChangeEvent{Seq: evt.Seq, Op: OpResync, At: evt.At}:
		h.logger.Warn("subscriber buffer full, event dropped; resync queued", fields)
	default:
		h.logger.Debug("subscriber buffer full, event dropped; resync pending", fields)
	}
}

// Subscribers is the current subscription count.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close releases every subscription; later subscriptions are closed immediately.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, sub := range h.subs {
		delete(h.subs, id)
		sub.closeLocked()
	}
}

func (h *Hub) release(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[sub.id]; !ok {
		return
	}
	delete(h.subs, sub.id)
	sub.closeLocked()
}

// Subscription is a live view onto the hub's events.
type Subscription struct {
	id       uint64
	hub      *Hub
	ch       chan ChangeEvent
	dropped  atomic.Int64
	released atomic.Bool
}

// C is closed once the subscription is released.
func (s *Subscription) C() <-chan ChangeEvent {
	return s.ch
}

// Dropped counts events lost to a full buffer.
func (s *Subscription) Dropped() int64 {
	return s.dropped.Load()
}

// Release unsubscribes. Safe to call more than once.
func (s *Subscription) Release() {
	if s.released.Load() {
		return
	}
	s.hub.release(s)
}

// closeLocked requires the hub lock.
func (s *Subscription) closeLocked() {
	if s.released.CompareAndSwap(false, true) {
		close(s.ch)
		metrics.FeedSubscribers.Dec()
	}
}
