// Package notify fans out transient, dismissable user notices.
package notify

import (
	"fmt"
	"sync"
	"time"

	"github.com/ayxkaddd/FilesBoard/internal/logging"
	"github.com/ayxkaddd/FilesBoard/internal/metrics"
)

// Notice levels.
const (
	LevelInfo    = "info"
	LevelSuccess = "success"
	LevelError   = "error"
)

// Notice is a short message for the user.
type Notice struct {
	Level   string    `json:"level"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// Notifier publishes notices. Components depend on this interface.
type Notifier interface {
	Publish(n Notice)
}

// Broadcaster manages notice subscribers.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[*Subscription]struct{}
}

// NewBroadcaster creates a new notice broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[*Subscription]struct{}),
	}
}

// Subscription queues notices for one consumer until it drains them.
type Subscription struct {
	mu      sync.Mutex
	pending []Notice
	closed  bool
	ready   chan struct{}
}

// Ready is signalled when notices are waiting.
func (s *Subscription) Ready() <-chan struct{} {
	return s.ready
}

// Drain returns the waiting notices in publish order and empties the queue.
func (s *Subscription) Drain() []Notice {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.pending
	s.pending = nil
	return out
}

func (s *Subscription) push(n Notice) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.pending = append(s.pending, n)
	s.mu.Unlock()

	select {
	case s.ready <- struct{}{}:
	default:
	}
}

// Subscribe adds a new subscriber.
// The caller must call Unsubscribe when done.
func (b *Broadcaster) Subscribe() *Subscription {
	sub := &Subscription{ready: make(chan struct{}, 1)}
	b.mu.Lock()
	b.subscribers[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

// Unsubscribe removes a subscriber. Notices published afterwards are not
// queued for it.
func (b *Broadcaster) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	delete(b.subscribers, sub)
	b.mu.Unlock()

	sub.mu.Lock()
	sub.closed = true
	sub.mu.Unlock()
}

// Publish queues a notice for every subscriber. It never blocks on a
// consumer and never drops a notice.
func (b *Broadcaster) Publish(n Notice) {
	if n.Time.IsZero() {
		n.Time = time.Now()
	}
	logging.Debug("notice",
		logging.String("level", n.Level),
		logging.String("message", n.Message),
	)
	metrics.RecordNotice(n.Level)

	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subscribers {
		sub.push(n)
	}
}

// Info publishes an info notice on n.
func Info(n Notifier, format string, args ...any) {
	publish(n, LevelInfo, format, args...)
}

// Success publishes a success notice on n.
func Success(n Notifier, format string, args ...any) {
	publish(n, LevelSuccess, format, args...)
}

// Error publishes an error notice on n.
func Error(n Notifier, format string, args ...any) {
	publish(n, LevelError, format, args...)
}

func publish(n Notifier, level, format string, args ...any) {
	if n == nil {
		return
	}
	n.Publish(Notice{Level: level, Message: fmt.Sprintf(format, args...)})
}

// Discard is a Notifier that drops every notice.
var Discard Notifier = discard{}

type discard struct{}

func (discard) Publish(Notice) {}

// Recorder is a Notifier that keeps every notice in order. Used by tests.
type Recorder struct {
	mu      sync.Mutex
	notices []Notice
}

// Publish implements Notifier.
func (r *Recorder) Publish(n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

// Notices returns a copy of the recorded notices.
func (r *Recorder) Notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notice, len(r.notices))
	copy(out, r.notices)
	return out
}

// Messages returns "level: message" strings of the recorded notices.
func (r *Recorder) Messages() []string {
	var out []string
	for _, n := range r.Notices() {
		out = append(out, n.Level+": "+n.Message)
	}
	return out
}
