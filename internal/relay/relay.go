// Package relay maintains per-job push channels and forwards job updates to
// subscribers.
package relay

import (
	"log/slog"
	"sync"
	"time"

	"github.com/askql-systems/askql/internal/metrics"
	"github.com/askql-systems/askql/pkg/types"
)

// DefaultGraceDelay is how long a channel stays open after a terminal update
// so the consumer can read it before teardown.
const DefaultGraceDelay = time.Second

// Sink is one subscriber's push channel. Send errors cause immediate closure
// and deregistration.
type Sink interface {
	Send(update types.JobUpdate) error
	Close() error
}

// Relay tracks at most one sink per job key. The registry is process-local;
// sharing subscribers across server processes needs the fan-out layer.
type Relay struct {
	mu     sync.Mutex
	sinks  map[string]Sink
	timers map[string]*time.Timer
	grace  time.Duration
	logger *slog.Logger
}

// New creates a Relay with the default grace delay.
func New() *Relay {
	return &Relay{
		sinks:  make(map[string]Sink),
		timers: make(map[string]*time.Timer),
		grace:  DefaultGraceDelay,
		logger: slog.Default(),
	}
}

// SetGraceDelay overrides the terminal-state grace delay.
func (r *Relay) SetGraceDelay(d time.Duration) {
	if d > 0 {
		r.grace = d
	}
}

// SetLogger overrides the default logger.
func (r *Relay) SetLogger(l *slog.Logger) {
	if l != nil {
		r.logger = l
	}
}

// SetupConnection registers a sink for a job key and immediately pushes the
// initial state. A later setup for the same key replaces the previous sink
// without closing it; explicit close is the caller's responsibility on
// disconnect. A terminal initial state schedules closure after the grace
// delay rather than closing immediately.
func (r *Relay) SetupConnection(jobKey string, sink Sink, initial types.JobUpdate) {
	r.mu.Lock()
	if t, ok := r.timers[jobKey]; ok {
		t.Stop()
		delete(r.timers, jobKey)
	}
	r.sinks[jobKey] = sink
	r.mu.Unlock()

	metrics.RelayConnections.Add(1)
	r.push(jobKey, sink, initial)
}

// SendUpdate pushes a state to the registered sink, if any. Updates for
// unknown keys are dropped.
func (r *Relay) SendUpdate(jobKey string, update types.JobUpdate) {
	r.mu.Lock()
	sink, ok := r.sinks[jobKey]
	r.mu.Unlock()
	if !ok {
		return
	}
	r.push(jobKey, sink, update)
}

// CloseConnection tears down the channel for a key. It is idempotent and
// safe to call on an unknown key.
func (r *Relay) CloseConnection(jobKey string) {
	r.mu.Lock()
	sink, ok := r.sinks[jobKey]
	delete(r.sinks, jobKey)
	if t, tok := r.timers[jobKey]; tok {
		t.Stop()
		delete(r.timers, jobKey)
	}
	r.mu.Unlock()

	if ok {
		if err := sink.Close(); err != nil {
			r.logger.Debug("closing push channel", "job", jobKey, "error", err)
		}
	}
}

// push writes one update and handles the consequences: a write error tears
// the channel down, a terminal update schedules the grace-delay closure.
func (r *Relay) push(jobKey string, sink Sink, update types.JobUpdate) {
	if err := sink.Send(update); err != nil {
		r.logger.Debug("push channel write failed", "job", jobKey, "error", err)
		r.CloseConnection(jobKey)
		return
	}
	metrics.RelayUpdatesSent.Add(1)

	if update.Terminal() {
		r.scheduleClose(jobKey)
	}
}

func (r *Relay) scheduleClose(jobKey string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.timers[jobKey]; ok {
		return
	}
	r.timers[jobKey] = time.AfterFunc(r.grace, func() {
		r.CloseConnection(jobKey)
	})
}
