// Copyright 2026 © The Helicon Authors
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	defaultFlushInterval  = 2 * time.Second
	defaultBatchSize      = 32
	defaultRetentionLimit = 10000
	defaultWriteTimeout   = 5 * time.Second
)

// Logger buffers audit events in memory and flushes them to storage in
// batches, either on a fixed interval or as soon as the buffer reaches
// the batch-size threshold. A failed write retains the events for the
// next attempt; events are only dropped past an explicit retention
// limit, and never silently.
type Logger struct {
	store          Store
	flushInterval  time.Duration
	batchSize      int
	retentionLimit int
	writeTimeout   time.Duration
	log            *slog.Logger

	mu      sync.Mutex
	buffer  []Event
	dropped int64

	flushMu sync.Mutex
	kick    chan struct{}
	stopCh  chan struct{}
	doneCh  chan struct{}
	started bool
}

// LoggerOption configures the audit logger.
type LoggerOption func(*Logger)

// WithFlushInterval sets the background flush interval.
func WithFlushInterval(d time.Duration) LoggerOption {
	return func(l *Logger) {
		if d > 0 {
			l.flushInterval = d
		}
	}
}

// WithBatchSize sets the buffer threshold that triggers an immediate flush.
func WithBatchSize(n int) LoggerOption {
	return func(l *Logger) {
		if n > 0 {
			l.batchSize = n
		}
	}
}

// WithRetentionLimit caps the in-memory buffer during storage outages.
// Oldest events past the cap are dropped with an error log.
func WithRetentionLimit(n int) LoggerOption {
	return func(l *Logger) {
		if n > 0 {
			l.retentionLimit = n
		}
	}
}

// WithWriteTimeout bounds each storage write.
func WithWriteTimeout(d time.Duration) LoggerOption {
	return func(l *Logger) {
		if d > 0 {
			l.writeTimeout = d
		}
	}
}

// WithLogger sets the slog logger for flush diagnostics.
func WithLogger(log *slog.Logger) LoggerOption {
	return func(l *Logger) {
		if log != nil {
			l.log = log
		}
	}
}

// NewLogger creates an audit logger writing to store.
func NewLogger(store Store, opts ...LoggerOption) *Logger {
	l := &Logger{
		store:          store,
		flushInterval:  defaultFlushInterval,
		batchSize:      defaultBatchSize,
		retentionLimit: defaultRetentionLimit,
		writeTimeout:   defaultWriteTimeout,
		log:            slog.Default(),
		kick:           make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Start begins the background flush loop. Calling Start twice is a no-op.
func (l *Logger) Start() {
	l.mu.Lock()
	if l.started {
		l.mu.Unlock()
		return
	}
	l.started = true
	l.stopCh = make(chan struct{})
	l.doneCh = make(chan struct{})
	l.mu.Unlock()

	go l.run()
}

// Stop performs one final flush and stops the background loop.
func (l *Logger) Stop(ctx context.Context) error {
	l.mu.Lock()
	if !l.started {
		l.mu.Unlock()
		return l.Flush(ctx)
	}
	l.started = false
	stopCh := l.stopCh
	doneCh := l.doneCh
	l.mu.Unlock()

	close(stopCh)
	<-doneCh
	return l.Flush(ctx)
}

func (l *Logger) run() {
	defer close(l.doneCh)
	ticker := time.NewTicker(l.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopCh:
			return
		case <-ticker.C:
			l.flushWithTimeout()
		case <-l.kick:
			l.flushWithTimeout()
		}
	}
}

func (l *Logger) flushWithTimeout() {
	ctx, cancel := context.WithTimeout(context.Background(), l.writeTimeout)
	defer cancel()
	if err := l.Flush(ctx); err != nil {
		l.log.Error("audit.flush.error", slog.String("error", err.Error()))
	}
}

// Log appends an event to the buffer. It never fails; storage errors
// surface on flush, not here.
func (l *Logger) Log(ev Event) {
	l.mu.Lock()
	l.buffer = append(l.buffer, ev)
	trigger := len(l.buffer) >= l.batchSize
	started := l.started
	l.mu.Unlock()

	if trigger {
		if started {
			select {
			case l.kick <- struct{}{}:
			default:
			}
		} else {
			// No background loop; flush inline so the threshold still
			// bounds the buffer.
			l.flushWithTimeout()
		}
	}
}

// Flush writes the buffered events to storage. The buffer is cleared
// only after a successful write; a failed write keeps the events for
// the next attempt, bounded by the retention limit.
func (l *Logger) Flush(ctx context.Context) error {
	// Serialized so batches are written in order and never interleave.
	l.flushMu.Lock()
	defer l.flushMu.Unlock()

	l.mu.Lock()
	if len(l.buffer) == 0 {
		l.mu.Unlock()
		return nil
	}
	pending := make([]Event, len(l.buffer))
	copy(pending, l.buffer)
	l.mu.Unlock()

	if err := l.store.Write(ctx, pending); err != nil {
		l.enforceRetention()
		return err
	}

	l.mu.Lock()
	// Log only appends, so the written events are still the prefix.
	l.buffer = l.buffer[len(pending):]
	l.mu.Unlock()
	return nil
}

func (l *Logger) enforceRetention() {
	l.mu.Lock()
	defer l.mu.Unlock()
	over := len(l.buffer) - l.retentionLimit
	if over <= 0 {
		return
	}
	l.buffer = append([]Event(nil), l.buffer[over:]...)
	l.dropped += int64(over)
	l.log.Error("audit.retention.dropped",
		slog.Int("dropped", over),
		slog.Int64("dropped_total", l.dropped),
		slog.Int("retained", len(l.buffer)),
	)
}

// Pending returns the number of buffered events not yet flushed.
func (l *Logger) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buffer)
}

// Dropped returns the total number of events lost to the retention cutoff.
func (l *Logger) Dropped() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dropped
}

// Query reads matching events from storage. It does not see buffered
// events; call Flush first for read-your-writes behavior.
func (l *Logger) Query(ctx context.Context, filter Filter) ([]Event, error) {
	return l.store.Query(ctx, filter)
}

// Count returns the number of stored events matching the filter.
func (l *Logger) Count(ctx context.Context, filter Filter) (int, error) {
	return l.store.Count(ctx, filter)
}
