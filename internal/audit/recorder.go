package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Recorder captures structured audit events. It is append-only and uses the
// store layer for persistence so tests can swap sinks easily.
//
// Record is best-effort from the caller's perspective: a sink failure never
// aborts the authentication decision that triggered the event, but every
// failure is surfaced on the diagnostic logger so it is never silently lost.
// Events flow through a single channel with one drain goroutine in async
// mode, so per-caller ordering is preserved.
type Recorder struct {
	store  Store
	events chan Event
	wg     sync.WaitGroup
	logger *slog.Logger
	async  bool
}

// RecorderOption configures the Recorder.
type RecorderOption func(*Recorder)

// WithAsyncBuffer enables async processing with the specified buffer size.
// Events are queued and persisted in a background goroutine.
func WithAsyncBuffer(size int) RecorderOption {
	return func(r *Recorder) {
		if size > 0 {
			r.events = make(chan Event, size)
			r.async = true
		}
	}
}

// WithRecorderLogger sets a logger for diagnostic error reporting.
func WithRecorderLogger(logger *slog.Logger) RecorderOption {
	return func(r *Recorder) {
		r.logger = logger
	}
}

func NewRecorder(store Store, opts ...RecorderOption) *Recorder {
	rec := &Recorder{store: store}
	for _, opt := range opts {
		opt(rec)
	}
	if rec.async {
		rec.wg.Add(1)
		go rec.drain()
	}
	return rec
}

// drain runs in a goroutine and persists events from the channel in order.
func (r *Recorder) drain() {
	defer r.wg.Done()
	for event := range r.events {
		if err := r.store.Append(context.Background(), event); err != nil {
			if r.logger != nil {
				r.logger.Error("failed to persist audit event",
					"error", err,
					"event", string(event.Type),
					"subject_id", event.SubjectID,
				)
			}
		}
	}
}

// Close shuts down the async recorder and waits for pending events to drain.
func (r *Recorder) Close() {
	if r.async && r.events != nil {
		close(r.events)
		r.wg.Wait()
	}
}

// Record captures one event. The timestamp reflects when the triggering
// condition was detected; callers that stamp it themselves win.
func (r *Recorder) Record(ctx context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if r.async {
		// Non-blocking send; drop event if buffer is full to avoid blocking hot path
		select {
		case r.events <- event:
			return
		default:
			if r.logger != nil {
				r.logger.Warn("audit buffer full, event dropped",
					"event", string(event.Type),
					"subject_id", event.SubjectID,
				)
			}
			return
		}
	}
	if err := r.store.Append(ctx, event); err != nil && r.logger != nil {
		r.logger.Error("failed to persist audit event",
			"error", err,
			"event", string(event.Type),
			"subject_id", event.SubjectID,
		)
	}
}

// ListBySubject exposes the trail for one principal.
func (r *Recorder) ListBySubject(ctx context.Context, subjectID string) ([]Event, error) {
	return r.store.ListBySubject(ctx, subjectID)
}
