package audit

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"kinerja/pkg/requestcontext"
)

// Recorder accepts events from business services and hands them to a
// buffered worker for persistence. Record never returns an error and never
// blocks: a full inbox drops the event and counts the drop. The trail is
// best-effort by design; completeness is not guaranteed under
// infrastructure failure.
type Recorder struct {
	inbox   chan Event
	logger  *slog.Logger
	onDrop  func()
	onWrite func()
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithLogger sets the logger used for drop and persistence failures.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Recorder) { r.logger = logger }
}

// WithDropCounter registers a callback invoked on every dropped event,
// typically a prometheus counter increment.
func WithDropCounter(fn func()) Option {
	return func(r *Recorder) { r.onDrop = fn }
}

// WithWriteCounter registers a callback invoked on every persisted event.
func WithWriteCounter(fn func()) Option {
	return func(r *Recorder) { r.onWrite = fn }
}

const defaultInboxSize = 1024

// NewRecorder constructs a Recorder with a buffered inbox.
func NewRecorder(opts ...Option) *Recorder {
	r := &Recorder{
		inbox:  make(chan Event, defaultInboxSize),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record enriches the event from the request context, sanitizes snapshots,
// and enqueues it. Failures never reach the caller.
func (r *Recorder) Record(ctx context.Context, event Event) {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.ActorID == uuid.Nil {
		event.ActorID = requestcontext.ActorID(ctx)
	}
	if event.InstitutionID == uuid.Nil {
		event.InstitutionID = requestcontext.InstitutionID(ctx)
	}
	if event.ClientIP == "" {
		event.ClientIP = requestcontext.ClientIP(ctx)
	}
	if event.Device == "" {
		event.Device = DeviceSummary(requestcontext.UserAgent(ctx))
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	event.Before = Sanitize(event.Before)
	event.After = Sanitize(event.After)

	select {
	case r.inbox <- event:
	default:
		if r.onDrop != nil {
			r.onDrop()
		}
		r.logger.WarnContext(ctx, "audit inbox full, event dropped",
			"action", event.Action, "entity_kind", event.Entity.Kind)
	}
}

// Run drains the inbox into the store until the context is cancelled.
// Persistence errors are logged and swallowed so a failing store never
// feeds back into business operations.
func (r *Recorder) Run(ctx context.Context, store Store) {
	for {
		select {
		case <-ctx.Done():
			r.drain(store)
			return
		case event := <-r.inbox:
			r.persist(ctx, store, event)
		}
	}
}

// drain flushes whatever is still buffered at shutdown.
func (r *Recorder) drain(store Store) {
	for {
		select {
		case event := <-r.inbox:
			r.persist(context.Background(), store, event)
		default:
			return
		}
	}
}

func (r *Recorder) persist(ctx context.Context, store Store, event Event) {
	if err := store.Append(ctx, event); err != nil {
		if r.onDrop != nil {
			r.onDrop()
		}
		r.logger.ErrorContext(ctx, "audit append failed",
			"action", event.Action, "error", err)
		return
	}
	if r.onWrite != nil {
		r.onWrite()
	}
}
