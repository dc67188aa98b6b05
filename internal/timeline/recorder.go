package timeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Store persists timeline events. Append-only: there is no update or delete.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]Event, error)
}

// Publisher fans an event out to an external sink after it is persisted.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Recorder appends timeline entries and fans them out to the external audit
// collaborator. Fan-out failures are logged, never returned: the persisted
// entry is the source of truth.
type Recorder struct {
	store      Store
	publishers []Publisher
	logger     *slog.Logger
}

type Option func(*Recorder)

func WithPublisher(p Publisher) Option {
	return func(r *Recorder) {
		if p != nil {
			r.publishers = append(r.publishers, p)
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Recorder) {
		r.logger = logger
	}
}

// NewRecorder constructs a Recorder over the given store.
func NewRecorder(store Store, opts ...Option) *Recorder {
	r := &Recorder{store: store}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record fills in identity and timestamp defaults, persists the event, and
// fans it out.
func (r *Recorder) Record(ctx context.Context, event Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if err := r.store.Append(ctx, event); err != nil {
		return err
	}
	for _, p := range r.publishers {
		if err := p.Publish(ctx, event); err != nil && r.logger != nil {
			r.logger.WarnContext(ctx, "timeline fan-out failed",
				"event_id", event.ID,
				"action", event.Action,
				"error", err,
			)
		}
	}
	return nil
}

// ListByOrder returns all entries for an order in append order.
func (r *Recorder) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]Event, error) {
	return r.store.ListByOrder(ctx, orderID)
}
