package adverseaction

import (
	"context"
	"log/slog"
	"time"

	"clearvet/internal/timeline"
)

// Sweeper periodically surfaces adverse actions whose waiting period has
// elapsed. The state machine does not depend on it; it exists so operators
// see elapsed windows on the timeline without waiting for the next staff
// interaction.
type Sweeper struct {
	store    Store
	recorder Recorder
	logger   *slog.Logger
	interval time.Duration
	clock    func() time.Time

	// noted tracks actions already surfaced so restarts are the only
	// source of duplicate entries.
	noted map[string]struct{}
}

// NewSweeper constructs a sweeper. A non-positive interval defaults to one
// hour.
func NewSweeper(store Store, recorder Recorder, logger *slog.Logger, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Sweeper{
		store:    store,
		recorder: recorder,
		logger:   logger,
		interval: interval,
		clock:    time.Now,
		noted:    make(map[string]struct{}),
	}
}

// Run blocks until ctx is cancelled, sweeping once per interval.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	now := s.clock()
	elapsed, err := s.store.ListElapsedWaiting(ctx, now)
	if err != nil {
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "waiting period sweep failed", "error", err)
		}
		return
	}
	for _, a := range elapsed {
		key := a.ID.String()
		if _, seen := s.noted[key]; seen {
			continue
		}
		s.noted[key] = struct{}{}
		if s.recorder != nil {
			err := s.recorder.Record(ctx, timeline.Event{
				OrderID:    a.OrderID,
				EntityType: "adverse_action",
				EntityID:   a.ID,
				Action:     "waiting_period_elapsed",
				Actor:      "system",
				Detail: map[string]string{
					"waiting_period_end": a.WaitingPeriodEnd.UTC().Format(time.RFC3339),
				},
			})
			if err != nil && s.logger != nil {
				s.logger.WarnContext(ctx, "failed to record elapsed waiting period", "adverse_action_id", a.ID, "error", err)
			}
		}
		if s.logger != nil {
			s.logger.InfoContext(ctx, "waiting period elapsed",
				"adverse_action_id", a.ID, "order_id", a.OrderID, "log_type", "audit")
		}
	}
}
