package adjudication

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"clearvet/internal/adjudication/metrics"
	matrixmodels "clearvet/internal/matrix/models"
	"clearvet/internal/order"
	"clearvet/internal/timeline"
	dErrors "clearvet/pkg/domain-errors"
	"clearvet/pkg/platform/sentinel"
)

// DecisionStore persists adjudication records.
type DecisionStore interface {
	Create(ctx context.Context, d *Decision) error
	FindLatestByOrder(ctx context.Context, orderID uuid.UUID) (*Decision, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*Decision, error)
	ListPending(ctx context.Context) ([]*Decision, error)
	UpdateOverride(ctx context.Context, d *Decision) error
}

// MatrixReader resolves matrices at evaluation time. The active-matrix query
// runs fresh on every evaluation; the engine never caches the flag.
type MatrixReader interface {
	FindMatrixByID(ctx context.Context, id uuid.UUID) (*matrixmodels.RuleMatrix, error)
	ListActiveByClient(ctx context.Context, clientID uuid.UUID) ([]*matrixmodels.RuleMatrix, error)
}

// OrderStore is the port onto the surrounding ordering platform.
type OrderStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*order.Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status order.Status) error
}

// Recorder appends immutable timeline entries.
type Recorder interface {
	Record(ctx context.Context, event timeline.Event) error
}

// Service orchestrates matrix resolution, rule matching, and decision
// persistence.
type Service struct {
	decisions       DecisionStore
	matrices        MatrixReader
	orders          OrderStore
	recorder        Recorder
	metrics         *metrics.Metrics
	logger          *slog.Logger
	defaultDecision matrixmodels.Decision
	clock           func() time.Time
}

type Option func(*Service)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithClock sets the clock function for testability.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithDefaultDecision overrides the disposition applied when no rule matches.
func WithDefaultDecision(d matrixmodels.Decision) Option {
	return func(s *Service) {
		if d.Valid() {
			s.defaultDecision = d
		}
	}
}

// New constructs the adjudication service.
func New(decisions DecisionStore, matrices MatrixReader, orders OrderStore, recorder Recorder, opts ...Option) *Service {
	s := &Service{
		decisions:       decisions,
		matrices:        matrices,
		orders:          orders,
		recorder:        recorder,
		defaultDecision: matrixmodels.DecisionManualReview,
		clock:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunAdjudication evaluates an order's findings against a matrix and persists
// a new Decision. Re-running for the same order always creates a new record;
// the full history of automated re-evaluations is kept.
//
// When matrixID is nil the client's single active matrix is used; zero active
// matrices fail with no_active_matrix and more than one with ambiguous_matrix.
func (s *Service) RunAdjudication(ctx context.Context, orderID uuid.UUID, matrixID *uuid.UUID, actor string) (*Decision, error) {
	start := s.clock()

	o, m, err := s.loadInputs(ctx, orderID, matrixID)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	facts := BuildFacts(o, now)
	matched := Match(m, facts, now)

	decision := &Decision{
		ID:                uuid.New(),
		OrderID:           o.ID,
		MatrixID:          m.ID,
		AutomatedDecision: s.defaultDecision,
		EvaluatedAt:       now,
	}
	source := "default"
	if matched != nil {
		decision.MatchedRuleID = &matched.ID
		decision.AutomatedDecision = matched.Decision
		source = "rule"
	}

	if err := s.decisions.Create(ctx, decision); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist decision")
	}

	// Unfavorable dispositions flag the order for potential adverse action.
	// Initiation itself stays an explicit staff action; nothing irreversible
	// happens here.
	if decision.AutomatedDecision == matrixmodels.DecisionAutoReject || decision.AutomatedDecision == matrixmodels.DecisionManualReview {
		if err := s.orders.UpdateStatus(ctx, o.ID, order.StatusRequiresAction); err != nil {
			// The decision record is already the source of truth; losing the
			// flag is recoverable and must not fail the run.
			s.logWarn(ctx, "failed to flag order for review", "order_id", o.ID, "error", err)
		}
	}

	s.record(ctx, timeline.Event{
		OrderID:    o.ID,
		EntityType: "decision",
		EntityID:   decision.ID,
		Action:     "adjudication_run",
		Actor:      actor,
		Detail: map[string]string{
			"matrix_id":          m.ID.String(),
			"automated_decision": string(decision.AutomatedDecision),
			"match_source":       source,
		},
	})
	s.metrics.IncrementDecision(string(decision.AutomatedDecision), source)
	s.metrics.ObserveEvaluateLatency(s.clock().Sub(start))
	s.logAudit(ctx, "adjudication_run",
		"order_id", o.ID,
		"matrix_id", m.ID,
		"decision_id", decision.ID,
		"automated_decision", decision.AutomatedDecision,
	)
	return decision, nil
}

// loadInputs fetches the order and resolves the matrix. With an explicit
// matrix id both loads run concurrently; implicit resolution needs the
// order's client first.
func (s *Service) loadInputs(ctx context.Context, orderID uuid.UUID, matrixID *uuid.UUID) (*order.Order, *matrixmodels.RuleMatrix, error) {
	var (
		o *order.Order
		m *matrixmodels.RuleMatrix
	)

	if matrixID != nil {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			o, err = s.loadOrder(gctx, orderID)
			return err
		})
		g.Go(func() error {
			var err error
			m, err = s.matrices.FindMatrixByID(gctx, *matrixID)
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "matrix not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load matrix")
		})
		if err := g.Wait(); err != nil {
			return nil, nil, err
		}
		return o, m, nil
	}

	o, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	active, err := s.matrices.ListActiveByClient(ctx, o.ClientID)
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve active matrix")
	}
	switch len(active) {
	case 0:
		return nil, nil, dErrors.New(dErrors.CodeNoActiveMatrix, "client has no active matrix and none was specified")
	case 1:
		return o, active[0], nil
	default:
		return nil, nil, dErrors.Newf(dErrors.CodeAmbiguousMatrix, "client has %d active matrices; specify one", len(active))
	}
}

func (s *Service) loadOrder(ctx context.Context, orderID uuid.UUID) (*order.Order, error) {
	o, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "order not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load order")
	}
	return o, nil
}

// Override records a human final decision on the order's latest Decision. It
// never re-runs matching and never touches the automated decision. Reviewers
// may always override, and may re-override: last write wins, every write is
// audited.
func (s *Service) Override(ctx context.Context, orderID uuid.UUID, decisionRaw, notes, actor string) (*Decision, error) {
	final, err := matrixmodels.ParseDecision(decisionRaw)
	if err != nil {
		return nil, err
	}

	d, err := s.decisions.FindLatestByOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "no decision exists for order")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load decision")
	}

	now := s.clock()
	d.FinalDecision = &final
	d.OverrideNotes = notes
	d.OverriddenBy = actor
	d.OverriddenAt = &now
	if err := s.decisions.UpdateOverride(ctx, d); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist override")
	}

	s.record(ctx, timeline.Event{
		OrderID:    orderID,
		EntityType: "decision",
		EntityID:   d.ID,
		Action:     "decision_overridden",
		Actor:      actor,
		Detail: map[string]string{
			"final_decision": string(final),
			"notes":          notes,
		},
	})
	s.metrics.IncrementOverride(string(final))
	s.logAudit(ctx, "decision_overridden",
		"order_id", orderID,
		"decision_id", d.ID,
		"final_decision", final,
		"overridden_by", actor,
	)
	return d, nil
}

// ListPending returns decisions awaiting human review: automated
// manual_review with no final decision yet.
func (s *Service) ListPending(ctx context.Context) ([]*Decision, error) {
	out, err := s.decisions.ListPending(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list pending decisions")
	}
	return out, nil
}

// ListByOrder returns the full decision history for an order, newest first.
func (s *Service) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*Decision, error) {
	out, err := s.decisions.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list decisions")
	}
	return out, nil
}

func (s *Service) record(ctx context.Context, event timeline.Event) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.Record(ctx, event); err != nil {
		s.logWarn(ctx, "failed to append timeline entry", "order_id", event.OrderID, "action", event.Action, "error", err)
	}
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if s.logger == nil {
		return
	}
	args := append(attributes, "event", event, "log_type", "audit")
	s.logger.InfoContext(ctx, event, args...)
}

func (s *Service) logWarn(ctx context.Context, msg string, attributes ...any) {
	if s.logger != nil {
		s.logger.WarnContext(ctx, msg, attributes...)
	}
}
