package adverseaction

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"clearvet/internal/adverseaction/metrics"
	"clearvet/internal/order"
	"clearvet/internal/timeline"
	dErrors "clearvet/pkg/domain-errors"
	"clearvet/pkg/platform/sentinel"
)

// DefaultStatutoryWaitDays is the statutory minimum interval between
// pre-notice and final notice when nothing is configured.
const DefaultStatutoryWaitDays = 7

// Store persists adverse actions and their documents.
type Store interface {
	Create(ctx context.Context, a *AdverseAction) error
	FindByID(ctx context.Context, id uuid.UUID) (*AdverseAction, error)
	FindActiveByOrder(ctx context.Context, orderID uuid.UUID) (*AdverseAction, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*AdverseAction, error)
	UpdateFrom(ctx context.Context, a *AdverseAction, expected Status) error
	AddDocument(ctx context.Context, doc Document) error
	ListElapsedWaiting(ctx context.Context, now time.Time) ([]*AdverseAction, error)
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

// Notifier is the opaque delivery collaborator. Rendering and transport of
// notices live outside this core.
type Notifier interface {
	SendNotice(ctx context.Context, noticeType DocumentType, method NoticeMethod, recipient string) (deliveryStatus string, err error)
}

// noopNotifier records nothing and always reports queued delivery.
type noopNotifier struct{}

func (noopNotifier) SendNotice(context.Context, DocumentType, NoticeMethod, string) (string, error) {
	return "queued", nil
}

// Service owns the adverse-action lifecycle. Every transition is a single
// compare-status-and-set write followed by best-effort side effects: exactly
// one timeline entry, and for notices a document record whose failure never
// rolls the transition back.
type Service struct {
	store    Store
	orders   OrderStore
	recorder Recorder
	notifier Notifier
	metrics  *metrics.Metrics
	logger   *slog.Logger
	waitDays int
	clock    func() time.Time
}

type Option func(*Service)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithStatutoryWaitDays overrides the waiting-period length.
func WithStatutoryWaitDays(days int) Option {
	return func(s *Service) {
		if days > 0 {
			s.waitDays = days
		}
	}
}

// WithClock sets the clock function for testability.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// New constructs the adverse-action service.
func New(store Store, orders OrderStore, recorder Recorder, opts ...Option) *Service {
	s := &Service{
		store:    store,
		orders:   orders,
		recorder: recorder,
		notifier: noopNotifier{},
		waitDays: DefaultStatutoryWaitDays,
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initiate starts an adverse action for an order. Guards: the order's
// applicant must be contactable, and no other active adverse action may exist
// for the order. The order is flagged requires_action.
func (s *Service) Initiate(ctx context.Context, orderID uuid.UUID, actor string) (*AdverseAction, error) {
	o, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "order not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load order")
	}
	if !o.Applicant.Contactable() {
		return nil, dErrors.New(dErrors.CodeMissingApplicant, "order has no contactable applicant")
	}

	now := s.clock()
	a := &AdverseAction{
		ID:        uuid.New(),
		OrderID:   orderID,
		Status:    StatusInitiated,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Create(ctx, a); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			s.metrics.IncrementGuardRejection("create")
			return nil, dErrors.New(dErrors.CodeAlreadyExists, "an active adverse action already exists for this order")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create adverse action")
	}

	if err := s.orders.UpdateStatus(ctx, orderID, order.StatusRequiresAction); err != nil {
		s.logWarn(ctx, "failed to flag order", "order_id", orderID, "error", err)
	}
	s.finishTransition(ctx, a, "adverse_action_initiated", actor, nil)
	return a, nil
}

// SendPreNotice records the statutory pre-notice: initiated → pre_notice_sent.
// The waiting period starts now and ends waitDays later.
func (s *Service) SendPreNotice(ctx context.Context, id uuid.UUID, methodRaw, actor string) (*AdverseAction, error) {
	method, err := ParseNoticeMethod(methodRaw)
	if err != nil {
		return nil, err
	}
	a, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Status != StatusInitiated {
		return nil, s.rejectStatus(a, "send_pre_notice", StatusInitiated)
	}

	now := s.clock()
	end := now.Add(time.Duration(s.waitDays) * 24 * time.Hour)
	a.PreNoticeSentAt = &now
	a.PreNoticeMethod = method
	a.WaitingPeriodEnd = &end
	a.Status = StatusPreNoticeSent
	a.UpdatedAt = now
	if err := s.commit(ctx, a, StatusInitiated); err != nil {
		return nil, err
	}

	s.appendDocument(ctx, a, DocumentPreNotice, method, now)
	s.finishTransition(ctx, a, "pre_notice_sent", actor, map[string]string{
		"method":             string(method),
		"waiting_period_end": end.UTC().Format(time.RFC3339),
	})
	return s.Get(ctx, id)
}

// RecordCandidateResponse stores what the candidate did with the pre-notice.
// Only valid while the derived status is waiting_period; outside the window
// the record is left unchanged.
func (s *Service) RecordCandidateResponse(ctx context.Context, id uuid.UUID, responseRaw, details, notes, actor string) (*AdverseAction, error) {
	category, err := ParseResponseCategory(responseRaw)
	if err != nil {
		return nil, err
	}
	a, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.clock()
	if a.EffectiveStatus(now) != StatusWaitingPeriod {
		return nil, s.rejectStatus(a, "record_candidate_response", StatusWaitingPeriod)
	}

	a.ResponseCategory = category
	a.ResponseDetails = details
	a.ResponseNotes = notes
	a.RespondedAt = &now
	a.Status = StatusCandidateResponded
	a.UpdatedAt = now
	if err := s.commit(ctx, a, StatusPreNoticeSent); err != nil {
		return nil, err
	}

	s.finishTransition(ctx, a, "candidate_responded", actor, map[string]string{
		"response": string(category),
	})
	return s.Get(ctx, id)
}

// SendFinalNotice records the final notice. The gate is "waiting period
// elapsed OR candidate responded": the interval is a statutory minimum, not a
// hard block, and an explicit response closes the window early. Reaching here
// without a pre-notice is impossible by construction; the stored status would
// still be initiated.
func (s *Service) SendFinalNotice(ctx context.Context, id uuid.UUID, actor string) (*AdverseAction, error) {
	a, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.clock()
	expected := a.Status
	switch a.Status {
	case StatusCandidateResponded:
		// Response recorded; window closed early.
	case StatusPreNoticeSent:
		if !a.WaitingElapsed(now) {
			s.metrics.IncrementGuardRejection("send_final_notice")
			return nil, dErrors.Newf(dErrors.CodeInvalidStatus,
				"waiting period has not elapsed and no candidate response was recorded; requires status candidate_responded or an elapsed waiting period (ends %s)",
				a.WaitingPeriodEnd.UTC().Format(time.RFC3339))
		}
	default:
		return nil, s.rejectStatus(a, "send_final_notice", StatusPreNoticeSent, StatusCandidateResponded)
	}

	method := a.PreNoticeMethod
	a.FinalNoticeSentAt = &now
	a.FinalNoticeMethod = method
	a.Status = StatusFinalNoticeSent
	a.UpdatedAt = now
	if err := s.commit(ctx, a, expected); err != nil {
		return nil, err
	}

	s.appendDocument(ctx, a, DocumentFinalNotice, method, now)
	s.finishTransition(ctx, a, "final_notice_sent", actor, nil)
	return s.Get(ctx, id)
}

// RecordFinalDecision concludes the workflow: final_notice_sent → completed.
// The decision maps back onto order status: proceed→completed,
// withdraw→cancelled, revise_offer→requires_action.
func (s *Service) RecordFinalDecision(ctx context.Context, id uuid.UUID, decisionRaw, notes, actor string) (*AdverseAction, error) {
	decision, err := ParseFinalDecision(decisionRaw)
	if err != nil {
		return nil, err
	}
	a, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Status != StatusFinalNoticeSent {
		return nil, s.rejectStatus(a, "record_final_decision", StatusFinalNoticeSent)
	}

	now := s.clock()
	a.FinalDecision = decision
	a.FinalDecisionNotes = notes
	a.DecidedAt = &now
	a.Status = StatusCompleted
	a.UpdatedAt = now
	if err := s.commit(ctx, a, StatusFinalNoticeSent); err != nil {
		return nil, err
	}

	s.updateOrder(ctx, a.OrderID, orderStatusFor(decision))
	s.finishTransition(ctx, a, "final_decision_recorded", actor, map[string]string{
		"decision": string(decision),
	})
	return s.Get(ctx, id)
}

func orderStatusFor(d FinalDecision) order.Status {
	switch d {
	case DecisionWithdraw:
		return order.StatusCancelled
	case DecisionReviseOffer:
		return order.StatusRequiresAction
	default:
		return order.StatusCompleted
	}
}

// Cancel abandons the workflow from any non-terminal state and restores the
// order to its pre-adverse-action status. Adjudication has always finished by
// the time an adverse action exists, so that status is completed.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reason, actor string) (*AdverseAction, error) {
	a, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Status.Terminal() {
		return nil, s.rejectStatus(a, "cancel",
			StatusInitiated, StatusPreNoticeSent, StatusCandidateResponded, StatusFinalNoticeSent)
	}

	now := s.clock()
	expected := a.Status
	a.CancelReason = reason
	a.Status = StatusCancelled
	a.UpdatedAt = now
	if err := s.commit(ctx, a, expected); err != nil {
		return nil, err
	}

	s.updateOrder(ctx, a.OrderID, order.StatusCompleted)
	s.finishTransition(ctx, a, "adverse_action_cancelled", actor, map[string]string{
		"reason": reason,
	})
	return s.Get(ctx, id)
}

// Get fetches an adverse action with its documents.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*AdverseAction, error) {
	return s.load(ctx, id)
}

// ActiveByOrder returns the order's single non-terminal adverse action.
func (s *Service) ActiveByOrder(ctx context.Context, orderID uuid.UUID) (*AdverseAction, error) {
	a, err := s.store.FindActiveByOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "no active adverse action for order")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load adverse action")
	}
	return a, nil
}

// ListByOrder returns all adverse actions for an order, oldest first.
func (s *Service) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*AdverseAction, error) {
	out, err := s.store.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list adverse actions")
	}
	return out, nil
}

func (s *Service) load(ctx context.Context, id uuid.UUID) (*AdverseAction, error) {
	a, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "adverse action not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load adverse action")
	}
	return a, nil
}

// commit performs the optimistic write. A status race surfaces as
// invalid_status, never a silent overwrite.
func (s *Service) commit(ctx context.Context, a *AdverseAction, expected Status) error {
	if err := s.store.UpdateFrom(ctx, a, expected); err != nil {
		if errors.Is(err, sentinel.ErrInvalidState) {
			return dErrors.Newf(dErrors.CodeInvalidStatus, "adverse action status changed concurrently; requires status %s", expected)
		}
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "adverse action not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist transition")
	}
	return nil
}

// appendDocument records the notice artifact after the status write has
// committed. A failure here is reportable and retryable; it never rolls the
// transition back.
func (s *Service) appendDocument(ctx context.Context, a *AdverseAction, docType DocumentType, method NoticeMethod, sentAt time.Time) {
	o, err := s.orders.FindByID(ctx, a.OrderID)
	recipient := ""
	if err == nil {
		recipient = o.Applicant.Email
		if method == MethodSMS {
			recipient = o.Applicant.Phone
		}
	}
	status, err := s.notifier.SendNotice(ctx, docType, method, recipient)
	if err != nil {
		status = "failed"
		s.logWarn(ctx, "notice delivery failed", "adverse_action_id", a.ID, "type", docType, "error", err)
	}
	doc := Document{
		ID:              uuid.New(),
		AdverseActionID: a.ID,
		Type:            docType,
		Recipient:       recipient,
		SentAt:          sentAt,
		DeliveryStatus:  status,
	}
	if err := s.store.AddDocument(ctx, doc); err != nil {
		s.metrics.IncrementDocumentFailure()
		s.logWarn(ctx, "failed to record notice document", "adverse_action_id", a.ID, "type", docType, "error", err)
	}
}

func (s *Service) updateOrder(ctx context.Context, orderID uuid.UUID, status order.Status) {
	if err := s.orders.UpdateStatus(ctx, orderID, status); err != nil {
		s.logWarn(ctx, "failed to update order status", "order_id", orderID, "status", status, "error", err)
	}
}

func (s *Service) rejectStatus(a *AdverseAction, action string, required ...Status) error {
	s.metrics.IncrementGuardRejection(action)
	return dErrors.Newf(dErrors.CodeInvalidStatus, "%s requires status %s; current status is %s",
		action, statusList(required), a.EffectiveStatus(s.clock()))
}

func statusList(statuses []Status) string {
	out := ""
	for i, st := range statuses {
		if i > 0 {
			out += " or "
		}
		out += string(st)
	}
	return out
}

// finishTransition appends the timeline entry and bumps metrics for a
// committed transition.
func (s *Service) finishTransition(ctx context.Context, a *AdverseAction, action, actor string, detail map[string]string) {
	if s.recorder != nil {
		if detail == nil {
			detail = map[string]string{}
		}
		detail["status"] = string(a.Status)
		err := s.recorder.Record(ctx, timeline.Event{
			OrderID:    a.OrderID,
			EntityType: "adverse_action",
			EntityID:   a.ID,
			Action:     action,
			Actor:      actor,
			Detail:     detail,
		})
		if err != nil {
			s.logWarn(ctx, "failed to append timeline entry", "adverse_action_id", a.ID, "action", action, "error", err)
		}
	}
	s.metrics.IncrementTransition(action)
	s.logAudit(ctx, action, "adverse_action_id", a.ID, "order_id", a.OrderID, "status", a.Status, "actor", actor)
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
