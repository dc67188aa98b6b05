// Package adverseaction owns the legally mandated notice-and-waiting-period
// workflow triggered when an adjudication disposition is unfavorable.
package adverseaction

import (
	"time"

	"github.com/google/uuid"

	dErrors "clearvet/pkg/domain-errors"
)

// Status is the workflow state machine. waiting_period is a derived view, not
// a stored value: storing it would need a clock-driven job, and the guards
// only ever care about elapsed time at transition moments. See
// EffectiveStatus.
type Status string

const (
	StatusInitiated          Status = "initiated"
	StatusPreNoticeSent      Status = "pre_notice_sent"
	StatusWaitingPeriod      Status = "waiting_period"
	StatusCandidateResponded Status = "candidate_responded"
	StatusFinalNoticeSent    Status = "final_notice_sent"
	StatusCompleted          Status = "completed"
	StatusCancelled          Status = "cancelled"
)

// Terminal reports whether no further transition can leave this status.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// ResponseCategory classifies what the candidate did with the pre-notice.
type ResponseCategory string

const (
	ResponseDispute         ResponseCategory = "dispute"
	ResponseAccept          ResponseCategory = "accept"
	ResponseRequestMoreInfo ResponseCategory = "request_more_info"
)

// ParseResponseCategory validates an incoming response category.
func ParseResponseCategory(raw string) (ResponseCategory, error) {
	c := ResponseCategory(raw)
	switch c {
	case ResponseDispute, ResponseAccept, ResponseRequestMoreInfo:
		return c, nil
	}
	return "", dErrors.Newf(dErrors.CodeValidation, "response must be one of dispute, accept, request_more_info; got %q", raw)
}

// FinalDecision is the employer's conclusion after the final notice.
type FinalDecision string

const (
	DecisionProceed     FinalDecision = "proceed"
	DecisionWithdraw    FinalDecision = "withdraw"
	DecisionReviseOffer FinalDecision = "revise_offer"
)

// ParseFinalDecision validates an incoming final decision.
func ParseFinalDecision(raw string) (FinalDecision, error) {
	d := FinalDecision(raw)
	switch d {
	case DecisionProceed, DecisionWithdraw, DecisionReviseOffer:
		return d, nil
	}
	return "", dErrors.Newf(dErrors.CodeValidation, "decision must be one of proceed, withdraw, revise_offer; got %q", raw)
}

// NoticeMethod is the delivery channel for a notice.
type NoticeMethod string

const (
	MethodEmail NoticeMethod = "email"
	MethodSMS   NoticeMethod = "sms"
	MethodMail  NoticeMethod = "mail"
)

// ParseNoticeMethod validates an incoming notice method.
func ParseNoticeMethod(raw string) (NoticeMethod, error) {
	m := NoticeMethod(raw)
	switch m {
	case MethodEmail, MethodSMS, MethodMail:
		return m, nil
	}
	return "", dErrors.Newf(dErrors.CodeValidation, "method must be one of email, sms, mail; got %q", raw)
}

// DocumentType classifies an adverse-action document record.
type DocumentType string

const (
	DocumentPreNotice   DocumentType = "pre_notice"
	DocumentFinalNotice DocumentType = "final_notice"
)

// Document is an opaque artifact record. Append-only: documents are created,
// never updated.
type Document struct {
	ID              uuid.UUID    `json:"id"`
	AdverseActionID uuid.UUID    `json:"adverse_action_id"`
	Type            DocumentType `json:"type"`
	Recipient       string       `json:"recipient"`
	SentAt          time.Time    `json:"sent_at"`
	DeliveryStatus  string       `json:"delivery_status"`
}

// AdverseAction is one notice process for an order. At most one non-terminal
// instance exists per order at a time; historical instances accumulate across
// re-screens.
type AdverseAction struct {
	ID      uuid.UUID `json:"id"`
	OrderID uuid.UUID `json:"order_id"`
	Status  Status    `json:"status"`

	PreNoticeSentAt  *time.Time   `json:"pre_notice_sent_at,omitempty"`
	PreNoticeMethod  NoticeMethod `json:"pre_notice_method,omitempty"`
	WaitingPeriodEnd *time.Time   `json:"waiting_period_end,omitempty"`

	FinalNoticeSentAt *time.Time   `json:"final_notice_sent_at,omitempty"`
	FinalNoticeMethod NoticeMethod `json:"final_notice_method,omitempty"`

	ResponseCategory ResponseCategory `json:"response_category,omitempty"`
	ResponseDetails  string           `json:"response_details,omitempty"`
	ResponseNotes    string           `json:"response_notes,omitempty"`
	RespondedAt      *time.Time       `json:"responded_at,omitempty"`

	FinalDecision      FinalDecision `json:"final_decision,omitempty"`
	FinalDecisionNotes string        `json:"final_decision_notes,omitempty"`
	DecidedAt          *time.Time    `json:"decided_at,omitempty"`

	CancelReason string `json:"cancel_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Documents are populated on reads that request them.
	Documents []Document `json:"documents,omitempty"`
}

// EffectiveStatus derives the externally visible state. While the stored
// status is pre_notice_sent and the waiting period has not elapsed, callers
// observe waiting_period. The state flips lazily; no scheduler is involved and
// correctness never depends on one.
func (a *AdverseAction) EffectiveStatus(now time.Time) Status {
	if a.Status == StatusPreNoticeSent && a.WaitingPeriodEnd != nil && now.Before(*a.WaitingPeriodEnd) {
		return StatusWaitingPeriod
	}
	return a.Status
}

// WaitingElapsed reports whether the statutory interval after the pre-notice
// has passed.
func (a *AdverseAction) WaitingElapsed(now time.Time) bool {
	return a.WaitingPeriodEnd != nil && !now.Before(*a.WaitingPeriodEnd)
}
