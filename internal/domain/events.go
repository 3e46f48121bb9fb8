package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Routing keys published on the events exchange.
const (
	RoutingKeyBatchCompleted            = "batch.completed"
	RoutingKeyBatchExportRequested      = "batch.export.requested"
	RoutingKeyBillPaymentCompleted      = "bill.payment.completed"
	RoutingKeyBillVerificationRequested = "bill.payment.verification.requested"
	RoutingKeyBillVerificationApproved  = "bill.payment.verification.approved"
	RoutingKeyBillVerificationRejected  = "bill.payment.verification.rejected"
	RoutingKeyBillVerificationExpired   = "bill.payment.verification.expired"
	RoutingKeyBillVerificationSettled   = "bill.payment.verification.settled"
)

// BatchCompletedEvent summarizes a finished batch for downstream reporting.
type BatchCompletedEvent struct {
	EntityType     EntityType  `json:"entity_type"`
	Action         BatchAction `json:"action"`
	ActorID        string      `json:"actor_id"`
	TotalItems     int         `json:"total_items"`
	ProcessedItems int         `json:"processed_items"`
	FailedItems    int         `json:"failed_items"`
	CompletedAt    time.Time   `json:"completed_at"`
}

// ExportRequestedEvent hands the ids of a bulk export to the export assembler.
type ExportRequestedEvent struct {
	EntityType  EntityType `json:"entity_type"`
	IDs         []string   `json:"ids"`
	RequestedBy string     `json:"requested_by"`
	RequestedAt time.Time  `json:"requested_at"`
}

// BillPaymentEvent is published when a bill payment completes.
type BillPaymentEvent struct {
	PaymentID   string          `json:"payment_id"`
	UserID      string          `json:"user_id"`
	PayeeID     string          `json:"payee_id"`
	AccountID   string          `json:"account_id"`
	Amount      decimal.Decimal `json:"amount"`
	ReferenceID *string         `json:"reference_id,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
}

// VerificationRequestedEvent notifies the review queue of a new submission.
type VerificationRequestedEvent struct {
	ReferenceID string          `json:"reference_id"`
	UserID      string          `json:"user_id"`
	PayeeID     string          `json:"payee_id"`
	AccountID   string          `json:"account_id"`
	Amount      decimal.Decimal `json:"amount"`
	DocumentKey string          `json:"document_key"`
	Timestamp   time.Time       `json:"timestamp"`
}

// VerificationDecisionEvent is consumed from the reviewer workflow.
type VerificationDecisionEvent struct {
	ReferenceID string  `json:"reference_id"`
	Decision    string  `json:"decision"`
	ReviewerID  string  `json:"reviewer_id"`
	Note        *string `json:"note,omitempty"`
}
