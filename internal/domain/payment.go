/**
 * @description
 * Domain models for customer bill payments. A bill is paid against a saved payee,
 * either directly or, above the configured threshold, after the customer supplies
 * an identity document for asynchronous review.
 *
 * @notes
 * - Amounts use shopspring/decimal; no fee is ever added to a bill payment.
 * - An uploaded invoice never selects or creates a payee on its own.
 */

package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentDecision is the routing outcome of evaluating a payment against the threshold.
type PaymentDecision string

const (
	DecisionPayDirect           PaymentDecision = "PAY_DIRECT"
	DecisionRequireVerification PaymentDecision = "REQUIRE_VERIFICATION"
)

// Verified payment submission states.
const (
	VerificationPendingReview = "pending_review"
	VerificationApproved      = "approved"
	VerificationCompleted     = "completed"
	VerificationRejected      = "rejected"
	VerificationFailed        = "failed"
	VerificationExpired       = "expired"
)

// Payee is a saved billing recipient.
type Payee struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	Name          string    `json:"name"`
	AccountNumber string    `json:"account_number"`
	Category      string    `json:"category"`
	CreatedAt     time.Time `json:"created_at"`
}

// Account is a customer account a bill can be paid from.
type Account struct {
	ID            string          `json:"id"`
	UserID        string          `json:"user_id"`
	AccountNumber string          `json:"account_number"`
	Status        string          `json:"status"`
	Balance       decimal.Decimal `json:"balance"`
}

// InvoiceExtraction is what the document parser could read from an uploaded invoice.
type InvoiceExtraction struct {
	Amount        decimal.Decimal `json:"amount"`
	InvoiceNumber *string         `json:"invoice_number,omitempty"`
	PaymentPIN    *string         `json:"payment_pin,omitempty"`
}

// InvoiceSession is the transient per-customer state of an invoice payment.
// Uploading another invoice replaces the whole session.
type InvoiceSession struct {
	Extraction InvoiceExtraction `json:"extraction"`
	FileName   string            `json:"file_name"`
	Decision   *PaymentDecision  `json:"decision,omitempty"`
	UploadedAt time.Time         `json:"uploaded_at"`
}

// PaymentIntent is a customer's request to pay a payee from one of their accounts.
type PaymentIntent struct {
	PayeeID   string
	AccountID string
	Amount    decimal.Decimal
	Reference *string
}

// PaymentEvaluation is the result of EvaluatePayment.
type PaymentEvaluation struct {
	Decision  PaymentDecision `json:"decision"`
	Amount    decimal.Decimal `json:"amount"`
	Threshold decimal.Decimal `json:"threshold"`
	Fee       decimal.Decimal `json:"fee"`
}

// PaymentResult is the outcome of a synchronous bill payment.
type PaymentResult struct {
	PaymentID   string          `json:"payment_id"`
	ProviderRef string          `json:"provider_reference"`
	Status      string          `json:"status"`
	PayeeID     string          `json:"payee_id"`
	AccountID   string          `json:"account_id"`
	Amount      decimal.Decimal `json:"amount"`
	Fee         decimal.Decimal `json:"fee"`
	Reference   *string         `json:"reference,omitempty"`
	CompletedAt time.Time       `json:"completed_at"`
}

// BillPayment is the persisted record of a bill payment.
type BillPayment struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	PayeeID     string          `json:"payee_id"`
	AccountID   string          `json:"account_id"`
	Amount      decimal.Decimal `json:"amount"`
	Status      string          `json:"status"`
	ProviderRef *string         `json:"provider_reference,omitempty"`
	Reference   *string         `json:"reference,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// SupportingDocument is an identity document attached to a verified payment.
type SupportingDocument struct {
	FileName    string
	ContentType string
	Data        []byte
}

// VerifiedPaymentSubmission is a payment held for review until a reviewer decides.
type VerifiedPaymentSubmission struct {
	ReferenceID   string          `json:"reference_id"`
	UserID        string          `json:"user_id"`
	PayeeID       string          `json:"payee_id"`
	AccountID     string          `json:"account_id"`
	Amount        decimal.Decimal `json:"amount"`
	Reference     *string         `json:"reference,omitempty"`
	DocumentKey   string          `json:"-"`
	Status        string          `json:"status"`
	ReviewerID    *string         `json:"reviewer_id,omitempty"`
	DecisionNote  *string         `json:"decision_note,omitempty"`
	PaymentID     *string         `json:"payment_id,omitempty"`
	FailureReason *string         `json:"failure_reason,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// VerificationReceipt is returned to the customer once a submission is accepted for review.
type VerificationReceipt struct {
	ReferenceID string `json:"reference_id"`
	Status      string `json:"status"`
}

// UserSecurityCredential stores server-owned transaction PIN security metadata.
type UserSecurityCredential struct {
	UserID             string     `json:"user_id"`
	TransactionPINHash string     `json:"-"`
	FailedAttempts     int        `json:"failed_attempts"`
	LockedUntil        *time.Time `json:"locked_until,omitempty"`
}
