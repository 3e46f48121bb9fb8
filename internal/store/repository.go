/**
 * @description
 * This file defines the data access contracts required by the operations-service.
 * Business logic depends on these interfaces rather than on PostgreSQL, Redis or S3
 * directly, which keeps the batch executor and the payment workflow testable with
 * in-memory stubs.
 *
 * @dependencies
 * - context, time: Standard Go libraries.
 * - github.com/jackc/pgx/v5/pgtype: Nullable column assignments in EntityPatch.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/whytehoux-projecty/Bank-sub001/internal/domain"
)

// BatchRepository is the persistence collaborator of the batch executor.
type BatchRepository interface {
	FindUserByID(ctx context.Context, userID string) (*domain.User, error)
	FindWireTransferByID(ctx context.Context, transferID string) (*domain.WireTransfer, error)
	UpdateEntity(ctx context.Context, entityType domain.EntityType, id string, patch EntityPatch) error
}

// AuditLogger records who changed or reviewed what.
type AuditLogger interface {
	LogStatusChange(ctx context.Context, actorID, subjectID, from, to, reason, ipAddress, userAgent string) error
	LogReview(ctx context.Context, actorID, transferID, ownerID, decision, reason, ipAddress, userAgent string) error
}

// PaymentRepository holds payees, source accounts, bill payments and verified submissions.
type PaymentRepository interface {
	FindPayeeByID(ctx context.Context, payeeID string, userID string) (*domain.Payee, error)
	ListPayeesByUserID(ctx context.Context, userID string) ([]domain.Payee, error)
	FindAccountByID(ctx context.Context, accountID string, userID string) (*domain.Account, error)

	CreateBillPayment(ctx context.Context, payment *domain.BillPayment) error
	MarkBillPaymentCompleted(ctx context.Context, paymentID string, providerRef string) error
	MarkBillPaymentFailed(ctx context.Context, paymentID string, failureReason string) error

	CreateVerifiedPaymentSubmission(ctx context.Context, submission *domain.VerifiedPaymentSubmission) error
	FindVerifiedPaymentSubmission(ctx context.Context, referenceID string) (*domain.VerifiedPaymentSubmission, error)
	ClaimVerifiedPaymentForSettlement(ctx context.Context, referenceID string, reviewerID string, note *string) (*domain.VerifiedPaymentSubmission, error)
	MarkVerifiedPaymentSettled(ctx context.Context, referenceID string, paymentID string) error
	MarkVerifiedPaymentFailed(ctx context.Context, referenceID string, failureReason string) error
	RejectVerifiedPayment(ctx context.Context, referenceID string, reviewerID string, note *string) error
	ExpireVerifiedPayments(ctx context.Context, submittedBefore time.Time) ([]domain.VerifiedPaymentSubmission, error)

	GetUserSecurityCredentialByUserID(ctx context.Context, userID string) (*domain.UserSecurityCredential, error)
	RecordFailedTransactionPINAttempt(ctx context.Context, userID string, maxAttempts int, lockoutDurationSeconds int) (*domain.UserSecurityCredential, error)
	ResetTransactionPINFailureState(ctx context.Context, userID string) error
}

// SettingsRepository reads runtime-configurable values managed from the admin portal.
type SettingsRepository interface {
	GetSetting(ctx context.Context, key string) (string, error)
}

// InvoiceSessionStore keeps the transient invoice state of one customer.
type InvoiceSessionStore interface {
	Save(ctx context.Context, userID string, session domain.InvoiceSession) error
	Get(ctx context.Context, userID string) (*domain.InvoiceSession, error)
	Delete(ctx context.Context, userID string) error
}

// DocumentStore persists supporting documents and returns their storage key.
type DocumentStore interface {
	Put(ctx context.Context, key string, contentType string, data []byte) error
}

// EntityPatch lists the columns a batch action writes. Nil fields are left untouched;
// a pgtype.Text with Valid=false writes NULL.
type EntityPatch struct {
	Status           *string
	KYCStatus        *string
	SuspensionReason *pgtype.Text
	ComplianceStatus *string
	ApprovedBy       *string
	ApprovedAt       *time.Time
	RejectionReason  *pgtype.Text
}
