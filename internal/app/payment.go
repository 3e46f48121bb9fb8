/**
 * @description
 * This file contains the customer bill payment workflow. A bill is paid against a
 * saved payee from one of the customer's accounts, with the amount either typed in
 * or read from an uploaded invoice. Amounts above the verification threshold are
 * never paid directly: the customer attaches an identity document and the payment
 * is held for asynchronous review.
 *
 * Key features:
 * - Invoice upload with size/type checks, delegated parsing and a per-customer session.
 * - Threshold routing (strictly greater than the threshold requires verification).
 * - Direct payment through the core-banking API with a server-side threshold guard.
 * - Verified payment submission backed by object storage and a review event.
 *
 * @dependencies
 * - github.com/google/uuid: Payment and reference ids.
 * - github.com/shopspring/decimal: Amount arithmetic.
 * - internal/domain, internal/store: Domain models and persistence contracts.
 * - pkg/corebankingclient, pkg/extractclient, pkg/rabbitmq: External collaborators.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/whytehoux-projecty/Bank-sub001/internal/domain"
	"github.com/whytehoux-projecty/Bank-sub001/internal/store"
	"github.com/whytehoux-projecty/Bank-sub001/pkg/corebankingclient"
	"github.com/whytehoux-projecty/Bank-sub001/pkg/extractclient"
	"github.com/whytehoux-projecty/Bank-sub001/pkg/rabbitmq"
)

const invoiceUploadRateLimitScope = "invoice_upload"

// InvoiceExtractor parses an uploaded invoice document.
type InvoiceExtractor interface {
	ParseInvoice(ctx context.Context, fileName string, data []byte) (*extractclient.InvoiceFields, error)
}

// PaymentGateway executes a bill payment against the ledger.
type PaymentGateway interface {
	PayBill(ctx context.Context, order corebankingclient.BillPaymentOrder) (*corebankingclient.BillPaymentReceipt, error)
}

// ThresholdSource yields the current verification threshold.
type ThresholdSource interface {
	CurrentThreshold(ctx context.Context) decimal.Decimal
}

// RateLimiter admits at most limit hits per subject within a sliding window.
type RateLimiter interface {
	ConsumeRateLimit(ctx context.Context, scope string, subject string, limit int, window time.Duration) (allowed bool, retryAfterSeconds int, err error)
}

// PaymentWorkflowConfig holds the tunables of the payment workflow.
type PaymentWorkflowConfig struct {
	Exchange                 string
	InvoiceMaxBytes          int64
	DocumentMaxBytes         int64
	UploadRateLimitPerMinute int
	PINMaxAttempts           int
	PINLockoutSeconds        int
}

// PaymentWorkflow orchestrates invoice uploads, threshold evaluation and bill payments.
type PaymentWorkflow struct {
	repo          store.PaymentRepository
	sessions      store.InvoiceSessionStore
	documents     store.DocumentStore
	extractor     InvoiceExtractor
	gateway       PaymentGateway
	thresholds    ThresholdSource
	limiter       RateLimiter
	eventProducer rabbitmq.Publisher
	cfg           PaymentWorkflowConfig
	now           func() time.Time
}

// NewPaymentWorkflow creates a new payment workflow.
func NewPaymentWorkflow(
	repo store.PaymentRepository,
	sessions store.InvoiceSessionStore,
	documents store.DocumentStore,
	extractor InvoiceExtractor,
	gateway PaymentGateway,
	thresholds ThresholdSource,
	limiter RateLimiter,
	producer rabbitmq.Publisher,
	cfg PaymentWorkflowConfig,
) *PaymentWorkflow {
	if cfg.InvoiceMaxBytes <= 0 {
		cfg.InvoiceMaxBytes = 5 << 20
	}
	if cfg.DocumentMaxBytes <= 0 {
		cfg.DocumentMaxBytes = 10 << 20
	}
	if cfg.PINMaxAttempts <= 0 {
		cfg.PINMaxAttempts = 5
	}
	if cfg.PINLockoutSeconds <= 0 {
		cfg.PINLockoutSeconds = 600
	}
	return &PaymentWorkflow{
		repo:          repo,
		sessions:      sessions,
		documents:     documents,
		extractor:     extractor,
		gateway:       gateway,
		thresholds:    thresholds,
		limiter:       limiter,
		eventProducer: producer,
		cfg:           cfg,
		now:           time.Now,
	}
}

// UploadInvoice validates and parses an invoice, then starts a fresh invoice session
// for the customer. Any earlier session, including its payment decision, is replaced.
func (w *PaymentWorkflow) UploadInvoice(ctx context.Context, userID string, fileName string, data []byte) (*domain.InvoiceExtraction, error) {
	if err := w.consumeUploadLimit(ctx, userID); err != nil {
		return nil, err
	}
	if int64(len(data)) > w.cfg.InvoiceMaxBytes {
		return nil, ErrInvoiceTooLarge
	}
	if len(data) == 0 || http.DetectContentType(data) != "application/pdf" {
		return nil, ErrUnsupportedDocumentType
	}

	fields, err := w.extractor.ParseInvoice(ctx, fileName, data)
	if err != nil {
		if errors.Is(err, extractclient.ErrNoAmount) {
			log.Printf("level=info component=payments op=upload_invoice user_id=%s outcome=unparsable err=%v", userID, err)
			return nil, ErrInvoiceParse
		}
		return nil, fmt.Errorf("invoice extraction failed: %w", err)
	}
	if fields == nil || !fields.Amount.IsPositive() {
		return nil, ErrInvoiceParse
	}

	extraction := domain.InvoiceExtraction{
		Amount:        fields.Amount,
		InvoiceNumber: fields.InvoiceNumber,
		PaymentPIN:    fields.PaymentPIN,
	}
	session := domain.InvoiceSession{
		Extraction: extraction,
		FileName:   fileName,
		UploadedAt: w.now().UTC(),
	}
	if err := w.sessions.Save(ctx, userID, session); err != nil {
		return nil, fmt.Errorf("failed to store invoice session: %w", err)
	}

	log.Printf("level=info component=payments op=upload_invoice user_id=%s amount=%s outcome=parsed", userID, extraction.Amount.String())
	return &extraction, nil
}

func (w *PaymentWorkflow) consumeUploadLimit(ctx context.Context, userID string) error {
	if w.limiter == nil || w.cfg.UploadRateLimitPerMinute <= 0 {
		return nil
	}
	allowed, retryAfter, err := w.limiter.ConsumeRateLimit(ctx, invoiceUploadRateLimitScope, userID, w.cfg.UploadRateLimitPerMinute, time.Minute)
	if err != nil {
		// Fail open: a limiter outage must not block uploads.
		log.Printf("level=warn component=payments op=upload_invoice user_id=%s msg=\"rate limiter unavailable\" err=%v", userID, err)
		return nil
	}
	if !allowed {
		return &RateLimitError{RetryAfterSeconds: retryAfter}
	}
	return nil
}

// CurrentInvoice returns the customer's invoice session.
func (w *PaymentWorkflow) CurrentInvoice(ctx context.Context, userID string) (*domain.InvoiceSession, error) {
	return w.sessions.Get(ctx, userID)
}

// DiscardInvoice abandons the customer's invoice session.
func (w *PaymentWorkflow) DiscardInvoice(ctx context.Context, userID string) error {
	return w.sessions.Delete(ctx, userID)
}

// IntentFromInvoice builds a payment intent from the invoice session. The payee is
// always the one the customer selected; nothing on the invoice picks it.
func (w *PaymentWorkflow) IntentFromInvoice(ctx context.Context, userID string, payeeID string, accountID string) (domain.PaymentIntent, error) {
	session, err := w.sessions.Get(ctx, userID)
	if err != nil {
		return domain.PaymentIntent{}, err
	}
	return domain.PaymentIntent{
		PayeeID:   strings.TrimSpace(payeeID),
		AccountID: strings.TrimSpace(accountID),
		Amount:    session.Extraction.Amount,
		Reference: session.Extraction.InvoiceNumber,
	}, nil
}

// ListPayees returns the customer's saved payees.
func (w *PaymentWorkflow) ListPayees(ctx context.Context, userID string) ([]domain.Payee, error) {
	return w.repo.ListPayeesByUserID(ctx, userID)
}

// EvaluatePayment checks funds and routes the payment against the threshold. When an
// invoice session is open the decision is remembered on it.
func (w *PaymentWorkflow) EvaluatePayment(ctx context.Context, userID string, intent domain.PaymentIntent) (*domain.PaymentEvaluation, error) {
	evaluation, err := w.evaluate(ctx, userID, intent)
	if err != nil {
		return nil, err
	}

	session, err := w.sessions.Get(ctx, userID)
	if err == nil {
		decision := evaluation.Decision
		session.Decision = &decision
		if saveErr := w.sessions.Save(ctx, userID, *session); saveErr != nil {
			log.Printf("level=warn component=payments op=evaluate user_id=%s msg=\"failed to record decision on invoice session\" err=%v", userID, saveErr)
		}
	} else if !errors.Is(err, store.ErrInvoiceSessionNotFound) {
		log.Printf("level=warn component=payments op=evaluate user_id=%s msg=\"invoice session unavailable\" err=%v", userID, err)
	}

	return evaluation, nil
}

// evaluate runs the funds check first, then the threshold check.
func (w *PaymentWorkflow) evaluate(ctx context.Context, userID string, intent domain.PaymentIntent) (*domain.PaymentEvaluation, error) {
	if !intent.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	account, err := w.repo.FindAccountByID(ctx, intent.AccountID, userID)
	if err != nil {
		return nil, err
	}
	if account.Balance.LessThan(intent.Amount) {
		return nil, store.ErrInsufficientFunds
	}

	threshold := w.thresholds.CurrentThreshold(ctx)
	decision := domain.DecisionPayDirect
	if intent.Amount.GreaterThan(threshold) {
		decision = domain.DecisionRequireVerification
	}

	return &domain.PaymentEvaluation{
		Decision:  decision,
		Amount:    intent.Amount,
		Threshold: threshold,
		Fee:       decimal.Zero,
	}, nil
}

// PayDirect pays a bill synchronously. Amounts that need verification are refused
// here regardless of what the caller evaluated earlier.
func (w *PaymentWorkflow) PayDirect(ctx context.Context, userID string, intent domain.PaymentIntent) (*domain.PaymentResult, error) {
	if strings.TrimSpace(intent.PayeeID) == "" {
		return nil, ErrMissingPayee
	}

	payee, err := w.repo.FindPayeeByID(ctx, intent.PayeeID, userID)
	if err != nil {
		return nil, err
	}

	evaluation, err := w.evaluate(ctx, userID, intent)
	if err != nil {
		return nil, err
	}
	if evaluation.Decision != domain.DecisionPayDirect {
		log.Printf("level=warn component=payments op=pay_direct user_id=%s amount=%s threshold=%s outcome=reject reason=verification_required",
			userID, intent.Amount.String(), evaluation.Threshold.String())
		return nil, ErrVerificationRequired
	}

	payment := &domain.BillPayment{
		ID:        uuid.NewString(),
		UserID:    userID,
		PayeeID:   payee.ID,
		AccountID: intent.AccountID,
		Amount:    intent.Amount,
		Status:    "pending",
		Reference: intent.Reference,
		CreatedAt: w.now().UTC(),
	}
	if err := w.repo.CreateBillPayment(ctx, payment); err != nil {
		return nil, fmt.Errorf("failed to create bill payment record: %w", err)
	}

	receipt, err := w.gateway.PayBill(ctx, corebankingclient.BillPaymentOrder{
		PaymentID:          payment.ID,
		SourceAccountID:    intent.AccountID,
		PayeeName:          payee.Name,
		PayeeAccountNumber: payee.AccountNumber,
		Amount:             intent.Amount,
		Reference:          derefString(intent.Reference),
	})
	if err != nil {
		if markErr := w.repo.MarkBillPaymentFailed(ctx, payment.ID, err.Error()); markErr != nil {
			log.Printf("level=error component=payments op=pay_direct payment_id=%s msg=\"failed to mark bill payment failed\" err=%v", payment.ID, markErr)
		}
		if errors.Is(err, corebankingclient.ErrInsufficientFunds) {
			return nil, store.ErrInsufficientFunds
		}
		return nil, fmt.Errorf("bill payment failed: %w", err)
	}

	if err := w.repo.MarkBillPaymentCompleted(ctx, payment.ID, receipt.ProviderRef); err != nil {
		// The ledger has already moved the money; report success and leave reconciliation to ops.
		log.Printf("level=error component=payments op=pay_direct payment_id=%s provider_ref=%s msg=\"failed to mark bill payment completed\" err=%v", payment.ID, receipt.ProviderRef, err)
	}

	completedAt := w.now().UTC()
	w.publish(ctx, domain.RoutingKeyBillPaymentCompleted, domain.BillPaymentEvent{
		PaymentID: payment.ID,
		UserID:    userID,
		PayeeID:   payee.ID,
		AccountID: intent.AccountID,
		Amount:    intent.Amount,
		Timestamp: completedAt,
	})
	w.clearSession(ctx, userID)

	log.Printf("level=info component=payments op=pay_direct user_id=%s payment_id=%s amount=%s outcome=completed", userID, payment.ID, intent.Amount.String())
	return &domain.PaymentResult{
		PaymentID:   payment.ID,
		ProviderRef: receipt.ProviderRef,
		Status:      "completed",
		PayeeID:     payee.ID,
		AccountID:   intent.AccountID,
		Amount:      intent.Amount,
		Fee:         decimal.Zero,
		Reference:   intent.Reference,
		CompletedAt: completedAt,
	}, nil
}

var supportedDocumentTypes = map[string]string{
	"application/pdf": ".pdf",
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/webp":      ".webp",
}

// SubmitVerifiedPayment stores the identity document and queues the payment for review.
// Nothing is debited until a reviewer approves it.
func (w *PaymentWorkflow) SubmitVerifiedPayment(ctx context.Context, userID string, intent domain.PaymentIntent, document domain.SupportingDocument) (*domain.VerificationReceipt, error) {
	if strings.TrimSpace(intent.PayeeID) == "" {
		return nil, ErrMissingPayee
	}
	if len(document.Data) == 0 {
		return nil, ErrMissingDocument
	}
	if int64(len(document.Data)) > w.cfg.DocumentMaxBytes {
		return nil, ErrDocumentTooLarge
	}
	contentType := http.DetectContentType(document.Data)
	extension, ok := supportedDocumentTypes[contentType]
	if !ok {
		return nil, ErrUnsupportedDocumentType
	}

	payee, err := w.repo.FindPayeeByID(ctx, intent.PayeeID, userID)
	if err != nil {
		return nil, err
	}
	if _, err := w.evaluate(ctx, userID, intent); err != nil {
		return nil, err
	}

	referenceID := uuid.NewString()
	documentKey := fmt.Sprintf("%s/%s%s", userID, referenceID, extension)
	if err := w.documents.Put(ctx, documentKey, contentType, document.Data); err != nil {
		return nil, fmt.Errorf("failed to store supporting document: %w", err)
	}

	now := w.now().UTC()
	submission := &domain.VerifiedPaymentSubmission{
		ReferenceID: referenceID,
		UserID:      userID,
		PayeeID:     payee.ID,
		AccountID:   intent.AccountID,
		Amount:      intent.Amount,
		Reference:   intent.Reference,
		DocumentKey: documentKey,
		Status:      domain.VerificationPendingReview,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := w.repo.CreateVerifiedPaymentSubmission(ctx, submission); err != nil {
		return nil, fmt.Errorf("failed to create verified payment submission: %w", err)
	}

	w.publish(ctx, domain.RoutingKeyBillVerificationRequested, domain.VerificationRequestedEvent{
		ReferenceID: referenceID,
		UserID:      userID,
		PayeeID:     payee.ID,
		AccountID:   intent.AccountID,
		Amount:      intent.Amount,
		DocumentKey: documentKey,
		Timestamp:   now,
	})
	w.clearSession(ctx, userID)

	log.Printf("level=info component=payments op=submit_verified user_id=%s reference_id=%s amount=%s outcome=pending_review", userID, referenceID, intent.Amount.String())
	return &domain.VerificationReceipt{ReferenceID: referenceID, Status: domain.VerificationPendingReview}, nil
}

// GetVerification returns one of the customer's verified payment submissions.
func (w *PaymentWorkflow) GetVerification(ctx context.Context, userID string, referenceID string) (*domain.VerifiedPaymentSubmission, error) {
	submission, err := w.repo.FindVerifiedPaymentSubmission(ctx, referenceID)
	if err != nil {
		return nil, err
	}
	if submission.UserID != userID {
		return nil, store.ErrVerificationNotFound
	}
	return submission, nil
}

func (w *PaymentWorkflow) clearSession(ctx context.Context, userID string) {
	if err := w.sessions.Delete(ctx, userID); err != nil {
		log.Printf("level=warn component=payments user_id=%s msg=\"failed to clear invoice session\" err=%v", userID, err)
	}
}

func (w *PaymentWorkflow) publish(ctx context.Context, routingKey string, event interface{}) {
	if w.eventProducer == nil {
		return
	}
	if err := w.eventProducer.Publish(ctx, w.cfg.Exchange, routingKey, event); err != nil {
		log.Printf("level=warn component=payments routing_key=%s msg=\"failed to publish event\" err=%v", routingKey, err)
	}
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
