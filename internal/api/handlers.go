/**
 * @description
 * HTTP handlers for the operations-service. Staff call the batch endpoint; customers
 * call the bill payment endpoints. Handlers decode the request, call the application
 * layer and map its sentinel errors onto HTTP statuses.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - internal/app, internal/domain, internal/store: Service logic, models and errors.
 */

package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/whytehoux-projecty/Bank-sub001/internal/domain"
)

// BatchExecutor runs a bulk staff action.
type BatchExecutor interface {
	Execute(ctx context.Context, req domain.BatchActionRequest) domain.BatchOperationResult
}

// BillPayments is the customer-facing payment workflow.
type BillPayments interface {
	UploadInvoice(ctx context.Context, userID string, fileName string, data []byte) (*domain.InvoiceExtraction, error)
	CurrentInvoice(ctx context.Context, userID string) (*domain.InvoiceSession, error)
	DiscardInvoice(ctx context.Context, userID string) error
	IntentFromInvoice(ctx context.Context, userID string, payeeID string, accountID string) (domain.PaymentIntent, error)
	ListPayees(ctx context.Context, userID string) ([]domain.Payee, error)
	EvaluatePayment(ctx context.Context, userID string, intent domain.PaymentIntent) (*domain.PaymentEvaluation, error)
	VerifyTransactionPIN(ctx context.Context, userID string, pin string) error
	PayDirect(ctx context.Context, userID string, intent domain.PaymentIntent) (*domain.PaymentResult, error)
	SubmitVerifiedPayment(ctx context.Context, userID string, intent domain.PaymentIntent, document domain.SupportingDocument) (*domain.VerificationReceipt, error)
	GetVerification(ctx context.Context, userID string, referenceID string) (*domain.VerifiedPaymentSubmission, error)
}

// Handlers holds the application services the HTTP layer calls.
type Handlers struct {
	batch            BatchExecutor
	payments         BillPayments
	invoiceMaxBytes  int64
	documentMaxBytes int64
}

func NewHandlers(batch BatchExecutor, payments BillPayments, invoiceMaxBytes, documentMaxBytes int64) *Handlers {
	return &Handlers{
		batch:            batch,
		payments:         payments,
		invoiceMaxBytes:  invoiceMaxBytes,
		documentMaxBytes: documentMaxBytes,
	}
}

// writeJSON is a helper for writing JSON responses.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
