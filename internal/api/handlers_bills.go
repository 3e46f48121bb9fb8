package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/whytehoux-projecty/Bank-sub001/internal/app"
	"github.com/whytehoux-projecty/Bank-sub001/internal/domain"
	"github.com/whytehoux-projecty/Bank-sub001/internal/store"
)

// multipartOverhead leaves room for form fields and boundaries around an upload.
const multipartOverhead = 1 << 20

// billPaymentRequest is the body of the evaluate and pay endpoints. Either an amount
// is given or use_invoice takes it from the open invoice session.
type billPaymentRequest struct {
	PayeeID        string           `json:"payee_id"`
	AccountID      string           `json:"account_id"`
	Amount         *decimal.Decimal `json:"amount"`
	Reference      *string          `json:"reference"`
	UseInvoice     bool             `json:"use_invoice"`
	TransactionPIN string           `json:"transaction_pin"`
}

type invoiceUploadResponse struct {
	Extraction domain.InvoiceExtraction `json:"extraction"`
	Message    string                   `json:"message"`
}

// mapPaymentError converts workflow and store errors to an HTTP status and message.
func mapPaymentError(err error) (int, string) {
	switch {
	case errors.Is(err, app.ErrMissingPayee),
		errors.Is(err, app.ErrInvalidAmount),
		errors.Is(err, app.ErrMissingDocument):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, store.ErrInsufficientFunds):
		return http.StatusPaymentRequired, "Insufficient funds."
	case errors.Is(err, store.ErrPayeeNotFound):
		return http.StatusNotFound, "Payee not found."
	case errors.Is(err, store.ErrAccountNotFound):
		return http.StatusNotFound, "Account not found."
	case errors.Is(err, store.ErrInvoiceSessionNotFound):
		return http.StatusNotFound, "No invoice has been uploaded."
	case errors.Is(err, store.ErrVerificationNotFound):
		return http.StatusNotFound, "Verification not found."
	case errors.Is(err, app.ErrVerificationRequired):
		return http.StatusConflict, err.Error()
	case errors.Is(err, app.ErrInvoiceTooLarge), errors.Is(err, app.ErrDocumentTooLarge):
		return http.StatusRequestEntityTooLarge, err.Error()
	case errors.Is(err, app.ErrUnsupportedDocumentType):
		return http.StatusUnsupportedMediaType, err.Error()
	case errors.Is(err, app.ErrInvoiceParse):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, app.ErrRateLimited):
		return http.StatusTooManyRequests, "Too many uploads. Please wait and try again."
	}
	return http.StatusInternalServerError, "Could not process bill payment request."
}

func (h *Handlers) writePaymentError(w http.ResponseWriter, endpoint string, userID string, err error) {
	var rateErr *app.RateLimitError
	if errors.As(err, &rateErr) && rateErr.RetryAfterSeconds > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(rateErr.RetryAfterSeconds))
	}
	status, message := mapPaymentError(err)
	if status >= http.StatusInternalServerError {
		log.Printf("level=error component=api endpoint=%s user_id=%s err=%v", endpoint, userID, err)
	} else {
		log.Printf("level=info component=api endpoint=%s user_id=%s outcome=reject status=%d err=%v", endpoint, userID, status, err)
	}
	writeError(w, status, message)
}

// authorizeTransactionPIN writes the error response and returns false when the PIN
// does not check out.
func (h *Handlers) authorizeTransactionPIN(r *http.Request, w http.ResponseWriter, userID string, pin string) bool {
	err := h.payments.VerifyTransactionPIN(r.Context(), userID, pin)
	if err == nil {
		return true
	}

	if errors.Is(err, store.ErrTransactionPINNotSet) {
		writeError(w, http.StatusPreconditionFailed, "Transaction PIN is not set. Please create your PIN first.")
		return false
	}
	if errors.Is(err, app.ErrTransactionPINLocked) {
		writeError(w, http.StatusLocked, "Too many incorrect PIN attempts. Please wait and try again.")
		return false
	}
	if errors.Is(err, app.ErrInvalidTransactionPIN) {
		writeError(w, http.StatusUnauthorized, "Invalid transaction PIN.")
		return false
	}

	log.Printf("level=error component=api msg=\"transaction pin verification failed\" user_id=%s err=%v", userID, err)
	writeError(w, http.StatusInternalServerError, "Unable to verify transaction PIN")
	return false
}

func (h *Handlers) resolveIntent(ctx context.Context, userID string, req billPaymentRequest) (domain.PaymentIntent, error) {
	if req.UseInvoice {
		intent, err := h.payments.IntentFromInvoice(ctx, userID, req.PayeeID, req.AccountID)
		if err != nil {
			return domain.PaymentIntent{}, err
		}
		if req.Reference != nil {
			intent.Reference = req.Reference
		}
		return intent, nil
	}
	if req.Amount == nil {
		return domain.PaymentIntent{}, app.ErrInvalidAmount
	}
	return domain.PaymentIntent{
		PayeeID:   strings.TrimSpace(req.PayeeID),
		AccountID: strings.TrimSpace(req.AccountID),
		Amount:    *req.Amount,
		Reference: req.Reference,
	}, nil
}

// UploadInvoiceHandler accepts a PDF invoice as multipart field "file".
func (h *Handlers) UploadInvoiceHandler(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.invoiceMaxBytes+multipartOverhead)
	file, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.writePaymentError(w, "upload_invoice", userID, app.ErrInvoiceTooLarge)
			return
		}
		writeError(w, http.StatusBadRequest, "Multipart field \"file\" is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.invoiceMaxBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Could not read uploaded file")
		return
	}

	extraction, err := h.payments.UploadInvoice(r.Context(), userID, header.Filename, data)
	if err != nil {
		h.writePaymentError(w, "upload_invoice", userID, err)
		return
	}

	writeJSON(w, http.StatusOK, invoiceUploadResponse{
		Extraction: *extraction,
		Message:    "Invoice read. Select a saved payee to continue.",
	})
}

func (h *Handlers) GetInvoiceHandler(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	session, err := h.payments.CurrentInvoice(r.Context(), userID)
	if err != nil {
		h.writePaymentError(w, "get_invoice", userID, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *Handlers) DiscardInvoiceHandler(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	if err := h.payments.DiscardInvoice(r.Context(), userID); err != nil && !errors.Is(err, store.ErrInvoiceSessionNotFound) {
		h.writePaymentError(w, "discard_invoice", userID, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) ListPayeesHandler(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	payees, err := h.payments.ListPayees(r.Context(), userID)
	if err != nil {
		h.writePaymentError(w, "list_payees", userID, err)
		return
	}
	if payees == nil {
		payees = []domain.Payee{}
	}
	writeJSON(w, http.StatusOK, payees)
}

// EvaluatePaymentHandler tells the client whether the payment can be paid directly or
// needs an identity document first.
func (h *Handlers) EvaluatePaymentHandler(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req billPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=evaluate_payment outcome=reject reason=invalid_json err=%v", err)
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	intent, err := h.resolveIntent(r.Context(), userID, req)
	if err != nil {
		h.writePaymentError(w, "evaluate_payment", userID, err)
		return
	}
	evaluation, err := h.payments.EvaluatePayment(r.Context(), userID, intent)
	if err != nil {
		h.writePaymentError(w, "evaluate_payment", userID, err)
		return
	}
	writeJSON(w, http.StatusOK, evaluation)
}

// PayBillHandler pays a bill directly after checking the transaction PIN.
func (h *Handlers) PayBillHandler(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req billPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=pay_bill outcome=reject reason=invalid_json err=%v", err)
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	if strings.TrimSpace(req.PayeeID) == "" {
		h.writePaymentError(w, "pay_bill", userID, app.ErrMissingPayee)
		return
	}
	if !h.authorizeTransactionPIN(r, w, userID, req.TransactionPIN) {
		return
	}

	intent, err := h.resolveIntent(r.Context(), userID, req)
	if err != nil {
		h.writePaymentError(w, "pay_bill", userID, err)
		return
	}
	result, err := h.payments.PayDirect(r.Context(), userID, intent)
	if err != nil {
		h.writePaymentError(w, "pay_bill", userID, err)
		return
	}

	log.Printf("level=info component=api endpoint=pay_bill outcome=completed user_id=%s payment_id=%s", userID, result.PaymentID)
	writeJSON(w, http.StatusCreated, result)
}

// SubmitVerifiedPaymentHandler accepts the payment fields and the identity document
// (multipart field "document") for review.
func (h *Handlers) SubmitVerifiedPaymentHandler(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.documentMaxBytes+multipartOverhead)
	if err := r.ParseMultipartForm(multipartOverhead); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.writePaymentError(w, "submit_verified", userID, app.ErrDocumentTooLarge)
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	req := billPaymentRequest{
		PayeeID:    r.FormValue("payee_id"),
		AccountID:  r.FormValue("account_id"),
		UseInvoice: strings.EqualFold(strings.TrimSpace(r.FormValue("use_invoice")), "true"),
	}
	if raw := strings.TrimSpace(r.FormValue("amount")); raw != "" {
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid amount")
			return
		}
		req.Amount = &amount
	}
	if ref := strings.TrimSpace(r.FormValue("reference")); ref != "" {
		req.Reference = &ref
	}

	document, err := readSupportingDocument(r, h.documentMaxBytes)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Could not read supporting document")
		return
	}

	intent, err := h.resolveIntent(r.Context(), userID, req)
	if err != nil {
		h.writePaymentError(w, "submit_verified", userID, err)
		return
	}
	receipt, err := h.payments.SubmitVerifiedPayment(r.Context(), userID, intent, document)
	if err != nil {
		h.writePaymentError(w, "submit_verified", userID, err)
		return
	}

	log.Printf("level=info component=api endpoint=submit_verified outcome=accepted user_id=%s reference_id=%s", userID, receipt.ReferenceID)
	writeJSON(w, http.StatusAccepted, receipt)
}

// readSupportingDocument returns an empty document when the field is absent so the
// workflow reports it as missing.
func readSupportingDocument(r *http.Request, maxBytes int64) (domain.SupportingDocument, error) {
	file, header, err := r.FormFile("document")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return domain.SupportingDocument{}, nil
		}
		return domain.SupportingDocument{}, err
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		return domain.SupportingDocument{}, err
	}
	return domain.SupportingDocument{
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func (h *Handlers) GetVerificationHandler(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	referenceID := strings.TrimSpace(chi.URLParam(r, "referenceID"))
	if referenceID == "" {
		writeError(w, http.StatusBadRequest, "Reference id is required")
		return
	}

	submission, err := h.payments.GetVerification(r.Context(), userID, referenceID)
	if err != nil {
		h.writePaymentError(w, "get_verification", userID, err)
		return
	}
	writeJSON(w, http.StatusOK, submission)
}
