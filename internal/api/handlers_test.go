package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/whytehoux-projecty/Bank-sub001/internal/app"
	"github.com/whytehoux-projecty/Bank-sub001/internal/domain"
	"github.com/whytehoux-projecty/Bank-sub001/internal/store"
)

var pdfBytes = []byte("%PDF-1.7\n1 0 obj\n<< /Type /Catalog >>\nendobj\n")

type batchExecutorStub struct {
	calls  []domain.BatchActionRequest
	result domain.BatchOperationResult
}

func (s *batchExecutorStub) Execute(ctx context.Context, req domain.BatchActionRequest) domain.BatchOperationResult {
	s.calls = append(s.calls, req)
	return s.result
}

type billPaymentsStub struct {
	pinErr     error
	pinChecked bool
	uploadErr  error
	payErr     error
	submitErr  error
	verifyErr  error

	invoiceIntent domain.PaymentIntent
	invoiceErr    error

	uploaded  []byte
	paid      []domain.PaymentIntent
	submitted []domain.SupportingDocument
}

func (s *billPaymentsStub) UploadInvoice(ctx context.Context, userID string, fileName string, data []byte) (*domain.InvoiceExtraction, error) {
	s.uploaded = data
	if s.uploadErr != nil {
		return nil, s.uploadErr
	}
	return &domain.InvoiceExtraction{Amount: decimal.RequireFromString("120.50")}, nil
}

func (s *billPaymentsStub) CurrentInvoice(ctx context.Context, userID string) (*domain.InvoiceSession, error) {
	if s.invoiceErr != nil {
		return nil, s.invoiceErr
	}
	return &domain.InvoiceSession{Extraction: domain.InvoiceExtraction{Amount: s.invoiceIntent.Amount}}, nil
}

func (s *billPaymentsStub) DiscardInvoice(ctx context.Context, userID string) error {
	return s.invoiceErr
}

func (s *billPaymentsStub) IntentFromInvoice(ctx context.Context, userID string, payeeID string, accountID string) (domain.PaymentIntent, error) {
	if s.invoiceErr != nil {
		return domain.PaymentIntent{}, s.invoiceErr
	}
	intent := s.invoiceIntent
	intent.PayeeID = payeeID
	intent.AccountID = accountID
	return intent, nil
}

func (s *billPaymentsStub) ListPayees(ctx context.Context, userID string) ([]domain.Payee, error) {
	return nil, nil
}

func (s *billPaymentsStub) EvaluatePayment(ctx context.Context, userID string, intent domain.PaymentIntent) (*domain.PaymentEvaluation, error) {
	if !intent.Amount.IsPositive() {
		return nil, app.ErrInvalidAmount
	}
	return &domain.PaymentEvaluation{Decision: domain.DecisionPayDirect, Amount: intent.Amount, Threshold: decimal.NewFromInt(10000), Fee: decimal.Zero}, nil
}

func (s *billPaymentsStub) VerifyTransactionPIN(ctx context.Context, userID string, pin string) error {
	s.pinChecked = true
	return s.pinErr
}

func (s *billPaymentsStub) PayDirect(ctx context.Context, userID string, intent domain.PaymentIntent) (*domain.PaymentResult, error) {
	s.paid = append(s.paid, intent)
	if s.payErr != nil {
		return nil, s.payErr
	}
	return &domain.PaymentResult{PaymentID: "pay-1", Status: "completed", Amount: intent.Amount}, nil
}

func (s *billPaymentsStub) SubmitVerifiedPayment(ctx context.Context, userID string, intent domain.PaymentIntent, document domain.SupportingDocument) (*domain.VerificationReceipt, error) {
	s.submitted = append(s.submitted, document)
	if s.submitErr != nil {
		return nil, s.submitErr
	}
	return &domain.VerificationReceipt{ReferenceID: "ref-1", Status: domain.VerificationPendingReview}, nil
}

func (s *billPaymentsStub) GetVerification(ctx context.Context, userID string, referenceID string) (*domain.VerifiedPaymentSubmission, error) {
	if s.verifyErr != nil {
		return nil, s.verifyErr
	}
	return &domain.VerifiedPaymentSubmission{ReferenceID: referenceID, UserID: userID, Status: domain.VerificationPendingReview}, nil
}

type testServer struct {
	batch    *batchExecutorStub
	payments *billPaymentsStub
	router   http.Handler
	t        *testing.T
}

func newTestServer(t *testing.T) *testServer {
	batch := &batchExecutorStub{result: domain.BatchOperationResult{Success: true, TotalItems: 1, ProcessedItems: 1}}
	payments := &billPaymentsStub{invoiceIntent: domain.PaymentIntent{Amount: decimal.RequireFromString("250")}}
	handlers := NewHandlers(batch, payments, 5<<20, 10<<20)
	router := NewRouter(handlers, RouterConfig{Keys: testKeyProvider(t), AdminRole: "admin"})
	return &testServer{batch: batch, payments: payments, router: router, t: t}
}

func (s *testServer) do(req *http.Request, sub string, roles ...string) *httptest.ResponseRecorder {
	claims := validClaims(sub)
	if len(roles) > 0 {
		claims["roles"] = roles
	}
	req.Header.Set("Authorization", "Bearer "+signToken(s.t, testKeyID, claims))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func jsonRequest(method, path string, body interface{}) *http.Request {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestBatchHandler_RunsBatchWithActor(t *testing.T) {
	s := newTestServer(t)
	req := jsonRequest(http.MethodPost, "/admin/batch", map[string]interface{}{
		"entityType": "USER",
		"action":     "SUSPEND",
		"ids":        []string{"u1", "u2"},
		"data":       map[string]string{"reason": "fraud"},
	})
	req.Header.Set("X-Real-IP", "203.0.113.7")
	req.Header.Set("User-Agent", "portal/1.0")

	rec := s.do(req, "staff-1", "admin")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if len(s.batch.calls) != 1 {
		t.Fatalf("expected one batch execution, got %d", len(s.batch.calls))
	}
	call := s.batch.calls[0]
	if call.EntityType != domain.EntityUser || call.Action != domain.ActionSuspend {
		t.Fatalf("unexpected request %+v", call)
	}
	if suspension, ok := call.Data.(domain.Suspension); !ok || suspension.Reason != "fraud" {
		t.Fatalf("expected suspension payload, got %#v", call.Data)
	}
	want := domain.BatchActor{UserID: "staff-1", IPAddress: "203.0.113.7", UserAgent: "portal/1.0"}
	if call.Actor != want {
		t.Fatalf("expected actor %+v, got %+v", want, call.Actor)
	}

	var result domain.BatchOperationResult
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !result.Success || result.ProcessedItems != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestBatchHandler_RejectsMalformedRequests(t *testing.T) {
	tests := []struct {
		name string
		body interface{}
	}{
		{name: "empty ids", body: map[string]interface{}{"entityType": "USER", "action": "ACTIVATE", "ids": []string{}}},
		{name: "unknown action", body: map[string]interface{}{"entityType": "USER", "action": "PURGE", "ids": []string{"u1"}}},
		{name: "missing status", body: map[string]interface{}{"entityType": "CARD", "action": "UPDATE_STATUS", "ids": []string{"c1"}, "data": map[string]string{}}},
		{name: "missing kyc status", body: map[string]interface{}{"entityType": "USER", "action": "UPDATE_KYC_STATUS", "ids": []string{"u1"}}},
		{name: "not json", body: "ids"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			rec := s.do(jsonRequest(http.MethodPost, "/admin/batch", tt.body), "staff-1", "admin")

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
			if len(s.batch.calls) != 0 {
				t.Fatal("expected executor not to run")
			}
		})
	}
}

func TestBatchHandler_OversizedBatchReachesExecutor(t *testing.T) {
	s := newTestServer(t)
	ids := make([]string, 101)
	for i := range ids {
		ids[i] = fmt.Sprintf("u%d", i)
	}
	s.batch.result = domain.RejectedBatch(101, "batch", "Maximum 100 items per batch")

	rec := s.do(jsonRequest(http.MethodPost, "/admin/batch", map[string]interface{}{
		"entityType": "USER", "action": "ACTIVATE", "ids": ids,
	}), "staff-1", "admin")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with a rejected result, got %d", rec.Code)
	}
	if len(s.batch.calls) != 1 || len(s.batch.calls[0].IDs) != 101 {
		t.Fatal("expected the executor to apply the size cap")
	}
}

func TestBatchHandler_RequiresAdminRole(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(jsonRequest(http.MethodPost, "/admin/batch", map[string]interface{}{
		"entityType": "USER", "action": "ACTIVATE", "ids": []string{"u1"},
	}), "user-1")

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if len(s.batch.calls) != 0 {
		t.Fatal("expected executor not to run")
	}
}

func TestPayBillHandler(t *testing.T) {
	tests := []struct {
		name        string
		body        map[string]interface{}
		pinErr      error
		payErr      error
		wantStatus  int
		wantPINRead bool
	}{
		{
			name:        "pays with explicit amount",
			body:        map[string]interface{}{"payee_id": "payee-1", "account_id": "acc-1", "amount": "500.00", "transaction_pin": "1234"},
			wantStatus:  http.StatusCreated,
			wantPINRead: true,
		},
		{
			name:        "pays the invoice amount",
			body:        map[string]interface{}{"payee_id": "payee-1", "account_id": "acc-1", "use_invoice": true, "transaction_pin": "1234"},
			wantStatus:  http.StatusCreated,
			wantPINRead: true,
		},
		{
			name:       "missing payee is rejected before the pin",
			body:       map[string]interface{}{"account_id": "acc-1", "amount": "500", "transaction_pin": "1234"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:        "wrong pin",
			body:        map[string]interface{}{"payee_id": "payee-1", "account_id": "acc-1", "amount": "500", "transaction_pin": "0000"},
			pinErr:      app.ErrInvalidTransactionPIN,
			wantStatus:  http.StatusUnauthorized,
			wantPINRead: true,
		},
		{
			name:        "locked pin",
			body:        map[string]interface{}{"payee_id": "payee-1", "account_id": "acc-1", "amount": "500", "transaction_pin": "0000"},
			pinErr:      app.ErrTransactionPINLocked,
			wantStatus:  http.StatusLocked,
			wantPINRead: true,
		},
		{
			name:        "pin never set",
			body:        map[string]interface{}{"payee_id": "payee-1", "account_id": "acc-1", "amount": "500", "transaction_pin": "1234"},
			pinErr:      store.ErrTransactionPINNotSet,
			wantStatus:  http.StatusPreconditionFailed,
			wantPINRead: true,
		},
		{
			name:        "above threshold needs verification",
			body:        map[string]interface{}{"payee_id": "payee-1", "account_id": "acc-1", "amount": "10000.01", "transaction_pin": "1234"},
			payErr:      app.ErrVerificationRequired,
			wantStatus:  http.StatusConflict,
			wantPINRead: true,
		},
		{
			name:        "insufficient funds",
			body:        map[string]interface{}{"payee_id": "payee-1", "account_id": "acc-1", "amount": "500", "transaction_pin": "1234"},
			payErr:      store.ErrInsufficientFunds,
			wantStatus:  http.StatusPaymentRequired,
			wantPINRead: true,
		},
		{
			name:        "gateway failure",
			body:        map[string]interface{}{"payee_id": "payee-1", "account_id": "acc-1", "amount": "500", "transaction_pin": "1234"},
			payErr:      errors.New("bill payment failed: timeout"),
			wantStatus:  http.StatusInternalServerError,
			wantPINRead: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			s.payments.pinErr = tt.pinErr
			s.payments.payErr = tt.payErr

			rec := s.do(jsonRequest(http.MethodPost, "/bills/pay", tt.body), "user-1")

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d (%s)", tt.wantStatus, rec.Code, rec.Body.String())
			}
			if s.payments.pinChecked != tt.wantPINRead {
				t.Fatalf("expected pin checked=%v, got %v", tt.wantPINRead, s.payments.pinChecked)
			}
			if tt.pinErr != nil && len(s.payments.paid) != 0 {
				t.Fatal("expected no payment after a failed pin check")
			}
		})
	}
}

func TestPayBillHandler_UsesInvoiceAmount(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(jsonRequest(http.MethodPost, "/bills/pay", map[string]interface{}{
		"payee_id": "payee-1", "account_id": "acc-1", "use_invoice": true, "transaction_pin": "1234",
	}), "user-1")

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if len(s.payments.paid) != 1 || !s.payments.paid[0].Amount.Equal(decimal.RequireFromString("250")) || s.payments.paid[0].PayeeID != "payee-1" {
		t.Fatalf("unexpected intent %+v", s.payments.paid)
	}
}

func TestEvaluatePaymentHandler(t *testing.T) {
	tests := []struct {
		name       string
		body       map[string]interface{}
		invoiceErr error
		wantStatus int
	}{
		{name: "explicit amount", body: map[string]interface{}{"payee_id": "payee-1", "account_id": "acc-1", "amount": 900}, wantStatus: http.StatusOK},
		{name: "missing amount", body: map[string]interface{}{"payee_id": "payee-1", "account_id": "acc-1"}, wantStatus: http.StatusBadRequest},
		{name: "no invoice session", body: map[string]interface{}{"payee_id": "payee-1", "account_id": "acc-1", "use_invoice": true}, invoiceErr: store.ErrInvoiceSessionNotFound, wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			s.payments.invoiceErr = tt.invoiceErr

			rec := s.do(jsonRequest(http.MethodPost, "/bills/evaluate", tt.body), "user-1")

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d (%s)", tt.wantStatus, rec.Code, rec.Body.String())
			}
		})
	}
}

func multipartRequest(t *testing.T, path string, fields map[string]string, fileField, fileName string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if fileField != "" {
		part, err := writer.CreateFormFile(fileField, fileName)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		part.Write(data)
	}
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestUploadInvoiceHandler(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(multipartRequest(t, "/bills/invoice", nil, "file", "invoice.pdf", pdfBytes), "user-1")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if !bytes.Equal(s.payments.uploaded, pdfBytes) {
		t.Fatal("expected uploaded bytes forwarded to the workflow")
	}
	var resp invoiceUploadResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Extraction.Amount.Equal(decimal.RequireFromString("120.50")) {
		t.Fatalf("unexpected extraction %+v", resp.Extraction)
	}
}

func TestUploadInvoiceHandler_Errors(t *testing.T) {
	tests := []struct {
		name           string
		uploadErr      error
		wantStatus     int
		wantRetryAfter string
	}{
		{name: "rate limited", uploadErr: &app.RateLimitError{RetryAfterSeconds: 42}, wantStatus: http.StatusTooManyRequests, wantRetryAfter: "42"},
		{name: "not a pdf", uploadErr: app.ErrUnsupportedDocumentType, wantStatus: http.StatusUnsupportedMediaType},
		{name: "too large", uploadErr: app.ErrInvoiceTooLarge, wantStatus: http.StatusRequestEntityTooLarge},
		{name: "unreadable", uploadErr: fmt.Errorf("wrapped: %w", app.ErrInvoiceParse), wantStatus: http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			s.payments.uploadErr = tt.uploadErr

			rec := s.do(multipartRequest(t, "/bills/invoice", nil, "file", "invoice.pdf", pdfBytes), "user-1")

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			if got := rec.Header().Get("Retry-After"); got != tt.wantRetryAfter {
				t.Fatalf("expected Retry-After %q, got %q", tt.wantRetryAfter, got)
			}
		})
	}
}

func TestUploadInvoiceHandler_MissingFile(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(multipartRequest(t, "/bills/invoice", map[string]string{"note": "x"}, "", "", nil), "user-1")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if s.payments.uploaded != nil {
		t.Fatal("expected workflow not to be called")
	}
}

func TestSubmitVerifiedPaymentHandler(t *testing.T) {
	s := newTestServer(t)
	fields := map[string]string{"payee_id": "payee-1", "account_id": "acc-1", "amount": "15000"}
	rec := s.do(multipartRequest(t, "/bills/pay/verified", fields, "document", "passport.pdf", pdfBytes), "user-1")

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d (%s)", rec.Code, rec.Body.String())
	}
	if len(s.payments.submitted) != 1 || !bytes.Equal(s.payments.submitted[0].Data, pdfBytes) || s.payments.submitted[0].FileName != "passport.pdf" {
		t.Fatalf("unexpected document %+v", s.payments.submitted)
	}
	var receipt domain.VerificationReceipt
	if err := json.NewDecoder(rec.Body).Decode(&receipt); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if receipt.ReferenceID != "ref-1" || receipt.Status != domain.VerificationPendingReview {
		t.Fatalf("unexpected receipt %+v", receipt)
	}
}

func TestSubmitVerifiedPaymentHandler_Errors(t *testing.T) {
	tests := []struct {
		name       string
		fields     map[string]string
		withFile   bool
		submitErr  error
		wantStatus int
	}{
		{name: "missing document", fields: map[string]string{"payee_id": "payee-1", "account_id": "acc-1", "amount": "15000"}, submitErr: app.ErrMissingDocument, wantStatus: http.StatusBadRequest},
		{name: "invalid amount", fields: map[string]string{"payee_id": "payee-1", "account_id": "acc-1", "amount": "lots"}, withFile: true, wantStatus: http.StatusBadRequest},
		{name: "unsupported type", fields: map[string]string{"payee_id": "payee-1", "account_id": "acc-1", "amount": "15000"}, withFile: true, submitErr: app.ErrUnsupportedDocumentType, wantStatus: http.StatusUnsupportedMediaType},
		{name: "unknown payee", fields: map[string]string{"payee_id": "payee-9", "account_id": "acc-1", "amount": "15000"}, withFile: true, submitErr: store.ErrPayeeNotFound, wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			s.payments.submitErr = tt.submitErr

			fileField := ""
			if tt.withFile {
				fileField = "document"
			}
			rec := s.do(multipartRequest(t, "/bills/pay/verified", tt.fields, fileField, "id.pdf", pdfBytes), "user-1")

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d (%s)", tt.wantStatus, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestGetVerificationHandler(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(httptest.NewRequest(http.MethodGet, "/bills/verifications/ref-7", nil), "user-1")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "ref-7") {
		t.Fatalf("expected reference in body, got %s", rec.Body.String())
	}

	s.payments.verifyErr = store.ErrVerificationNotFound
	rec = s.do(httptest.NewRequest(http.MethodGet, "/bills/verifications/ref-8", nil), "user-1")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestInvoiceSessionHandlers(t *testing.T) {
	s := newTestServer(t)
	if rec := s.do(httptest.NewRequest(http.MethodGet, "/bills/invoice", nil), "user-1"); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	s.payments.invoiceErr = store.ErrInvoiceSessionNotFound
	if rec := s.do(httptest.NewRequest(http.MethodGet, "/bills/invoice", nil), "user-1"); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if rec := s.do(httptest.NewRequest(http.MethodDelete, "/bills/invoice", nil), "user-1"); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for discarding a missing session, got %d", rec.Code)
	}
}

func TestListPayeesHandler_EmptyList(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(httptest.NewRequest(http.MethodGet, "/bills/payees", nil), "user-1")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("expected empty JSON array, got %s", rec.Body.String())
	}
}

func TestBillsRequireAuthentication(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/bills/payees", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestMapPaymentError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{err: app.ErrMissingPayee, want: http.StatusBadRequest},
		{err: app.ErrInvalidAmount, want: http.StatusBadRequest},
		{err: store.ErrInsufficientFunds, want: http.StatusPaymentRequired},
		{err: store.ErrAccountNotFound, want: http.StatusNotFound},
		{err: fmt.Errorf("pay: %w", app.ErrVerificationRequired), want: http.StatusConflict},
		{err: app.ErrDocumentTooLarge, want: http.StatusRequestEntityTooLarge},
		{err: &app.RateLimitError{RetryAfterSeconds: 1}, want: http.StatusTooManyRequests},
		{err: errors.New("boom"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			if got, _ := mapPaymentError(tt.err); got != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, got)
			}
		})
	}
}
