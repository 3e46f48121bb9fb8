/**
 * @description
 * This package provides a client for the core-banking bill payment API. It
 * debits a customer account and credits the payee's biller account in one call.
 *
 * @dependencies
 * - bytes, context, encoding/json, fmt, net/http, time: Standard Go libraries.
 * - github.com/shopspring/decimal: Monetary amounts on the wire.
 */
package corebankingclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrInsufficientFunds is returned when the ledger refuses the debit.
var ErrInsufficientFunds = errors.New("core banking: insufficient funds")

// Client is a client for the core-banking API.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a new core-banking API client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// BillPaymentOrder is the payload for a bill payment. PaymentID doubles as the idempotency key.
type BillPaymentOrder struct {
	PaymentID          string          `json:"payment_id"`
	SourceAccountID    string          `json:"source_account_id"`
	PayeeName          string          `json:"payee_name"`
	PayeeAccountNumber string          `json:"payee_account_number"`
	Amount             decimal.Decimal `json:"amount"`
	Currency           string          `json:"currency"`
	Reference          string          `json:"reference,omitempty"`
}

// BillPaymentReceipt is the response from the bill payment endpoint.
type BillPaymentReceipt struct {
	ProviderRef string    `json:"id"`
	Status      string    `json:"status"`
	ProcessedAt time.Time `json:"processed_at"`
}

// ErrorResponse represents an error from the core-banking API.
type ErrorResponse struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *ErrorResponse) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("core banking api error (%d): %s - %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("core banking api error (%d)", e.StatusCode)
}

// PayBill submits a bill payment order and waits for the ledger result.
func (c *Client) PayBill(ctx context.Context, order BillPaymentOrder) (*BillPaymentReceipt, error) {
	if c.BaseURL == "" {
		return nil, fmt.Errorf("core banking base url is empty")
	}
	if order.Currency == "" {
		order.Currency = "USD"
	}

	body, err := json.Marshal(order)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal bill payment request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/v1/bill-payments", bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create bill payment request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-API-Key", c.APIKey)
	req.Header.Set("Idempotency-Key", order.PaymentID)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute bill payment request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read bill payment response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode == http.StatusPaymentRequired {
			return nil, ErrInsufficientFunds
		}
		errResp := &ErrorResponse{StatusCode: resp.StatusCode}
		if err := json.Unmarshal(bodyBytes, errResp); err != nil {
			log.Printf("level=warn component=core_banking_client op=pay_bill payment_id=%s status=%d msg=\"non-2xx response (unparsable error body)\"", order.PaymentID, resp.StatusCode)
			return nil, fmt.Errorf("failed to decode error response (status %d)", resp.StatusCode)
		}
		log.Printf("level=warn component=core_banking_client op=pay_bill payment_id=%s status=%d code=%q message=%q", order.PaymentID, resp.StatusCode, errResp.Code, errResp.Message)
		return nil, errResp
	}

	var receipt BillPaymentReceipt
	if err := json.Unmarshal(bodyBytes, &receipt); err != nil {
		return nil, fmt.Errorf("failed to decode bill payment response: %w", err)
	}
	if receipt.ProviderRef == "" {
		return nil, fmt.Errorf("bill payment response missing id")
	}

	return &receipt, nil
}
