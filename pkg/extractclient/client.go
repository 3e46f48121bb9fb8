/**
 * @description
 * This package provides a client for the invoice document-parsing service.
 * An invoice PDF is posted as multipart form data and the service answers with
 * the fields it could read from the document.
 *
 * @dependencies
 * - bytes, context, encoding/json, fmt, mime/multipart, net/http, time: Standard Go libraries.
 * - github.com/shopspring/decimal: Parsing the extracted amount.
 */
package extractclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNoAmount is returned when the parser answered but did not find a usable amount.
var ErrNoAmount = errors.New("no usable amount in document")

// Client is a client for the document-parsing service.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new document-parsing service client.
func NewClient(baseURL string, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// parseInvoiceResponse is the wire shape returned by the parser. Amounts arrive as strings.
type parseInvoiceResponse struct {
	Amount        string `json:"amount"`
	InvoiceNumber string `json:"invoice_number"`
	PaymentPIN    string `json:"payment_pin"`
	Error         string `json:"error"`
}

// InvoiceFields is what the parser read from an invoice.
type InvoiceFields struct {
	Amount        decimal.Decimal
	InvoiceNumber *string
	PaymentPIN    *string
}

// ParseInvoice uploads an invoice document and returns the extracted fields.
func (c *Client) ParseInvoice(ctx context.Context, fileName string, data []byte) (*InvoiceFields, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("extraction service base url is empty")
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("failed to write form file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/invoices/parse", &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	if strings.TrimSpace(c.apiKey) != "" {
		req.Header.Set("X-Internal-API-Key", strings.TrimSpace(c.apiKey))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request to extraction service: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read extraction response: %w", err)
	}

	var parsed parseInvoiceResponse
	decodeErr := json.Unmarshal(bodyBytes, &parsed)

	if resp.StatusCode == http.StatusUnprocessableEntity {
		log.Printf("level=warn component=extract_client op=parse_invoice status=%d detail=%q", resp.StatusCode, parsed.Error)
		return nil, ErrNoAmount
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("extraction service returned error status %d", resp.StatusCode)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("failed to decode response: %w", decodeErr)
	}

	return toInvoiceFields(parsed)
}

func toInvoiceFields(parsed parseInvoiceResponse) (*InvoiceFields, error) {
	raw := strings.TrimSpace(parsed.Amount)
	if raw == "" {
		return nil, ErrNoAmount
	}
	amount, err := decimal.NewFromString(strings.ReplaceAll(raw, ",", ""))
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrNoAmount, raw)
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: non-positive amount %s", ErrNoAmount, amount.String())
	}

	fields := &InvoiceFields{Amount: amount}
	if v := strings.TrimSpace(parsed.InvoiceNumber); v != "" {
		fields.InvoiceNumber = &v
	}
	if v := strings.TrimSpace(parsed.PaymentPIN); v != "" {
		fields.PaymentPIN = &v
	}
	return fields, nil
}
