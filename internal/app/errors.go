package app

import (
	"errors"
	"fmt"
)

var (
	ErrMissingPayee            = errors.New("a saved payee must be selected before paying")
	ErrVerificationRequired    = errors.New("payment amount requires identity verification")
	ErrInvalidAmount           = errors.New("payment amount must be greater than zero")
	ErrInvoiceTooLarge         = errors.New("invoice exceeds the maximum upload size")
	ErrUnsupportedDocumentType = errors.New("unsupported document type")
	ErrInvoiceParse            = errors.New("could not read a payable amount from the invoice")
	ErrMissingDocument         = errors.New("a supporting identity document is required")
	ErrDocumentTooLarge        = errors.New("supporting document exceeds the maximum upload size")
	ErrRateLimited             = errors.New("too many requests")
	ErrInvalidTransactionPIN   = errors.New("invalid transaction pin")
	ErrTransactionPINLocked    = errors.New("transaction pin temporarily locked")
)

// RateLimitError reports how long a caller must wait. It matches ErrRateLimited.
type RateLimitError struct {
	RetryAfterSeconds int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s: retry after %ds", ErrRateLimited.Error(), e.RetryAfterSeconds)
}

func (e *RateLimitError) Unwrap() error {
	return ErrRateLimited
}
