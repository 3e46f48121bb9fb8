package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// BatchPayload is the action-specific data carried by a batch request.
// Each action decodes into exactly one variant.
type BatchPayload interface {
	batchPayload()
}

// StatusChange is the payload of UPDATE_STATUS.
type StatusChange struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// KYCStatusChange is the payload of UPDATE_KYC_STATUS.
type KYCStatusChange struct {
	KYCStatus string `json:"kycStatus"`
	Notes     string `json:"notes,omitempty"`
}

// Suspension is the payload of SUSPEND.
type Suspension struct {
	Reason string `json:"reason,omitempty"`
}

// NoPayload is used by actions that carry no data (ACTIVATE, DELETE, EXPORT).
type NoPayload struct{}

func (StatusChange) batchPayload()    {}
func (KYCStatusChange) batchPayload() {}
func (Suspension) batchPayload()      {}
func (NoPayload) batchPayload()       {}

var ErrInvalidBatchPayload = errors.New("invalid batch payload")

// DecodeBatchPayload decodes the raw "data" object of a batch request into the
// variant expected by the action. Required fields are validated here so that
// malformed requests are rejected before reaching the executor.
func DecodeBatchPayload(action BatchAction, raw json.RawMessage) (BatchPayload, error) {
	if len(raw) == 0 || string(raw) == "null" {
		raw = json.RawMessage("{}")
	}

	switch action {
	case ActionUpdateStatus:
		var p StatusChange
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidBatchPayload, err)
		}
		p.Status = strings.TrimSpace(p.Status)
		if p.Status == "" {
			return nil, fmt.Errorf("%w: data.status is required for %s", ErrInvalidBatchPayload, action)
		}
		return p, nil
	case ActionUpdateKYCStatus:
		var p KYCStatusChange
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidBatchPayload, err)
		}
		p.KYCStatus = strings.TrimSpace(p.KYCStatus)
		if p.KYCStatus == "" {
			return nil, fmt.Errorf("%w: data.kycStatus is required for %s", ErrInvalidBatchPayload, action)
		}
		return p, nil
	case ActionSuspend:
		var p Suspension
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidBatchPayload, err)
		}
		return p, nil
	case ActionActivate, ActionDelete, ActionExport:
		return NoPayload{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown action %q", ErrInvalidBatchPayload, action)
	}
}
