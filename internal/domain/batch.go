/**
 * @description
 * This file defines the domain models for the staff portal's bulk entity actions.
 * A batch applies one action to many entity ids and reports the outcome of every id
 * individually, so the portal can render per-item success and failure.
 *
 * @notes
 * - Whole-request rejections reuse the per-id error shape with the synthetic ids
 *   "batch", "unknown" and "all". Portal clients match on these strings.
 */

package domain

import (
	"fmt"
	"strings"
)

// MaxBatchSize is the largest number of ids accepted in one batch request.
const MaxBatchSize = 100

// Synthetic error ids used for whole-request rejections.
const (
	BatchErrorIDBatch   = "batch"
	BatchErrorIDUnknown = "unknown"
	BatchErrorIDAll     = "all"
)

// EntityType identifies the kind of record a batch action targets.
type EntityType string

const (
	EntityUser         EntityType = "USER"
	EntityAccount      EntityType = "ACCOUNT"
	EntityTransaction  EntityType = "TRANSACTION"
	EntityWireTransfer EntityType = "WIRE_TRANSFER"
	EntityCard         EntityType = "CARD"
)

// Valid reports whether the entity type is one of the recognized values.
func (e EntityType) Valid() bool {
	switch e {
	case EntityUser, EntityAccount, EntityTransaction, EntityWireTransfer, EntityCard:
		return true
	}
	return false
}

// Label is the lower-case human form used in messages ("wire transfer").
func (e EntityType) Label() string {
	return strings.ToLower(strings.ReplaceAll(string(e), "_", " "))
}

// BatchAction is the operation applied to every id of a batch.
type BatchAction string

const (
	ActionUpdateStatus    BatchAction = "UPDATE_STATUS"
	ActionUpdateKYCStatus BatchAction = "UPDATE_KYC_STATUS"
	ActionDelete          BatchAction = "DELETE"
	ActionSuspend         BatchAction = "SUSPEND"
	ActionActivate        BatchAction = "ACTIVATE"
	ActionExport          BatchAction = "EXPORT"
)

// Valid reports whether the action is one of the recognized values.
func (a BatchAction) Valid() bool {
	switch a {
	case ActionUpdateStatus, ActionUpdateKYCStatus, ActionDelete, ActionSuspend, ActionActivate, ActionExport:
		return true
	}
	return false
}

// BatchActor identifies the staff member performing a batch, for audit purposes.
type BatchActor struct {
	UserID    string `json:"user_id"`
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`
}

// BatchActionRequest is one bulk action over a list of entity ids.
// Ids keep their input order and may repeat.
type BatchActionRequest struct {
	EntityType EntityType
	Action     BatchAction
	IDs        []string
	Data       BatchPayload
	Actor      BatchActor
}

// BatchItemResult is the outcome of one successfully processed id.
type BatchItemResult struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// BatchErrorEntry is the outcome of one failed id, or of a whole-request rejection.
type BatchErrorEntry struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// BatchOperationResult aggregates the per-id outcomes of a batch.
type BatchOperationResult struct {
	Success        bool              `json:"success"`
	TotalItems     int               `json:"totalItems"`
	ProcessedItems int               `json:"processedItems"`
	FailedItems    int               `json:"failedItems"`
	Errors         []BatchErrorEntry `json:"errors"`
	Results        []BatchItemResult `json:"results"`
}

// RejectedBatch builds the result for a request refused before any id was processed.
func RejectedBatch(totalItems int, errorID, message string) BatchOperationResult {
	return BatchOperationResult{
		Success:        false,
		TotalItems:     totalItems,
		ProcessedItems: 0,
		FailedItems:    1,
		Errors:         []BatchErrorEntry{{ID: errorID, Error: message}},
		Results:        []BatchItemResult{},
	}
}

// UnsupportedActionMessage is the per-id error for an action the entity type does not support.
func UnsupportedActionMessage(entity EntityType, action BatchAction) string {
	return fmt.Sprintf("Unsupported action for %s: %s", entity.Label(), action)
}
