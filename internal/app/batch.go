/**
 * @description
 * This file contains the bulk entity-action executor used by the staff portal.
 * A batch applies one action to up to MaxBatchSize ids of one entity type. Every
 * id is processed on its own: a failure (or panic) for one id is recorded in the
 * result and processing continues with the next id.
 *
 * Key features:
 * - Per-entity-type routing of actions (users, accounts, transactions, wire transfers, cards).
 * - Audit logging of status changes and compliance reviews.
 * - Publishes batch.completed, and batch.export.requested for transaction exports.
 *
 * @dependencies
 * - internal/domain, internal/store: Domain models and persistence contracts.
 * - pkg/rabbitmq: Event publishing.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/whytehoux-projecty/Bank-sub001/internal/domain"
	"github.com/whytehoux-projecty/Bank-sub001/internal/store"
	"github.com/whytehoux-projecty/Bank-sub001/pkg/rabbitmq"
)

const (
	unknownErrorMessage      = "Unknown error"
	transactionLockedMessage = "Bulk modification of transactions is not permitted for audit compliance"
	wireNotFoundMessage      = "Wire transfer not found"
	wireNotPendingMessage    = "Can only update pending transfers"
)

// BatchOperationsService executes bulk actions requested from the staff portal.
type BatchOperationsService struct {
	repo          store.BatchRepository
	audit         store.AuditLogger
	eventProducer rabbitmq.Publisher
	exchange      string
	now           func() time.Time
}

// NewBatchOperationsService creates a new batch executor.
func NewBatchOperationsService(repo store.BatchRepository, audit store.AuditLogger, producer rabbitmq.Publisher, exchange string) *BatchOperationsService {
	return &BatchOperationsService{
		repo:          repo,
		audit:         audit,
		eventProducer: producer,
		exchange:      exchange,
		now:           time.Now,
	}
}

// itemHandler applies an action to a single id and returns the success message.
type itemHandler func(ctx context.Context, id string) (string, error)

// Execute runs a batch and returns its aggregated outcome. It never fails: every
// problem is reported inside the result.
func (s *BatchOperationsService) Execute(ctx context.Context, req domain.BatchActionRequest) domain.BatchOperationResult {
	if len(req.IDs) > domain.MaxBatchSize {
		log.Printf("level=warn component=batch entity=%s action=%s ids=%d msg=\"batch rejected: size cap exceeded\"", req.EntityType, req.Action, len(req.IDs))
		return domain.RejectedBatch(len(req.IDs), domain.BatchErrorIDBatch,
			fmt.Sprintf("Batch size exceeds the maximum of %d items", domain.MaxBatchSize))
	}

	var result domain.BatchOperationResult
	switch req.EntityType {
	case domain.EntityUser:
		result = s.processEach(ctx, req.IDs, s.userHandler(req))
	case domain.EntityAccount:
		result = s.processEach(ctx, req.IDs, s.accountHandler(req))
	case domain.EntityTransaction:
		result = s.executeTransactions(ctx, req)
	case domain.EntityWireTransfer:
		result = s.processEach(ctx, req.IDs, s.wireTransferHandler(req))
	case domain.EntityCard:
		result = s.processEach(ctx, req.IDs, s.cardHandler(req))
	default:
		log.Printf("level=warn component=batch entity=%q action=%s msg=\"batch rejected: unknown entity type\"", req.EntityType, req.Action)
		return domain.RejectedBatch(len(req.IDs), domain.BatchErrorIDUnknown,
			fmt.Sprintf("Unknown entity type: %s", req.EntityType))
	}

	log.Printf("level=info component=batch entity=%s action=%s actor=%s total=%d processed=%d failed=%d msg=\"batch completed\"",
		req.EntityType, req.Action, req.Actor.UserID, result.TotalItems, result.ProcessedItems, result.FailedItems)
	s.publishCompleted(ctx, req, result)
	return result
}

// processEach applies handler to every id in input order.
func (s *BatchOperationsService) processEach(ctx context.Context, ids []string, handler itemHandler) domain.BatchOperationResult {
	result := domain.BatchOperationResult{
		TotalItems: len(ids),
		Errors:     []domain.BatchErrorEntry{},
		Results:    []domain.BatchItemResult{},
	}

	for _, id := range ids {
		message, err := applyIsolated(ctx, id, handler)
		if err != nil {
			result.Errors = append(result.Errors, domain.BatchErrorEntry{ID: id, Error: errorMessage(err)})
			continue
		}
		result.Results = append(result.Results, domain.BatchItemResult{ID: id, Success: true, Message: message})
	}

	for _, item := range result.Results {
		if item.Success {
			result.ProcessedItems++
		}
	}
	result.FailedItems = len(result.Errors)
	result.Success = len(result.Errors) == 0
	return result
}

// applyIsolated turns a panic inside handler into an error for that id.
func applyIsolated(ctx context.Context, id string, handler itemHandler) (message string, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("level=error component=batch id=%s msg=\"item handler panicked\" panic=%v", id, r)
			err = fmt.Errorf("%v", r)
		}
	}()
	return handler(ctx, id)
}

func errorMessage(err error) string {
	if err == nil {
		return unknownErrorMessage
	}
	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return msg
	}
	return unknownErrorMessage
}

func unsupported(entity domain.EntityType, action domain.BatchAction) itemHandler {
	message := domain.UnsupportedActionMessage(entity, action)
	return func(context.Context, string) (string, error) {
		return "", errors.New(message)
	}
}

func (s *BatchOperationsService) userHandler(req domain.BatchActionRequest) itemHandler {
	actor := req.Actor
	switch req.Action {
	case domain.ActionUpdateStatus:
		change, ok := req.Data.(domain.StatusChange)
		if !ok {
			return invalidPayload(req.Action)
		}
		return func(ctx context.Context, id string) (string, error) {
			user, err := s.repo.FindUserByID(ctx, id)
			if err != nil {
				return "", err
			}
			if err := s.repo.UpdateEntity(ctx, domain.EntityUser, id, store.EntityPatch{Status: &change.Status}); err != nil {
				return "", err
			}
			if err := s.audit.LogStatusChange(ctx, actor.UserID, id, user.Status, change.Status, change.Reason, actor.IPAddress, actor.UserAgent); err != nil {
				return "", err
			}
			return fmt.Sprintf("Status updated to %s", change.Status), nil
		}
	case domain.ActionUpdateKYCStatus:
		change, ok := req.Data.(domain.KYCStatusChange)
		if !ok {
			return invalidPayload(req.Action)
		}
		return func(ctx context.Context, id string) (string, error) {
			user, err := s.repo.FindUserByID(ctx, id)
			if err != nil {
				return "", err
			}
			if err := s.repo.UpdateEntity(ctx, domain.EntityUser, id, store.EntityPatch{KYCStatus: &change.KYCStatus}); err != nil {
				return "", err
			}
			if err := s.audit.LogStatusChange(ctx, actor.UserID, id, user.KYCStatus, change.KYCStatus, change.Notes, actor.IPAddress, actor.UserAgent); err != nil {
				return "", err
			}
			return fmt.Sprintf("KYC status updated to %s", change.KYCStatus), nil
		}
	case domain.ActionSuspend:
		suspension, _ := req.Data.(domain.Suspension)
		return func(ctx context.Context, id string) (string, error) {
			status := domain.StatusSuspended
			patch := store.EntityPatch{
				Status:           &status,
				SuspensionReason: textOrNull(suspension.Reason),
			}
			if err := s.repo.UpdateEntity(ctx, domain.EntityUser, id, patch); err != nil {
				return "", err
			}
			if err := s.audit.LogStatusChange(ctx, actor.UserID, id, domain.StatusActive, domain.StatusSuspended, suspension.Reason, actor.IPAddress, actor.UserAgent); err != nil {
				return "", err
			}
			return "User suspended", nil
		}
	case domain.ActionActivate:
		return func(ctx context.Context, id string) (string, error) {
			status := domain.StatusActive
			patch := store.EntityPatch{
				Status:           &status,
				SuspensionReason: &pgtype.Text{},
			}
			if err := s.repo.UpdateEntity(ctx, domain.EntityUser, id, patch); err != nil {
				return "", err
			}
			if err := s.audit.LogStatusChange(ctx, actor.UserID, id, domain.StatusSuspended, domain.StatusActive, "", actor.IPAddress, actor.UserAgent); err != nil {
				return "", err
			}
			return "User activated", nil
		}
	case domain.ActionDelete:
		// Users are never hard-deleted; the record stays for compliance.
		return func(ctx context.Context, id string) (string, error) {
			status := domain.StatusInactive
			if err := s.repo.UpdateEntity(ctx, domain.EntityUser, id, store.EntityPatch{Status: &status}); err != nil {
				return "", err
			}
			return "User deactivated", nil
		}
	}
	return unsupported(domain.EntityUser, req.Action)
}

func (s *BatchOperationsService) accountHandler(req domain.BatchActionRequest) itemHandler {
	switch req.Action {
	case domain.ActionUpdateStatus:
		change, ok := req.Data.(domain.StatusChange)
		if !ok {
			return invalidPayload(req.Action)
		}
		return s.setStatus(domain.EntityAccount, change.Status, fmt.Sprintf("Status updated to %s", change.Status))
	case domain.ActionSuspend:
		return s.setStatus(domain.EntityAccount, domain.StatusSuspended, "Account suspended")
	case domain.ActionActivate:
		return s.setStatus(domain.EntityAccount, domain.StatusActive, "Account activated")
	}
	return unsupported(domain.EntityAccount, req.Action)
}

func (s *BatchOperationsService) cardHandler(req domain.BatchActionRequest) itemHandler {
	switch req.Action {
	case domain.ActionUpdateStatus:
		change, ok := req.Data.(domain.StatusChange)
		if !ok {
			return invalidPayload(req.Action)
		}
		return s.setStatus(domain.EntityCard, change.Status, fmt.Sprintf("Status updated to %s", change.Status))
	case domain.ActionSuspend:
		return s.setStatus(domain.EntityCard, domain.StatusFrozen, "Card frozen")
	case domain.ActionActivate:
		return s.setStatus(domain.EntityCard, domain.StatusActive, "Card activated")
	}
	return unsupported(domain.EntityCard, req.Action)
}

func (s *BatchOperationsService) setStatus(entity domain.EntityType, status string, message string) itemHandler {
	return func(ctx context.Context, id string) (string, error) {
		value := status
		if err := s.repo.UpdateEntity(ctx, entity, id, store.EntityPatch{Status: &value}); err != nil {
			return "", err
		}
		return message, nil
	}
}

// executeTransactions only ever exports. Any other action is refused for the whole batch.
func (s *BatchOperationsService) executeTransactions(ctx context.Context, req domain.BatchActionRequest) domain.BatchOperationResult {
	if req.Action != domain.ActionExport {
		log.Printf("level=warn component=batch entity=%s action=%s actor=%s msg=\"bulk transaction modification refused\"", req.EntityType, req.Action, req.Actor.UserID)
		return domain.RejectedBatch(len(req.IDs), domain.BatchErrorIDAll, transactionLockedMessage)
	}

	result := s.processEach(ctx, req.IDs, func(context.Context, string) (string, error) {
		return "Included in export", nil
	})
	s.publishExportRequested(ctx, req, result)
	return result
}

func (s *BatchOperationsService) wireTransferHandler(req domain.BatchActionRequest) itemHandler {
	if req.Action != domain.ActionUpdateStatus {
		return unsupported(domain.EntityWireTransfer, req.Action)
	}
	change, ok := req.Data.(domain.StatusChange)
	if !ok {
		return invalidPayload(req.Action)
	}
	actor := req.Actor

	return func(ctx context.Context, id string) (string, error) {
		transfer, err := s.repo.FindWireTransferByID(ctx, id)
		if errors.Is(err, store.ErrWireTransferNotFound) || (err == nil && transfer == nil) {
			return "", errors.New(wireNotFoundMessage)
		}
		if err != nil {
			return "", err
		}
		if transfer.ComplianceStatus != domain.CompliancePending {
			return "", errors.New(wireNotPendingMessage)
		}

		now := s.now().UTC()
		approver := actor.UserID
		rejection := &pgtype.Text{}
		if change.Status == domain.ComplianceRejected {
			rejection = textOrNull(change.Reason)
		}
		patch := store.EntityPatch{
			ComplianceStatus: &change.Status,
			ApprovedBy:       &approver,
			ApprovedAt:       &now,
			RejectionReason:  rejection,
		}
		if err := s.repo.UpdateEntity(ctx, domain.EntityWireTransfer, id, patch); err != nil {
			return "", err
		}
		if err := s.audit.LogReview(ctx, actor.UserID, id, transfer.UserID, change.Status, change.Reason, actor.IPAddress, actor.UserAgent); err != nil {
			return "", err
		}
		return fmt.Sprintf("Compliance status updated to %s", change.Status), nil
	}
}

func invalidPayload(action domain.BatchAction) itemHandler {
	return func(context.Context, string) (string, error) {
		return "", fmt.Errorf("invalid data for %s", action)
	}
}

// textOrNull maps a blank string to SQL NULL.
func textOrNull(value string) *pgtype.Text {
	value = strings.TrimSpace(value)
	if value == "" {
		return &pgtype.Text{}
	}
	return &pgtype.Text{String: value, Valid: true}
}

func (s *BatchOperationsService) publishCompleted(ctx context.Context, req domain.BatchActionRequest, result domain.BatchOperationResult) {
	if s.eventProducer == nil {
		return
	}
	event := domain.BatchCompletedEvent{
		EntityType:     req.EntityType,
		Action:         req.Action,
		ActorID:        req.Actor.UserID,
		TotalItems:     result.TotalItems,
		ProcessedItems: result.ProcessedItems,
		FailedItems:    result.FailedItems,
		CompletedAt:    s.now().UTC(),
	}
	if err := s.eventProducer.Publish(ctx, s.exchange, domain.RoutingKeyBatchCompleted, event); err != nil {
		log.Printf("level=warn component=batch routing_key=%s msg=\"failed to publish event\" err=%v", domain.RoutingKeyBatchCompleted, err)
	}
}

func (s *BatchOperationsService) publishExportRequested(ctx context.Context, req domain.BatchActionRequest, result domain.BatchOperationResult) {
	if s.eventProducer == nil || len(result.Results) == 0 {
		return
	}
	ids := make([]string, 0, len(result.Results))
	for _, item := range result.Results {
		ids = append(ids, item.ID)
	}
	event := domain.ExportRequestedEvent{
		EntityType:  req.EntityType,
		IDs:         ids,
		RequestedBy: req.Actor.UserID,
		RequestedAt: s.now().UTC(),
	}
	if err := s.eventProducer.Publish(ctx, s.exchange, domain.RoutingKeyBatchExportRequested, event); err != nil {
		log.Printf("level=warn component=batch routing_key=%s msg=\"failed to publish event\" err=%v", domain.RoutingKeyBatchExportRequested, err)
	}
}
