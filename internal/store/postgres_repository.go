/**
 * @description
 * This file provides the PostgreSQL implementation of the batch persistence and audit
 * contracts. Bulk actions write through a single UpdateEntity method that builds an
 * UPDATE over the whitelisted columns of the target table.
 *
 * @dependencies
 * - context, errors, fmt, strings, time: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - github.com/google/uuid: Audit row identifiers.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/whytehoux-projecty/Bank-sub001/internal/domain"
)

var (
	ErrUserNotFound            = errors.New("user not found")
	ErrAccountNotFound         = errors.New("account not found")
	ErrTransactionNotFound     = errors.New("transaction not found")
	ErrWireTransferNotFound    = errors.New("wire transfer not found")
	ErrCardNotFound            = errors.New("card not found")
	ErrPayeeNotFound           = errors.New("payee not found")
	ErrInsufficientFunds       = errors.New("insufficient funds")
	ErrBillPaymentNotFound     = errors.New("bill payment not found")
	ErrVerificationNotFound    = errors.New("verified payment submission not found")
	ErrVerificationNotPending  = errors.New("verified payment submission is not pending review")
	ErrTransactionPINNotSet    = errors.New("transaction pin not set")
	ErrSettingNotFound         = errors.New("setting not found")
	ErrInvoiceSessionNotFound  = errors.New("invoice session not found")
	ErrEmptyEntityPatch        = errors.New("entity patch has no columns to update")
	ErrEntityColumnNotWritable = errors.New("column is not writable for entity")
)

// entityTable describes how an entity type maps onto its table.
type entityTable struct {
	name     string
	notFound error
	columns  map[string]bool
}

var entityTables = map[domain.EntityType]entityTable{
	domain.EntityUser: {
		name:     "users",
		notFound: ErrUserNotFound,
		columns:  map[string]bool{"status": true, "kyc_status": true, "suspension_reason": true},
	},
	domain.EntityAccount: {
		name:     "accounts",
		notFound: ErrAccountNotFound,
		columns:  map[string]bool{"status": true},
	},
	domain.EntityTransaction: {
		name:     "transactions",
		notFound: ErrTransactionNotFound,
		columns:  map[string]bool{},
	},
	domain.EntityWireTransfer: {
		name:     "wire_transfers",
		notFound: ErrWireTransferNotFound,
		columns: map[string]bool{
			"compliance_status": true,
			"approved_by":       true,
			"approved_at":       true,
			"rejection_reason":  true,
		},
	},
	domain.EntityCard: {
		name:     "cards",
		notFound: ErrCardNotFound,
		columns:  map[string]bool{"status": true},
	},
}

type columnAssignment struct {
	column string
	value  interface{}
}

func (p EntityPatch) assignments() []columnAssignment {
	var out []columnAssignment
	if p.Status != nil {
		out = append(out, columnAssignment{"status", *p.Status})
	}
	if p.KYCStatus != nil {
		out = append(out, columnAssignment{"kyc_status", *p.KYCStatus})
	}
	if p.SuspensionReason != nil {
		out = append(out, columnAssignment{"suspension_reason", *p.SuspensionReason})
	}
	if p.ComplianceStatus != nil {
		out = append(out, columnAssignment{"compliance_status", *p.ComplianceStatus})
	}
	if p.ApprovedBy != nil {
		out = append(out, columnAssignment{"approved_by", *p.ApprovedBy})
	}
	if p.ApprovedAt != nil {
		out = append(out, columnAssignment{"approved_at", *p.ApprovedAt})
	}
	if p.RejectionReason != nil {
		out = append(out, columnAssignment{"rejection_reason", *p.RejectionReason})
	}
	return out
}

// buildEntityUpdate renders the UPDATE statement for a patch. The id is always the last argument.
func buildEntityUpdate(entityType domain.EntityType, id string, patch EntityPatch) (string, []interface{}, error) {
	table, ok := entityTables[entityType]
	if !ok {
		return "", nil, fmt.Errorf("unknown entity type %q", entityType)
	}

	assignments := patch.assignments()
	if len(assignments) == 0 {
		return "", nil, ErrEmptyEntityPatch
	}

	setClauses := make([]string, 0, len(assignments)+1)
	args := make([]interface{}, 0, len(assignments)+1)
	for i, a := range assignments {
		if !table.columns[a.column] {
			return "", nil, fmt.Errorf("%w: %s.%s", ErrEntityColumnNotWritable, table.name, a.column)
		}
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", a.column, i+1))
		args = append(args, a.value)
	}
	setClauses = append(setClauses, "updated_at = NOW()")
	args = append(args, id)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id::text = $%d", table.name, strings.Join(setClauses, ", "), len(args))
	return query, args, nil
}

// PostgresRepository is a concrete implementation of the repository interfaces for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// FindUserByID retrieves a user from the database by their ID.
func (r *PostgresRepository) FindUserByID(ctx context.Context, userID string) (*domain.User, error) {
	var user domain.User
	query := `SELECT id::text, email, status, kyc_status, suspension_reason FROM users WHERE id::text = $1`
	err := r.db.QueryRow(ctx, query, userID).Scan(&user.ID, &user.Email, &user.Status, &user.KYCStatus, &user.SuspensionReason)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// FindWireTransferByID retrieves a wire transfer and its compliance state.
func (r *PostgresRepository) FindWireTransferByID(ctx context.Context, transferID string) (*domain.WireTransfer, error) {
	var transfer domain.WireTransfer
	query := `
		SELECT id::text, user_id::text, amount::text, currency, compliance_status,
		       approved_by, approved_at, rejection_reason, created_at
		FROM wire_transfers
		WHERE id::text = $1
	`
	err := r.db.QueryRow(ctx, query, transferID).Scan(
		&transfer.ID,
		&transfer.UserID,
		&transfer.Amount,
		&transfer.Currency,
		&transfer.ComplianceStatus,
		&transfer.ApprovedBy,
		&transfer.ApprovedAt,
		&transfer.RejectionReason,
		&transfer.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWireTransferNotFound
		}
		return nil, err
	}
	return &transfer, nil
}

// UpdateEntity applies a patch to one row of the entity's table.
// A missing row surfaces as the entity's not-found error.
func (r *PostgresRepository) UpdateEntity(ctx context.Context, entityType domain.EntityType, id string, patch EntityPatch) error {
	query, args, err := buildEntityUpdate(entityType, id, patch)
	if err != nil {
		return err
	}

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return entityTables[entityType].notFound
	}
	return nil
}

// LogStatusChange appends a status transition to the audit trail.
func (r *PostgresRepository) LogStatusChange(ctx context.Context, actorID, subjectID, from, to, reason, ipAddress, userAgent string) error {
	return r.insertAuditEntry(ctx, domain.AuditEntry{
		ID:        uuid.NewString(),
		Action:    "STATUS_CHANGE",
		ActorID:   actorID,
		SubjectID: subjectID,
		FromValue: optionalString(from),
		ToValue:   to,
		Reason:    optionalString(reason),
		IPAddress: ipAddress,
		UserAgent: userAgent,
		CreatedAt: time.Now().UTC(),
	})
}

// LogReview appends a wire transfer compliance decision to the audit trail.
func (r *PostgresRepository) LogReview(ctx context.Context, actorID, transferID, ownerID, decision, reason, ipAddress, userAgent string) error {
	return r.insertAuditEntry(ctx, domain.AuditEntry{
		ID:        uuid.NewString(),
		Action:    "WIRE_TRANSFER_REVIEW",
		ActorID:   actorID,
		SubjectID: transferID,
		OwnerID:   optionalString(ownerID),
		ToValue:   decision,
		Reason:    optionalString(reason),
		IPAddress: ipAddress,
		UserAgent: userAgent,
		CreatedAt: time.Now().UTC(),
	})
}

func (r *PostgresRepository) insertAuditEntry(ctx context.Context, entry domain.AuditEntry) error {
	query := `
		INSERT INTO audit_logs (id, action, actor_id, subject_id, owner_id, from_value, to_value, reason, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.db.Exec(ctx, query,
		entry.ID,
		entry.Action,
		entry.ActorID,
		entry.SubjectID,
		entry.OwnerID,
		entry.FromValue,
		entry.ToValue,
		entry.Reason,
		entry.IPAddress,
		entry.UserAgent,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("audit log insert failed: %w", err)
	}
	return nil
}

// GetSetting reads one value from system_settings.
func (r *PostgresRepository) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRow(ctx, `SELECT value FROM system_settings WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrSettingNotFound
		}
		return "", err
	}
	return value, nil
}

func optionalString(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
