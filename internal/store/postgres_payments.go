package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/whytehoux-projecty/Bank-sub001/internal/domain"
)

// FindPayeeByID returns a payee only if it belongs to the given user.
func (r *PostgresRepository) FindPayeeByID(ctx context.Context, payeeID string, userID string) (*domain.Payee, error) {
	var payee domain.Payee
	query := `
		SELECT id::text, user_id::text, name, account_number, category, created_at
		FROM payees
		WHERE id::text = $1 AND user_id::text = $2 AND deleted_at IS NULL
	`
	err := r.db.QueryRow(ctx, query, payeeID, userID).Scan(
		&payee.ID,
		&payee.UserID,
		&payee.Name,
		&payee.AccountNumber,
		&payee.Category,
		&payee.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPayeeNotFound
		}
		return nil, err
	}
	return &payee, nil
}

// ListPayeesByUserID returns the user's saved payees, newest first.
func (r *PostgresRepository) ListPayeesByUserID(ctx context.Context, userID string) ([]domain.Payee, error) {
	query := `
		SELECT id::text, user_id::text, name, account_number, category, created_at
		FROM payees
		WHERE user_id::text = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payees := make([]domain.Payee, 0)
	for rows.Next() {
		var payee domain.Payee
		if err := rows.Scan(&payee.ID, &payee.UserID, &payee.Name, &payee.AccountNumber, &payee.Category, &payee.CreatedAt); err != nil {
			return nil, err
		}
		payees = append(payees, payee)
	}
	return payees, rows.Err()
}

// FindAccountByID returns a source account only if it belongs to the given user.
func (r *PostgresRepository) FindAccountByID(ctx context.Context, accountID string, userID string) (*domain.Account, error) {
	var account domain.Account
	var balance string
	query := `
		SELECT id::text, user_id::text, account_number, status, balance::text
		FROM accounts
		WHERE id::text = $1 AND user_id::text = $2
	`
	err := r.db.QueryRow(ctx, query, accountID, userID).Scan(
		&account.ID,
		&account.UserID,
		&account.AccountNumber,
		&account.Status,
		&balance,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	account.Balance, err = decimal.NewFromString(balance)
	if err != nil {
		return nil, fmt.Errorf("invalid balance for account %s: %w", accountID, err)
	}
	return &account, nil
}

// CreateBillPayment inserts a new bill payment record.
func (r *PostgresRepository) CreateBillPayment(ctx context.Context, payment *domain.BillPayment) error {
	query := `
		INSERT INTO bill_payments (id, user_id, payee_id, account_id, amount, status, provider_reference, reference)
		VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8)
		RETURNING created_at
	`
	return r.db.QueryRow(ctx, query,
		payment.ID,
		payment.UserID,
		payment.PayeeID,
		payment.AccountID,
		payment.Amount.String(),
		payment.Status,
		payment.ProviderRef,
		payment.Reference,
	).Scan(&payment.CreatedAt)
}

// MarkBillPaymentCompleted records the provider reference of a settled payment.
func (r *PostgresRepository) MarkBillPaymentCompleted(ctx context.Context, paymentID string, providerRef string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE bill_payments
		SET status = 'completed', provider_reference = $2, updated_at = NOW()
		WHERE id::text = $1
	`, paymentID, providerRef)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrBillPaymentNotFound
	}
	return nil
}

// MarkBillPaymentFailed records why a payment could not be settled.
func (r *PostgresRepository) MarkBillPaymentFailed(ctx context.Context, paymentID string, failureReason string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE bill_payments
		SET status = 'failed', failure_reason = $2, updated_at = NOW()
		WHERE id::text = $1
	`, paymentID, failureReason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrBillPaymentNotFound
	}
	return nil
}

const verifiedSubmissionColumns = `
	reference_id::text, user_id::text, payee_id::text, account_id::text, amount::text, reference,
	document_key, status, reviewer_id, decision_note, payment_id, failure_reason, created_at, updated_at
`

func scanVerifiedSubmission(row pgx.Row) (*domain.VerifiedPaymentSubmission, error) {
	var s domain.VerifiedPaymentSubmission
	var amount string
	err := row.Scan(
		&s.ReferenceID,
		&s.UserID,
		&s.PayeeID,
		&s.AccountID,
		&amount,
		&s.Reference,
		&s.DocumentKey,
		&s.Status,
		&s.ReviewerID,
		&s.DecisionNote,
		&s.PaymentID,
		&s.FailureReason,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount for submission %s: %w", s.ReferenceID, err)
	}
	return &s, nil
}

// CreateVerifiedPaymentSubmission stores a payment that awaits document review.
func (r *PostgresRepository) CreateVerifiedPaymentSubmission(ctx context.Context, submission *domain.VerifiedPaymentSubmission) error {
	query := `
		INSERT INTO verified_payment_submissions (reference_id, user_id, payee_id, account_id, amount, reference, document_key, status)
		VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8)
		RETURNING created_at, updated_at
	`
	return r.db.QueryRow(ctx, query,
		submission.ReferenceID,
		submission.UserID,
		submission.PayeeID,
		submission.AccountID,
		submission.Amount.String(),
		submission.Reference,
		submission.DocumentKey,
		submission.Status,
	).Scan(&submission.CreatedAt, &submission.UpdatedAt)
}

// FindVerifiedPaymentSubmission loads a submission by its reference id.
func (r *PostgresRepository) FindVerifiedPaymentSubmission(ctx context.Context, referenceID string) (*domain.VerifiedPaymentSubmission, error) {
	row := r.db.QueryRow(ctx, `SELECT `+verifiedSubmissionColumns+` FROM verified_payment_submissions WHERE reference_id::text = $1`, referenceID)
	submission, err := scanVerifiedSubmission(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrVerificationNotFound
		}
		return nil, err
	}
	return submission, nil
}

// ClaimVerifiedPaymentForSettlement moves a pending submission to approved so exactly
// one consumer settles it.
func (r *PostgresRepository) ClaimVerifiedPaymentForSettlement(ctx context.Context, referenceID string, reviewerID string, note *string) (*domain.VerifiedPaymentSubmission, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE verified_payment_submissions
		SET status = 'approved', reviewer_id = $2, decision_note = $3, updated_at = NOW()
		WHERE reference_id::text = $1 AND status = 'pending_review'
		RETURNING `+verifiedSubmissionColumns, referenceID, reviewerID, note)
	submission, err := scanVerifiedSubmission(row)
	if err == nil {
		return submission, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if _, findErr := r.FindVerifiedPaymentSubmission(ctx, referenceID); findErr != nil {
		return nil, findErr
	}
	return nil, ErrVerificationNotPending
}

// MarkVerifiedPaymentSettled links the bill payment that settled an approved submission.
func (r *PostgresRepository) MarkVerifiedPaymentSettled(ctx context.Context, referenceID string, paymentID string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE verified_payment_submissions
		SET status = 'completed', payment_id = $2, updated_at = NOW()
		WHERE reference_id::text = $1 AND status = 'approved'
	`, referenceID, paymentID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrVerificationNotFound
	}
	return nil
}

// MarkVerifiedPaymentFailed records why an approved submission could not be paid.
func (r *PostgresRepository) MarkVerifiedPaymentFailed(ctx context.Context, referenceID string, failureReason string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE verified_payment_submissions
		SET status = 'failed', failure_reason = $2, updated_at = NOW()
		WHERE reference_id::text = $1 AND status = 'approved'
	`, referenceID, failureReason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrVerificationNotFound
	}
	return nil
}

// RejectVerifiedPayment closes a pending submission without paying it.
func (r *PostgresRepository) RejectVerifiedPayment(ctx context.Context, referenceID string, reviewerID string, note *string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE verified_payment_submissions
		SET status = 'rejected', reviewer_id = $2, decision_note = $3, updated_at = NOW()
		WHERE reference_id::text = $1 AND status = 'pending_review'
	`, referenceID, reviewerID, note)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	if _, findErr := r.FindVerifiedPaymentSubmission(ctx, referenceID); findErr != nil {
		return findErr
	}
	return ErrVerificationNotPending
}

// ExpireVerifiedPayments closes submissions left pending since before the cutoff.
func (r *PostgresRepository) ExpireVerifiedPayments(ctx context.Context, submittedBefore time.Time) ([]domain.VerifiedPaymentSubmission, error) {
	rows, err := r.db.Query(ctx, `
		UPDATE verified_payment_submissions
		SET status = 'expired', updated_at = NOW()
		WHERE status = 'pending_review' AND created_at < $1
		RETURNING `+verifiedSubmissionColumns, submittedBefore)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	expired := make([]domain.VerifiedPaymentSubmission, 0)
	for rows.Next() {
		submission, err := scanVerifiedSubmission(rows)
		if err != nil {
			return nil, err
		}
		expired = append(expired, *submission)
	}
	return expired, rows.Err()
}

// GetUserSecurityCredentialByUserID returns transaction PIN security metadata for a user.
func (r *PostgresRepository) GetUserSecurityCredentialByUserID(ctx context.Context, userID string) (*domain.UserSecurityCredential, error) {
	var credential domain.UserSecurityCredential
	query := `
		SELECT user_id::text, transaction_pin_hash, failed_attempts, locked_until
		FROM user_security_credentials
		WHERE user_id::text = $1
	`
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&credential.UserID,
		&credential.TransactionPINHash,
		&credential.FailedAttempts,
		&credential.LockedUntil,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTransactionPINNotSet
		}
		return nil, err
	}
	if credential.TransactionPINHash == "" {
		return nil, ErrTransactionPINNotSet
	}
	return &credential, nil
}

// RecordFailedTransactionPINAttempt atomically increments failed attempts and applies lockout.
// An expired lockout starts a fresh attempt window.
func (r *PostgresRepository) RecordFailedTransactionPINAttempt(ctx context.Context, userID string, maxAttempts int, lockoutDurationSeconds int) (*domain.UserSecurityCredential, error) {
	var credential domain.UserSecurityCredential
	query := `
		WITH next AS (
			SELECT user_id,
			       CASE
			           WHEN locked_until IS NOT NULL AND locked_until <= NOW() THEN 1
			           ELSE failed_attempts + 1
			       END AS attempts
			FROM user_security_credentials
			WHERE user_id::text = $1
		)
		UPDATE user_security_credentials c
		SET failed_attempts = next.attempts,
		    last_failed_at = NOW(),
		    locked_until = CASE
		        WHEN next.attempts >= $2 THEN NOW() + make_interval(secs => $3)
		        ELSE NULL
		    END,
		    updated_at = NOW()
		FROM next
		WHERE c.user_id = next.user_id
		RETURNING c.user_id::text, c.transaction_pin_hash, c.failed_attempts, c.locked_until
	`
	err := r.db.QueryRow(ctx, query, userID, maxAttempts, lockoutDurationSeconds).Scan(
		&credential.UserID,
		&credential.TransactionPINHash,
		&credential.FailedAttempts,
		&credential.LockedUntil,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTransactionPINNotSet
		}
		return nil, err
	}
	return &credential, nil
}

// ResetTransactionPINFailureState clears the failure counter after a correct PIN.
func (r *PostgresRepository) ResetTransactionPINFailureState(ctx context.Context, userID string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE user_security_credentials
		SET failed_attempts = 0, locked_until = NULL, updated_at = NOW()
		WHERE user_id::text = $1
	`, userID)
	return err
}
