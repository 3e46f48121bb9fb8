package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/whytehoux-projecty/Bank-sub001/internal/store"
	"golang.org/x/crypto/bcrypt"
)

// VerifyTransactionPIN checks the customer's transaction PIN. Wrong PINs are counted
// and the PIN locks once the configured number of attempts is reached.
func (w *PaymentWorkflow) VerifyTransactionPIN(ctx context.Context, userID string, pin string) error {
	credential, err := w.repo.GetUserSecurityCredentialByUserID(ctx, userID)
	if err != nil {
		return err
	}

	now := w.now()
	if credential.LockedUntil != nil && now.Before(*credential.LockedUntil) {
		return ErrTransactionPINLocked
	}

	pin = strings.TrimSpace(pin)
	if pin == "" || bcrypt.CompareHashAndPassword([]byte(credential.TransactionPINHash), []byte(pin)) != nil {
		updated, recordErr := w.repo.RecordFailedTransactionPINAttempt(ctx, userID, w.cfg.PINMaxAttempts, w.cfg.PINLockoutSeconds)
		if recordErr != nil {
			if errors.Is(recordErr, store.ErrTransactionPINNotSet) {
				return recordErr
			}
			return fmt.Errorf("failed to record pin attempt: %w", recordErr)
		}
		if updated != nil && updated.LockedUntil != nil && now.Before(*updated.LockedUntil) {
			log.Printf("level=warn component=payments user_id=%s attempts=%d msg=\"transaction pin locked\"", userID, updated.FailedAttempts)
			return ErrTransactionPINLocked
		}
		return ErrInvalidTransactionPIN
	}

	if credential.FailedAttempts > 0 || credential.LockedUntil != nil {
		if err := w.repo.ResetTransactionPINFailureState(ctx, userID); err != nil {
			log.Printf("level=warn component=payments user_id=%s msg=\"failed to reset pin failure state\" err=%v", userID, err)
		}
	}
	return nil
}
