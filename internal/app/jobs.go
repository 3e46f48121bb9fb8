/**
 * @description
 * Scheduled job implementations for the operations-service.
 */
package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/whytehoux-projecty/Bank-sub001/internal/domain"
	"github.com/whytehoux-projecty/Bank-sub001/pkg/rabbitmq"
)

// ExpiryRepository defines database operations needed by the jobs.
type ExpiryRepository interface {
	ExpireVerifiedPayments(ctx context.Context, submittedBefore time.Time) ([]domain.VerifiedPaymentSubmission, error)
}

// Jobs contains the logic for all scheduled tasks.
type Jobs struct {
	repo          ExpiryRepository
	eventProducer rabbitmq.Publisher
	exchange      string
	expireAfter   time.Duration
	logger        *slog.Logger
	now           func() time.Time
}

// NewJobs creates a new Jobs runner.
func NewJobs(repo ExpiryRepository, producer rabbitmq.Publisher, exchange string, expireAfter time.Duration, logger *slog.Logger) *Jobs {
	return &Jobs{
		repo:          repo,
		eventProducer: producer,
		exchange:      exchange,
		expireAfter:   expireAfter,
		logger:        logger,
		now:           time.Now,
	}
}

// ExpireStaleVerifications moves submissions still awaiting review past the cutoff to expired.
func (j *Jobs) ExpireStaleVerifications() {
	j.logger.Info("starting verification expiry job")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	cutoff := j.now().UTC().Add(-j.expireAfter)
	expired, err := j.repo.ExpireVerifiedPayments(ctx, cutoff)
	if err != nil {
		j.logger.Error("failed to expire verified payments", "error", err)
		return
	}

	if len(expired) == 0 {
		j.logger.Info("no stale verified payments to expire")
		return
	}

	j.logger.Info("expired stale verified payments", "count", len(expired), "cutoff", cutoff)
	if j.eventProducer == nil {
		return
	}

	for _, submission := range expired {
		referenceID := submission.ReferenceID
		event := domain.BillPaymentEvent{
			UserID:      submission.UserID,
			PayeeID:     submission.PayeeID,
			AccountID:   submission.AccountID,
			Amount:      submission.Amount,
			ReferenceID: &referenceID,
			Timestamp:   j.now().UTC(),
		}
		if err := j.eventProducer.Publish(ctx, j.exchange, domain.RoutingKeyBillVerificationExpired, event); err != nil {
			j.logger.Error("failed to publish expiry event", "reference_id", referenceID, "error", err)
		}
	}

	j.logger.Info("verification expiry job finished")
}
