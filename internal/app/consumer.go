package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/whytehoux-projecty/Bank-sub001/internal/domain"
	"github.com/whytehoux-projecty/Bank-sub001/internal/store"
	"github.com/whytehoux-projecty/Bank-sub001/pkg/corebankingclient"
	"github.com/whytehoux-projecty/Bank-sub001/pkg/rabbitmq"
)

// VerificationDecisionConsumer settles or rejects verified bill payments when the
// reviewer workflow publishes its decision.
type VerificationDecisionConsumer struct {
	repo          store.PaymentRepository
	gateway       PaymentGateway
	eventProducer rabbitmq.Publisher
	exchange      string
	now           func() time.Time
}

func NewVerificationDecisionConsumer(repo store.PaymentRepository, gateway PaymentGateway, producer rabbitmq.Publisher, exchange string) *VerificationDecisionConsumer {
	return &VerificationDecisionConsumer{
		repo:          repo,
		gateway:       gateway,
		eventProducer: producer,
		exchange:      exchange,
		now:           time.Now,
	}
}

// Bindings maps the decision routing keys to their handlers.
func (c *VerificationDecisionConsumer) Bindings() map[string]func([]byte) bool {
	return map[string]func([]byte) bool{
		domain.RoutingKeyBillVerificationApproved: c.HandleApproved,
		domain.RoutingKeyBillVerificationRejected: c.HandleRejected,
	}
}

func (c *VerificationDecisionConsumer) HandleApproved(body []byte) bool {
	return c.handle(body, c.processApproval)
}

func (c *VerificationDecisionConsumer) HandleRejected(body []byte) bool {
	return c.handle(body, c.processRejection)
}

func (c *VerificationDecisionConsumer) handle(body []byte, process func(context.Context, domain.VerificationDecisionEvent) error) bool {
	var event domain.VerificationDecisionEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Printf("level=warn component=verification_consumer msg=\"failed to unmarshal payload; dropping\" err=%v", err)
		return true
	}
	event.ReferenceID = strings.TrimSpace(event.ReferenceID)
	if event.ReferenceID == "" {
		log.Printf("level=warn component=verification_consumer msg=\"missing reference id; dropping\"")
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), 45*time.Second)
	defer cancel()

	if err := process(ctx, event); err != nil {
		log.Printf("level=error component=verification_consumer reference_id=%s msg=\"processing failed\" err=%v", event.ReferenceID, err)
		return false
	}
	return true
}

func (c *VerificationDecisionConsumer) processApproval(ctx context.Context, event domain.VerificationDecisionEvent) error {
	submission, err := c.repo.ClaimVerifiedPaymentForSettlement(ctx, event.ReferenceID, event.ReviewerID, event.Note)
	if err != nil {
		if errors.Is(err, store.ErrVerificationNotFound) || errors.Is(err, store.ErrVerificationNotPending) {
			log.Printf("level=info component=verification_consumer reference_id=%s outcome=skip reason=%q", event.ReferenceID, err.Error())
			return nil
		}
		return fmt.Errorf("claim submission: %w", err)
	}

	// From here the submission is claimed; failures settle it as failed instead of re-queuing.
	payee, err := c.repo.FindPayeeByID(ctx, submission.PayeeID, submission.UserID)
	if err != nil {
		c.failSubmission(ctx, submission.ReferenceID, fmt.Sprintf("payee unavailable: %v", err))
		return nil
	}

	payment := &domain.BillPayment{
		ID:        uuid.NewString(),
		UserID:    submission.UserID,
		PayeeID:   submission.PayeeID,
		AccountID: submission.AccountID,
		Amount:    submission.Amount,
		Status:    "pending",
		Reference: submission.Reference,
		CreatedAt: c.now().UTC(),
	}
	if err := c.repo.CreateBillPayment(ctx, payment); err != nil {
		c.failSubmission(ctx, submission.ReferenceID, fmt.Sprintf("could not record payment: %v", err))
		return nil
	}

	receipt, err := c.gateway.PayBill(ctx, corebankingclient.BillPaymentOrder{
		PaymentID:          payment.ID,
		SourceAccountID:    submission.AccountID,
		PayeeName:          payee.Name,
		PayeeAccountNumber: payee.AccountNumber,
		Amount:             submission.Amount,
		Reference:          derefString(submission.Reference),
	})
	if err != nil {
		if markErr := c.repo.MarkBillPaymentFailed(ctx, payment.ID, err.Error()); markErr != nil {
			log.Printf("level=error component=verification_consumer payment_id=%s msg=\"failed to mark bill payment failed\" err=%v", payment.ID, markErr)
		}
		c.failSubmission(ctx, submission.ReferenceID, err.Error())
		return nil
	}

	if err := c.repo.MarkBillPaymentCompleted(ctx, payment.ID, receipt.ProviderRef); err != nil {
		log.Printf("level=error component=verification_consumer payment_id=%s msg=\"failed to mark bill payment completed\" err=%v", payment.ID, err)
	}
	if err := c.repo.MarkVerifiedPaymentSettled(ctx, submission.ReferenceID, payment.ID); err != nil {
		log.Printf("level=error component=verification_consumer reference_id=%s msg=\"failed to mark submission settled\" err=%v", submission.ReferenceID, err)
	}

	referenceID := submission.ReferenceID
	settled := domain.BillPaymentEvent{
		PaymentID:   payment.ID,
		UserID:      submission.UserID,
		PayeeID:     submission.PayeeID,
		AccountID:   submission.AccountID,
		Amount:      submission.Amount,
		ReferenceID: &referenceID,
		Timestamp:   c.now().UTC(),
	}
	c.publish(ctx, domain.RoutingKeyBillPaymentCompleted, settled)
	c.publish(ctx, domain.RoutingKeyBillVerificationSettled, settled)

	log.Printf("level=info component=verification_consumer reference_id=%s payment_id=%s outcome=settled", submission.ReferenceID, payment.ID)
	return nil
}

func (c *VerificationDecisionConsumer) processRejection(ctx context.Context, event domain.VerificationDecisionEvent) error {
	err := c.repo.RejectVerifiedPayment(ctx, event.ReferenceID, event.ReviewerID, event.Note)
	if err != nil {
		if errors.Is(err, store.ErrVerificationNotFound) || errors.Is(err, store.ErrVerificationNotPending) {
			log.Printf("level=info component=verification_consumer reference_id=%s outcome=skip reason=%q", event.ReferenceID, err.Error())
			return nil
		}
		return fmt.Errorf("reject submission: %w", err)
	}
	log.Printf("level=info component=verification_consumer reference_id=%s reviewer_id=%s outcome=rejected", event.ReferenceID, event.ReviewerID)
	return nil
}

func (c *VerificationDecisionConsumer) failSubmission(ctx context.Context, referenceID string, reason string) {
	log.Printf("level=warn component=verification_consumer reference_id=%s outcome=failed reason=%q", referenceID, reason)
	if err := c.repo.MarkVerifiedPaymentFailed(ctx, referenceID, reason); err != nil {
		log.Printf("level=error component=verification_consumer reference_id=%s msg=\"failed to mark submission failed\" err=%v", referenceID, err)
	}
}

func (c *VerificationDecisionConsumer) publish(ctx context.Context, routingKey string, event interface{}) {
	if c.eventProducer == nil {
		return
	}
	if err := c.eventProducer.Publish(ctx, c.exchange, routingKey, event); err != nil {
		log.Printf("level=warn component=verification_consumer routing_key=%s msg=\"failed to publish event\" err=%v", routingKey, err)
	}
}
