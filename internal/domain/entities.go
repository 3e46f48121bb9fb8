/**
 * @description
 * Back-office views of the records staff can act on in bulk. Only the columns the
 * operations-service reads are modelled; the full schema belongs to the portal.
 */

package domain

import "time"

// Status values shared by users, accounts and cards.
const (
	StatusActive    = "ACTIVE"
	StatusInactive  = "INACTIVE"
	StatusSuspended = "SUSPENDED"
	StatusFrozen    = "FROZEN"
)

// Compliance status values of a wire transfer.
const (
	CompliancePending  = "PENDING"
	ComplianceApproved = "APPROVED"
	ComplianceRejected = "REJECTED"
)

// User is the back-office view of a customer or staff login.
type User struct {
	ID               string  `json:"id"`
	Email            string  `json:"email"`
	Status           string  `json:"status"`
	KYCStatus        string  `json:"kyc_status"`
	SuspensionReason *string `json:"suspension_reason,omitempty"`
}

// WireTransfer is an outgoing wire awaiting or past compliance review.
type WireTransfer struct {
	ID               string     `json:"id"`
	UserID           string     `json:"user_id"`
	Amount           string     `json:"amount"`
	Currency         string     `json:"currency"`
	ComplianceStatus string     `json:"compliance_status"`
	ApprovedBy       *string    `json:"approved_by,omitempty"`
	ApprovedAt       *time.Time `json:"approved_at,omitempty"`
	RejectionReason  *string    `json:"rejection_reason,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// AuditEntry is one row of the compliance audit trail.
type AuditEntry struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	ActorID   string    `json:"actor_id"`
	SubjectID string    `json:"subject_id"`
	OwnerID   *string   `json:"owner_id,omitempty"`
	FromValue *string   `json:"from_value,omitempty"`
	ToValue   string    `json:"to_value"`
	Reason    *string   `json:"reason,omitempty"`
	IPAddress string    `json:"ip_address"`
	UserAgent string    `json:"user_agent"`
	CreatedAt time.Time `json:"created_at"`
}
