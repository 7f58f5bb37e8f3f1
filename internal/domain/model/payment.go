package model

import (
	"database/sql/driver"
	"time"

	"github.com/google/uuid"
)

// PaymentStatus represents the lifecycle state of a payment record
type PaymentStatus string

const (
	PaymentStatusPending     PaymentStatus = "pending"
	PaymentStatusAuthorized  PaymentStatus = "authorized"
	PaymentStatusCaptured    PaymentStatus = "captured"
	PaymentStatusTransferred PaymentStatus = "transferred"
	PaymentStatusRefunded    PaymentStatus = "refunded"
	PaymentStatusFailed      PaymentStatus = "failed"
	PaymentStatusCancelled   PaymentStatus = "cancelled"
)

// Scan implements sql.Scanner interface
func (s *PaymentStatus) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		*s = PaymentStatus(v)
	case []byte:
		*s = PaymentStatus(v)
	default:
		*s = PaymentStatusPending
	}
	return nil
}

// Value implements driver.Valuer interface
func (s PaymentStatus) Value() (driver.Value, error) {
	return string(s), nil
}

// Valid reports whether s is one of the known lifecycle states.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusAuthorized, PaymentStatusCaptured,
		PaymentStatusTransferred, PaymentStatusRefunded, PaymentStatusFailed,
		PaymentStatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed from s.
func (s PaymentStatus) Terminal() bool {
	switch s {
	case PaymentStatusRefunded, PaymentStatusFailed, PaymentStatusCancelled:
		return true
	}
	return false
}

// transitions is the forward-only lifecycle graph. A status missing from
// the map is terminal.
var transitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending:     {PaymentStatusAuthorized, PaymentStatusFailed},
	PaymentStatusAuthorized:  {PaymentStatusCaptured, PaymentStatusFailed, PaymentStatusCancelled},
	PaymentStatusCaptured:    {PaymentStatusTransferred, PaymentStatusRefunded},
	PaymentStatusTransferred: {PaymentStatusRefunded},
}

// CanTransitionTo reports whether moving from s to next is a legal forward
// transition.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// PaymentType distinguishes the original charge from derived ledger rows
type PaymentType string

const (
	PaymentTypeDelivery PaymentType = "delivery_payment"
	PaymentTypeRefund   PaymentType = "refund"
	PaymentTypePayout   PaymentType = "payout"
)

// MetadataKeyOriginalPayment links refund and payout rows back to the
// delivery payment they were derived from.
const MetadataKeyOriginalPayment = "original_payment_id"

// Payment is one ledger row: the append-only unit of monetary history.
// Rows are never deleted; partial refunds and payouts are new rows of type
// refund/payout referencing the original through Metadata.
type Payment struct {
	ID               uuid.UUID     `gorm:"primaryKey;type:uuid" json:"id"`
	RequestID        uuid.UUID     `gorm:"type:uuid;not null;index" json:"request_id"`
	ProviderIntentID *string       `gorm:"unique;size:100" json:"provider_intent_id,omitempty"`
	CustomerID       string        `gorm:"size:100;not null;index" json:"customer_id"`
	AmountCents      int64         `gorm:"not null" json:"amount_cents"`
	Currency         string        `gorm:"size:3;not null;default:'USD'" json:"currency"`
	Status           PaymentStatus `gorm:"size:50;not null;index" json:"status"`
	Type             PaymentType   `gorm:"size:50;not null" json:"type"`
	Description      string        `json:"description,omitempty"`
	Metadata         JSONB         `gorm:"type:jsonb" json:"metadata,omitempty"`
	CapturedAt       *time.Time    `json:"captured_at,omitempty"`
	TransferredAt    *time.Time    `json:"transferred_at,omitempty"`
	RefundedAt       *time.Time    `json:"refunded_at,omitempty"`
	FailedAt         *time.Time    `json:"failed_at,omitempty"`
	FailureReason    *string       `json:"failure_reason,omitempty"`
	CreatedAt        time.Time     `gorm:"default:now()" json:"created_at"`
	UpdatedAt        time.Time     `gorm:"default:now()" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Payment) TableName() string {
	return "payments"
}
