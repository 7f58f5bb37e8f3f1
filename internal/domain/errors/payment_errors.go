package errors

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/wayfarerhq/payment-service/internal/domain/model"
)

// Validation and not-found sentinels. Validation errors are rejected
// before any external provider call is made.
var (
	ErrInvalidAmount       = errors.New("amount must be greater than zero")
	ErrAmountExceedsRefund = errors.New("refund amount exceeds the original payment amount")
	ErrCustomerRequired    = errors.New("customer ID is required")
	ErrPaymentNotFound     = errors.New("payment not found")
	ErrRequestNotFound     = errors.New("delivery request not found")
	ErrUserNotFound        = errors.New("user not found")
	ErrNoPayoutAccount     = errors.New("user has no payout account configured")
	ErrDuplicateIntent     = errors.New("provider intent already recorded")
	ErrStatusConflict      = errors.New("payment status conflict")
)

// StatusConflictError is the precondition error: an operation was invoked
// against a payment whose current status does not permit it. It is always
// raised before the provider is called, so a losing concurrent caller
// never produces a duplicate external side effect.
type StatusConflictError struct {
	PaymentID uuid.UUID
	Current   model.PaymentStatus
	Required  []model.PaymentStatus
}

func (e *StatusConflictError) Error() string {
	return fmt.Sprintf("payment %s is %s, operation requires %v", e.PaymentID, e.Current, e.Required)
}

func (e *StatusConflictError) Unwrap() error {
	return ErrStatusConflict
}

// NewStatusConflictError creates a precondition error for a payment.
func NewStatusConflictError(id uuid.UUID, current model.PaymentStatus, required ...model.PaymentStatus) *StatusConflictError {
	return &StatusConflictError{PaymentID: id, Current: current, Required: required}
}

// IsStatusConflict reports whether err is a precondition failure, either
// raised by the engine or by a conditional store write that matched zero
// rows.
func IsStatusConflict(err error) bool {
	return errors.Is(err, ErrStatusConflict)
}
