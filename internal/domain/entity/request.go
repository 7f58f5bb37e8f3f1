package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RequestItem is a single line of a delivery request. EstimatedPrice is the
// requester's pre-purchase estimate; ActualPrice is set by the traveler
// after purchase and takes precedence in cost calculation.
type RequestItem struct {
	Name           string           `json:"name"`
	Quantity       int              `json:"quantity"`
	EstimatedPrice decimal.Decimal  `json:"estimated_price"`
	ActualPrice    *decimal.Decimal `json:"actual_price,omitempty"`
}

// UnitPrice returns the price used for cost calculation, preferring the
// post-purchase actual price when present.
func (i RequestItem) UnitPrice() decimal.Decimal {
	if i.ActualPrice != nil {
		return *i.ActualPrice
	}
	return i.EstimatedPrice
}

// DeliveryRequest is the read-only collaborator entity a payment is
// attached to. The payment engine never mutates it.
type DeliveryRequest struct {
	ID          uuid.UUID       `json:"id"`
	RequesterID uuid.UUID       `json:"requester_id"`
	TravelerID  *uuid.UUID      `json:"traveler_id,omitempty"`
	Currency    string          `json:"currency"`
	DeliveryFee decimal.Decimal `json:"delivery_fee"`
	Items       []RequestItem   `json:"items"`
	CreatedAt   time.Time       `json:"created_at"`
}
