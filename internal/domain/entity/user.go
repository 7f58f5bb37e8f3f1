package entity

import "github.com/google/uuid"

// User carries the provider-side identities of a marketplace member.
// CustomerID identifies the user as a paying party; PayoutAccountID as a
// receiving party. A user without a payout account cannot be transferred
// funds.
type User struct {
	ID              uuid.UUID `json:"id"`
	Email           string    `json:"email"`
	Name            string    `json:"name"`
	CustomerID      *string   `json:"customer_id,omitempty"`
	PayoutAccountID *string   `json:"payout_account_id,omitempty"`
}

// HasPayoutAccount reports whether the user can receive transfers.
func (u *User) HasPayoutAccount() bool {
	return u.PayoutAccountID != nil && *u.PayoutAccountID != ""
}
