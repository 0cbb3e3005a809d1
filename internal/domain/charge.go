package domain

import "time"

// Charge represents an incoming payment-charge request to be screened.
type Charge struct {
	ID string `json:"id"`

	// Amount in the smallest sensible unit of the given currency.
	Amount float64 `json:"amount"`

	// Currency as supplied by the caller. Rules see the raw value;
	// only isSupportedCurrency normalizes case.
	Currency string `json:"currency"`

	// Source is the payment source token (card token, wallet ref, ...).
	Source string `json:"source"`

	// Email of the payer.
	Email string `json:"email"`

	CreatedAt time.Time `json:"createdAt"`

	// Optional metadata passed through to audit records.
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// ChargeRequest is the API request payload for charge screening.
type ChargeRequest struct {
	Amount   float64                `json:"amount"`
	Currency string                 `json:"currency"`
	Source   string                 `json:"source"`
	Email    string                 `json:"email"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// ToCharge converts a request to a Charge domain object.
func (r *ChargeRequest) ToCharge(id string) *Charge {
	return &Charge{
		ID:        id,
		Amount:    r.Amount,
		Currency:  r.Currency,
		Source:    r.Source,
		Email:     r.Email,
		CreatedAt: time.Now().UTC(),
		Metadata:  r.Metadata,
	}
}
