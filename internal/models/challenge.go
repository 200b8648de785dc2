package models

// Challenge records a minted access token bound to an invoice. One row per
// issued challenge; settlement is discovered later and recorded at most once.
type Challenge struct {
	// PaymentHash is the hex-encoded payment hash the token is bound to.
	PaymentHash string `json:"payment_hash" gorm:"column:payment_hash;primaryKey"`
	// TokenID is the hex-encoded random token identifier minted into the macaroon.
	TokenID string `json:"token_id" gorm:"column:token_id;index;not null"`
	// Location is the resource space the token authorizes.
	Location string `json:"location" gorm:"column:location"`
	// PriceSats is the invoice amount in satoshis.
	PriceSats int64 `json:"price_sats" gorm:"column:price_sats"`
	// IssuedAt is the Unix timestamp when the challenge was issued.
	IssuedAt int64 `json:"issued_at" gorm:"column:issued_at;index"`
	// ExpiresAt is the Unix timestamp after which the token is void.
	ExpiresAt int64 `json:"expires_at" gorm:"column:expires_at;index"`
	// Settled is set once a payment for the bound invoice has been observed.
	Settled bool `json:"settled" gorm:"column:settled;index"`
	// SettledAt is the Unix timestamp of the first observed settlement.
	SettledAt int64 `json:"settled_at" gorm:"column:settled_at"`
}
