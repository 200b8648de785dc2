package models

import "time"

// Invoice represents a Lightning invoice handed out alongside a challenge.
type Invoice struct {
	// PaymentHash is the hex-encoded SHA-256 hash of the payment preimage.
	// It uniquely identifies the invoice on the backing node.
	PaymentHash string `json:"paymentHash"`
	// PaymentRequest is the BOLT11 payment request string handed to the payer.
	PaymentRequest string `json:"paymentRequest"`
	// AmountSats is the invoice amount in satoshis.
	AmountSats int64 `json:"amountSats"`
	// Settled is true once the backing node has confirmed payment.
	// It transitions false -> true exactly once and never reverses.
	Settled bool `json:"settled"`
	// SettledAt is the settlement timestamp, set only when Settled is true.
	SettledAt time.Time `json:"settledAt,omitempty"`
}

// SettlementStatus is the answer to a settlement query against the
// payment backend.
type SettlementStatus struct {
	Settled   bool
	SettledAt time.Time
}
