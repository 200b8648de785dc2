package models

import (
	"context"
	"errors"
)

var (
	// ErrBackendUnavailable is returned when the payment backend cannot be
	// reached. Callers surface it as 503, never as a bare 402.
	ErrBackendUnavailable = errors.New("payment backend unavailable")

	// ErrInvalidAmount is returned for non-positive invoice amounts.
	ErrInvalidAmount = errors.New("invoice amount must be positive")

	// ErrInvoiceNotFound is returned when a payment hash is unknown to the
	// backend.
	ErrInvoiceNotFound = errors.New("invoice not found")
)

// LightningBackend is the payment oracle behind the gate. Two
// implementations exist: a real LND node client and an in-memory mock.
// Swapping them must not change caller behavior beyond latency and the
// absence of real money movement.
type LightningBackend interface {
	// CreateInvoice registers a new invoice for the given amount.
	CreateInvoice(ctx context.Context, amountSats int64, memo string) (*Invoice, error)

	// CheckSettlement reports whether the invoice with the given
	// hex-encoded payment hash has been paid.
	CheckSettlement(ctx context.Context, paymentHash string) (*SettlementStatus, error)

	// Close releases the backend connection.
	Close() error
}
