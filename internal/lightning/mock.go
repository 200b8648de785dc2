package lightning

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/satgate/satgate/internal/models"
	"github.com/satgate/satgate/pkg/logger"
)

// MockBackend implements models.LightningBackend entirely in memory for
// environments without payment infrastructure. It generates real
// preimage/hash pairs but performs no network I/O and moves no money.
type MockBackend struct {
	mu         sync.Mutex
	logger     *logger.Logger
	autoSettle bool
	invoices   map[string]*mockInvoice
}

type mockInvoice struct {
	invoice   models.Invoice
	preimage  []byte
	settledAt time.Time
}

// NewMockBackend creates a simulator. With autoSettle every invoice is
// settled the moment it is created; otherwise settlement happens on an
// explicit Settle call.
func NewMockBackend(autoSettle bool, logger *logger.Logger) *MockBackend {
	return &MockBackend{
		logger:     logger,
		autoSettle: autoSettle,
		invoices:   make(map[string]*mockInvoice),
	}
}

// Close is a no-op for the simulator.
func (m *MockBackend) Close() error {
	return nil
}

// CreateInvoice mints a preimage, derives the payment hash and stores the
// invoice.
func (m *MockBackend) CreateInvoice(ctx context.Context, amountSats int64, memo string) (*models.Invoice, error) {
	if amountSats <= 0 {
		return nil, models.ErrInvalidAmount
	}

	preimage := make([]byte, 32)
	if _, err := rand.Read(preimage); err != nil {
		return nil, fmt.Errorf("failed to generate preimage: %w", err)
	}
	hash := sha256.Sum256(preimage)
	paymentHash := hex.EncodeToString(hash[:])

	entry := &mockInvoice{
		invoice: models.Invoice{
			PaymentHash: paymentHash,
			// Not a parseable BOLT11 string; good enough for a backend
			// that nobody actually pays.
			PaymentRequest: fmt.Sprintf("lnmock%d_%s", amountSats, paymentHash[:16]),
			AmountSats:     amountSats,
		},
		preimage: preimage,
	}
	if m.autoSettle {
		entry.invoice.Settled = true
		entry.settledAt = time.Now()
	}

	m.mu.Lock()
	m.invoices[paymentHash] = entry
	m.mu.Unlock()

	m.logger.Debugw("Mock invoice created", "payment_hash", paymentHash, "amount_sats", amountSats, "auto_settled", m.autoSettle)

	invoice := entry.invoice
	return &invoice, nil
}

// CheckSettlement reports the stored settlement state.
func (m *MockBackend) CheckSettlement(ctx context.Context, paymentHash string) (*models.SettlementStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.invoices[paymentHash]
	if !ok {
		return nil, models.ErrInvoiceNotFound
	}

	return &models.SettlementStatus{
		Settled:   entry.invoice.Settled,
		SettledAt: entry.settledAt,
	}, nil
}

// Settle marks the invoice as paid. This is the explicit test trigger used
// when auto-settle is off. Settlement is monotonic: repeated calls keep the
// original timestamp.
func (m *MockBackend) Settle(paymentHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.invoices[paymentHash]
	if !ok {
		return models.ErrInvoiceNotFound
	}
	if !entry.invoice.Settled {
		entry.invoice.Settled = true
		entry.settledAt = time.Now()
	}
	return nil
}

// Preimage reveals the preimage of an invoice, mimicking what the Lightning
// protocol reveals to the payer upon settlement. Unsettled invoices keep
// their preimage secret, just like the real network.
func (m *MockBackend) Preimage(paymentHash string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.invoices[paymentHash]
	if !ok {
		return "", models.ErrInvoiceNotFound
	}
	if !entry.invoice.Settled {
		return "", fmt.Errorf("invoice %s not settled, preimage unavailable", paymentHash)
	}
	return hex.EncodeToString(entry.preimage), nil
}
