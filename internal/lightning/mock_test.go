package lightning

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satgate/satgate/internal/models"
	"github.com/satgate/satgate/pkg/logger"
)

func TestMockCreateInvoice(t *testing.T) {
	backend := NewMockBackend(false, logger.NewNopLogger())

	invoice, err := backend.CreateInvoice(context.Background(), 1000, "test")
	require.NoError(t, err)
	assert.Len(t, invoice.PaymentHash, 64)
	assert.NotEmpty(t, invoice.PaymentRequest)
	assert.Equal(t, int64(1000), invoice.AmountSats)
	assert.False(t, invoice.Settled)
}

func TestMockRejectsInvalidAmount(t *testing.T) {
	backend := NewMockBackend(false, logger.NewNopLogger())

	for _, amount := range []int64{0, -1} {
		_, err := backend.CreateInvoice(context.Background(), amount, "test")
		assert.ErrorIs(t, err, models.ErrInvalidAmount, "amount %d", amount)
	}
}

func TestMockUnknownInvoice(t *testing.T) {
	backend := NewMockBackend(false, logger.NewNopLogger())

	_, err := backend.CheckSettlement(context.Background(), "ffff")
	assert.ErrorIs(t, err, models.ErrInvoiceNotFound)

	err = backend.Settle("ffff")
	assert.ErrorIs(t, err, models.ErrInvoiceNotFound)

	_, err = backend.Preimage("ffff")
	assert.ErrorIs(t, err, models.ErrInvoiceNotFound)
}

func TestMockSettleFlow(t *testing.T) {
	backend := NewMockBackend(false, logger.NewNopLogger())

	invoice, err := backend.CreateInvoice(context.Background(), 500, "test")
	require.NoError(t, err)

	status, err := backend.CheckSettlement(context.Background(), invoice.PaymentHash)
	require.NoError(t, err)
	assert.False(t, status.Settled)

	// The preimage stays secret until settlement.
	_, err = backend.Preimage(invoice.PaymentHash)
	require.Error(t, err)

	require.NoError(t, backend.Settle(invoice.PaymentHash))
	status, err = backend.CheckSettlement(context.Background(), invoice.PaymentHash)
	require.NoError(t, err)
	assert.True(t, status.Settled)
	firstSettledAt := status.SettledAt

	// Settlement is monotonic, a second Settle keeps the timestamp.
	require.NoError(t, backend.Settle(invoice.PaymentHash))
	status, err = backend.CheckSettlement(context.Background(), invoice.PaymentHash)
	require.NoError(t, err)
	assert.Equal(t, firstSettledAt, status.SettledAt)
}

func TestMockPreimageMatchesPaymentHash(t *testing.T) {
	backend := NewMockBackend(true, logger.NewNopLogger())

	invoice, err := backend.CreateInvoice(context.Background(), 500, "test")
	require.NoError(t, err)
	assert.True(t, invoice.Settled)

	preimageHex, err := backend.Preimage(invoice.PaymentHash)
	require.NoError(t, err)

	preimage, err := hex.DecodeString(preimageHex)
	require.NoError(t, err)
	hash := sha256.Sum256(preimage)
	assert.Equal(t, invoice.PaymentHash, hex.EncodeToString(hash[:]))
}
