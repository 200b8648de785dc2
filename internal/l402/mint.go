package l402

import (
	"context"
	"fmt"
	"time"

	"gopkg.in/macaroon.v2"

	"github.com/satgate/satgate/internal/models"
	"github.com/satgate/satgate/pkg/logger"
	"github.com/satgate/satgate/pkg/validation"
)

// Challenge pairs a freshly minted token with the unpaid invoice it is
// bound to. Rendered by the gate into a 402 response.
type Challenge struct {
	Macaroon *macaroon.Macaroon
	Token    string
	TokenID  string
	Invoice  *models.Invoice
}

// Minter issues challenges: it obtains an invoice from the payment backend
// and mints a token bound to that invoice's payment hash.
type Minter struct {
	logger   *logger.Logger
	rootKey  []byte
	backend  models.LightningBackend
	repo     models.Repository
	validity time.Duration
}

// NewMinter creates a Minter. The root key is the process-wide signing
// secret and must be exactly 32 bytes.
func NewMinter(
	rootKey []byte,
	backend models.LightningBackend,
	repo models.Repository,
	validity time.Duration,
	logger *logger.Logger,
) (*Minter, error) {
	if len(rootKey) != validation.SecretKeySize {
		return nil, fmt.Errorf("root key must be exactly %d bytes", validation.SecretKeySize)
	}
	if validity <= 0 {
		return nil, fmt.Errorf("token validity must be positive")
	}
	return &Minter{
		logger:   logger,
		rootKey:  rootKey,
		backend:  backend,
		repo:     repo,
		validity: validity,
	}, nil
}

// IssueChallenge requests an invoice for priceSats and mints a token whose
// caveats are exactly payment_hash, expiration and location, in that order.
// Backend failures are propagated so the caller can answer 503 instead of a
// 402 that has no invoice to pay.
func (m *Minter) IssueChallenge(ctx context.Context, priceSats int64, location string) (*Challenge, error) {
	memo := fmt.Sprintf("L402 access: %s", location)
	invoice, err := m.backend.CreateInvoice(ctx, priceSats, memo)
	if err != nil {
		return nil, fmt.Errorf("failed to create invoice: %w", err)
	}

	hashBytes, err := validation.ValidatePaymentHash(invoice.PaymentHash)
	if err != nil {
		return nil, fmt.Errorf("backend returned bad payment hash: %w", err)
	}

	id, err := newIdentifier(hashBytes)
	if err != nil {
		return nil, err
	}

	mac, err := macaroon.New(m.rootKey, id, location, macaroon.LatestVersion)
	if err != nil {
		return nil, fmt.Errorf("failed to mint macaroon: %w", err)
	}

	// Caveat order is fixed: it feeds the chained signature, so a token
	// minted here never verifies with reordered caveats.
	expiration := time.Now().Add(m.validity)
	caveats := []Caveat{
		{Key: CaveatPaymentHash, Value: invoice.PaymentHash},
		{Key: CaveatExpiration, Value: fmt.Sprintf("%d", expiration.Unix())},
		{Key: CaveatLocation, Value: location},
	}
	for _, caveat := range caveats {
		if err := mac.AddFirstPartyCaveat([]byte(caveat.String())); err != nil {
			return nil, fmt.Errorf("failed to add caveat %s: %w", caveat.Key, err)
		}
	}

	token, err := EncodeMacaroon(mac)
	if err != nil {
		return nil, err
	}

	_, tokenID, err := decodeIdentifier(id)
	if err != nil {
		return nil, err
	}

	// Record the challenge in the ledger. The ledger is advisory, so a
	// write failure is logged rather than voiding the challenge.
	if err := m.repo.AddChallenge(&models.Challenge{
		PaymentHash: invoice.PaymentHash,
		TokenID:     tokenID,
		Location:    location,
		PriceSats:   priceSats,
		IssuedAt:    time.Now().Unix(),
		ExpiresAt:   expiration.Unix(),
	}); err != nil {
		m.logger.Errorw("Failed to record challenge", "payment_hash", invoice.PaymentHash, "error", err)
	}

	m.logger.Infow("Challenge issued", "payment_hash", invoice.PaymentHash, "price_sats", priceSats, "location", location)

	return &Challenge{
		Macaroon: mac,
		Token:    token,
		TokenID:  tokenID,
		Invoice:  invoice,
	}, nil
}
