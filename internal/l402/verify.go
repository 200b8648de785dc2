package l402

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/satgate/satgate/internal/models"
	"github.com/satgate/satgate/pkg/logger"
	"github.com/satgate/satgate/pkg/validation"
)

// Outcome classifies a verification decision.
type Outcome int

const (
	// OutcomeUnauthorized means the credential itself is invalid (401).
	// It is the zero value, so an unset Result denies.
	OutcomeUnauthorized Outcome = iota
	// OutcomeAuthorized lets the request through.
	OutcomeAuthorized
	// OutcomePaymentRequired means the token is fine but the payment
	// proof is not (402).
	OutcomePaymentRequired
)

// Result is a verification decision. PaymentHash and TokenID are filled in
// once the token decodes, so callers can correlate decisions with the
// challenge ledger.
type Result struct {
	Outcome     Outcome
	Reason      string
	PaymentHash string
	TokenID     string
}

func unauthorized(reason string) Result {
	return Result{Outcome: OutcomeUnauthorized, Reason: reason}
}

// Verifier checks credentials presented by clients. It holds no per-request
// state; a single Verifier serves concurrent requests.
//
// Settlement policy: by default a preimage hashing to the bound payment
// hash is accepted as proof of payment, since the Lightning network only
// reveals the preimage to the payer upon settlement. With requireSettlement
// the verifier additionally confirms settlement with the payment backend,
// consulting a cache bounded by the token's own expiration.
type Verifier struct {
	logger            *logger.Logger
	rootKey           []byte
	backend           models.LightningBackend
	requireSettlement bool
	cache             *settlementCache
}

// NewVerifier creates a Verifier sharing the minter's 32-byte root key.
func NewVerifier(
	rootKey []byte,
	backend models.LightningBackend,
	requireSettlement bool,
	logger *logger.Logger,
) (*Verifier, error) {
	if len(rootKey) != validation.SecretKeySize {
		return nil, fmt.Errorf("root key must be exactly %d bytes", validation.SecretKeySize)
	}
	return &Verifier{
		logger:            logger,
		rootKey:           rootKey,
		backend:           backend,
		requireSettlement: requireSettlement,
		cache:             newSettlementCache(),
	}, nil
}

// Verify decides whether a credential authorizes access to the given
// location at the given time. It mutates nothing. A non-nil error is
// returned only for payment-backend faults, which callers surface as 503;
// every authentication failure is expressed through the Result.
func (v *Verifier) Verify(ctx context.Context, cred *Credential, location string, now time.Time) (Result, error) {
	mac, err := DecodeMacaroon(cred.Token)
	if err != nil {
		return unauthorized("malformed token"), nil
	}

	// Signature first: no caveat work on forged tokens. The permissive
	// checker verifies only the HMAC chain; caveats are evaluated below.
	if err := mac.Verify(v.rootKey, func(string) error { return nil }, nil); err != nil {
		return unauthorized("bad signature"), nil
	}

	paymentHash, tokenID, err := decodeIdentifier(mac.Id())
	if err != nil {
		return unauthorized("malformed token"), nil
	}
	result := Result{PaymentHash: paymentHash, TokenID: tokenID}

	caveats := make(map[string]string, len(mac.Caveats()))
	for _, raw := range mac.Caveats() {
		caveat, err := parseCaveat(string(raw.Id))
		if err != nil {
			return unauthorized("malformed caveat"), nil
		}
		switch caveat.Key {
		case CaveatPaymentHash, CaveatExpiration, CaveatLocation:
			if previous, ok := caveats[caveat.Key]; ok && previous != caveat.Value {
				// Two different values can never both hold.
				return unauthorized("contradictory caveat: " + caveat.Key), nil
			}
			caveats[caveat.Key] = caveat.Value
		default:
			// Unrecognized caveats fail closed: we cannot prove an
			// unknown restriction holds.
			return unauthorized("unsatisfied caveat: " + caveat.Key), nil
		}
	}
	for _, required := range []string{CaveatPaymentHash, CaveatExpiration, CaveatLocation} {
		if _, ok := caveats[required]; !ok {
			return unauthorized("missing caveat: " + required), nil
		}
	}

	expiration, err := strconv.ParseInt(caveats[CaveatExpiration], 10, 64)
	if err != nil {
		return unauthorized("malformed caveat"), nil
	}
	if !now.Before(time.Unix(expiration, 0)) {
		result.Outcome = OutcomeUnauthorized
		result.Reason = "expired"
		return result, nil
	}

	if caveats[CaveatLocation] != location {
		result.Outcome = OutcomeUnauthorized
		result.Reason = "wrong location"
		return result, nil
	}

	// The payment_hash caveat must agree with the hash baked into the
	// identifier, otherwise the token binding is ambiguous.
	if caveats[CaveatPaymentHash] != paymentHash {
		result.Outcome = OutcomeUnauthorized
		result.Reason = "payment hash mismatch"
		return result, nil
	}

	preimage, err := validation.ValidatePreimage(cred.Preimage)
	if err != nil {
		result.Outcome = OutcomePaymentRequired
		result.Reason = "invalid preimage"
		return result, nil
	}
	hash := sha256.Sum256(preimage)
	hashHex := hex.EncodeToString(hash[:])
	if subtle.ConstantTimeCompare([]byte(hashHex), []byte(paymentHash)) != 1 {
		result.Outcome = OutcomePaymentRequired
		result.Reason = "preimage does not match invoice"
		return result, nil
	}

	if v.requireSettlement {
		settled, err := v.checkSettlement(ctx, paymentHash, time.Unix(expiration, 0))
		if err != nil {
			return Result{}, err
		}
		if !settled {
			result.Outcome = OutcomePaymentRequired
			result.Reason = "invoice not settled"
			return result, nil
		}
	}

	result.Outcome = OutcomeAuthorized
	return result, nil
}

// checkSettlement confirms settlement with the backend, caching positive
// answers until the token's expiration. Settlement never reverses, so a
// cached "settled" stays correct for the token's whole lifetime.
func (v *Verifier) checkSettlement(ctx context.Context, paymentHash string, tokenExpiration time.Time) (bool, error) {
	if v.cache.settled(paymentHash) {
		return true, nil
	}

	status, err := v.backend.CheckSettlement(ctx, paymentHash)
	if err != nil {
		if errors.Is(err, models.ErrInvoiceNotFound) {
			return false, nil
		}
		return false, err
	}
	if status.Settled {
		v.cache.markSettled(paymentHash, tokenExpiration)
	}
	return status.Settled, nil
}
