// Package l402 implements the L402 token core: minting payment-bound
// macaroons, encoding them for transport and verifying credentials
// presented by clients.
package l402

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const (
	// HeaderScheme is the authentication scheme used in Authorization and
	// WWW-Authenticate headers.
	HeaderScheme = "L402"
	// legacyScheme is the pre-rename spelling still sent by older clients.
	legacyScheme = "LSAT"

	// CaveatPaymentHash binds the token to an invoice.
	CaveatPaymentHash = "payment_hash"
	// CaveatExpiration is the absolute Unix timestamp after which the
	// token is void.
	CaveatExpiration = "expiration"
	// CaveatLocation names the resource space the token authorizes.
	CaveatLocation = "location"
)

// identifier layout: version(2, big endian) || payment_hash(32) || token_id(32)
const (
	identifierVersion = uint16(0)
	identifierSize    = 2 + 32 + 32
)

// Caveat is a single key=value restriction carried by the token. Every
// caveat must hold for the token to be accepted.
type Caveat struct {
	Key   string
	Value string
}

func (c Caveat) String() string {
	return c.Key + "=" + c.Value
}

func parseCaveat(raw string) (Caveat, error) {
	key, value, found := strings.Cut(raw, "=")
	if !found || key == "" {
		return Caveat{}, fmt.Errorf("not a key=value caveat: %q", raw)
	}
	return Caveat{Key: key, Value: value}, nil
}

// Credential is what a client presents on a request: the encoded token and
// the hex preimage claimed to hash to the bound payment hash.
type Credential struct {
	Token    string
	Preimage string
}

// ErrInvalidHeader is returned for Authorization headers that do not carry
// an L402 credential.
var ErrInvalidHeader = errors.New("invalid authorization header")

// ParseHeader parses an "Authorization: L402 <token>:<preimage-hex>" header
// into a Credential. The LSAT scheme is accepted for older clients.
func ParseHeader(header string) (*Credential, error) {
	scheme, rest, found := strings.Cut(header, " ")
	if !found {
		return nil, ErrInvalidHeader
	}
	if scheme != HeaderScheme && scheme != legacyScheme {
		return nil, fmt.Errorf("%w: unknown scheme %q", ErrInvalidHeader, scheme)
	}

	token, preimage, found := strings.Cut(strings.TrimSpace(rest), ":")
	if !found || token == "" || preimage == "" {
		return nil, fmt.Errorf("%w: want <token>:<preimage>", ErrInvalidHeader)
	}

	return &Credential{Token: token, Preimage: preimage}, nil
}

// newIdentifier builds the token identifier for the given payment hash,
// with a fresh random token id. The identifier names the token instance
// and carries no authorization meaning by itself.
func newIdentifier(paymentHash []byte) ([]byte, error) {
	if len(paymentHash) != 32 {
		return nil, fmt.Errorf("payment hash must be 32 bytes, got %d", len(paymentHash))
	}

	id := make([]byte, identifierSize)
	binary.BigEndian.PutUint16(id[:2], identifierVersion)
	copy(id[2:34], paymentHash)
	if _, err := rand.Read(id[34:]); err != nil {
		return nil, fmt.Errorf("failed to generate token id: %w", err)
	}
	return id, nil
}

// decodeIdentifier splits a token identifier into its payment hash and
// token id, both hex encoded.
func decodeIdentifier(id []byte) (paymentHash, tokenID string, err error) {
	if len(id) != identifierSize {
		return "", "", fmt.Errorf("identifier must be %d bytes, got %d", identifierSize, len(id))
	}
	if version := binary.BigEndian.Uint16(id[:2]); version != identifierVersion {
		return "", "", fmt.Errorf("unsupported identifier version %d", version)
	}
	return hex.EncodeToString(id[2:34]), hex.EncodeToString(id[34:]), nil
}
