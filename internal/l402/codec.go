package l402

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"

	"gopkg.in/macaroon.v2"
)

// ErrMalformedToken is returned when a presented token cannot be decoded.
var ErrMalformedToken = errors.New("malformed token")

// EncodeMacaroon serializes a token macaroon into its transport form:
// base64 of the binary macaroon encoding.
func EncodeMacaroon(mac *macaroon.Macaroon) (string, error) {
	macBytes, err := mac.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("failed to marshal macaroon: %w", err)
	}
	return base64.StdEncoding.EncodeToString(macBytes), nil
}

// DecodeMacaroon is the inverse of EncodeMacaroon. Hex encoding is accepted
// as well since some clients send it. Any framing or truncation problem
// yields ErrMalformedToken.
func DecodeMacaroon(token string) (*macaroon.Macaroon, error) {
	macBytes, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		macBytes, err = hex.DecodeString(token)
		if err != nil {
			return nil, fmt.Errorf("%w: not base64 or hex", ErrMalformedToken)
		}
	}

	mac := &macaroon.Macaroon{}
	if err := mac.UnmarshalBinary(macBytes); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	return mac, nil
}
