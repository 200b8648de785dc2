package validation

import (
	"encoding/hex"
	"fmt"
)

const (
	// PaymentHashSize is the byte length of a Lightning payment hash.
	PaymentHashSize = 32
	// PreimageSize is the byte length of a payment preimage.
	PreimageSize = 32
	// SecretKeySize is the byte length of the token signing key.
	SecretKeySize = 32
)

// ValidatePaymentHash checks that the given string is a hex-encoded
// 32-byte payment hash and returns the decoded bytes.
func ValidatePaymentHash(paymentHash string) ([]byte, error) {
	return decodeFixed(paymentHash, PaymentHashSize, "payment hash")
}

// ValidatePreimage checks that the given string is a hex-encoded
// 32-byte preimage and returns the decoded bytes.
func ValidatePreimage(preimage string) ([]byte, error) {
	return decodeFixed(preimage, PreimageSize, "preimage")
}

// ValidateSecretKey checks that the given string is a hex-encoded
// 32-byte signing key and returns the decoded bytes.
func ValidateSecretKey(key string) ([]byte, error) {
	return decodeFixed(key, SecretKeySize, "secret key")
}

func decodeFixed(value string, size int, name string) ([]byte, error) {
	decoded, err := hex.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: not hex encoded", name)
	}
	if len(decoded) != size {
		return nil, fmt.Errorf("invalid %s: expected %d bytes, got %d", name, size, len(decoded))
	}
	return decoded, nil
}
