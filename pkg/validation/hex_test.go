package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePaymentHash(t *testing.T) {
	valid := strings.Repeat("ab", 32)
	decoded, err := ValidatePaymentHash(valid)
	require.NoError(t, err)
	assert.Len(t, decoded, PaymentHashSize)

	for _, input := range []string{
		"",
		"abc",
		strings.Repeat("ab", 31),
		strings.Repeat("ab", 33),
		strings.Repeat("zz", 32),
	} {
		_, err := ValidatePaymentHash(input)
		assert.Error(t, err, "input %q", input)
	}
}

func TestValidatePreimage(t *testing.T) {
	decoded, err := ValidatePreimage(strings.Repeat("0f", 32))
	require.NoError(t, err)
	assert.Len(t, decoded, PreimageSize)

	_, err = ValidatePreimage("0f")
	assert.Error(t, err)
}

func TestValidateSecretKey(t *testing.T) {
	decoded, err := ValidateSecretKey(strings.Repeat("ff", 32))
	require.NoError(t, err)
	assert.Len(t, decoded, SecretKeySize)

	_, err = ValidateSecretKey("not hex at all")
	assert.Error(t, err)
}
