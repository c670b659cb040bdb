package crypto

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSigningSecret(t *testing.T) {
	a, err := GenerateSigningSecret(8)
	require.NoError(t, err)
	b, err := GenerateSigningSecret(8)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	raw, err := base64.RawURLEncoding.DecodeString(a)
	require.NoError(t, err)
	assert.Len(t, raw, MinSecretBytes)
}
