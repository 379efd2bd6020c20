package tokens

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAuthCodeLength(t *testing.T) {
	code, err := GenerateAuthCode()
	require.NoError(t, err)
	assert.Len(t, code, 128)

	other, err := GenerateAuthCode()
	require.NoError(t, err)
	assert.NotEqual(t, code, other)
}

func TestGenerateVerificationCode(t *testing.T) {
	code, err := GenerateVerificationCode()
	require.NoError(t, err)
	assert.Len(t, code, 6)
}

func TestVerifyPKCES256(t *testing.T) {
	verifier := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	challenge := SHA256Base64URL(verifier)

	assert.True(t, VerifyPKCE(challenge, verifier, "S256"))
	assert.True(t, VerifyPKCE(challenge, verifier, "s256"), "método case-insensitive")
	assert.False(t, VerifyPKCE(challenge, "otro-verifier", "S256"))
	assert.False(t, VerifyPKCE("challenge-trucho", verifier, "S256"))
}

func TestVerifyPKCEPlain(t *testing.T) {
	assert.True(t, VerifyPKCE("abc123", "abc123", "plain"))
	assert.False(t, VerifyPKCE("abc123", "abc124", "plain"))
}

func TestVerifyPKCEEdgeCases(t *testing.T) {
	assert.False(t, VerifyPKCE("", "v", "S256"))
	assert.False(t, VerifyPKCE("c", "", "S256"))
	assert.False(t, VerifyPKCE("c", "v", "S512"), "método desconocido falla cerrado")
}
