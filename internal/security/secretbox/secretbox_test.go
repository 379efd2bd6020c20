package secretbox

import (
	"crypto/rand"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBox(t *testing.T) *Box {
	t.Helper()
	raw := make([]byte, 32)
	_, err := rand.Read(raw)
	require.NoError(t, err)
	b, err := New(base64.StdEncoding.EncodeToString(raw))
	require.NoError(t, err)
	return b
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	b := newTestBox(t)

	ct, err := b.Encrypt("JBSWY3DPEHPK3PXP")
	require.NoError(t, err)
	assert.Contains(t, ct, "|")

	pt, err := b.Decrypt(ct)
	require.NoError(t, err)
	assert.Equal(t, "JBSWY3DPEHPK3PXP", pt)
}

func TestDecryptWithWrongKeyFails(t *testing.T) {
	a := newTestBox(t)
	b := newTestBox(t)

	ct, err := a.Encrypt("secreto")
	require.NoError(t, err)
	_, err = b.Decrypt(ct)
	assert.Error(t, err)
}

func TestNewRejectsShortKey(t *testing.T) {
	_, err := New(base64.StdEncoding.EncodeToString([]byte("corta")))
	assert.Error(t, err)
}

func TestDecryptRejectsGarbage(t *testing.T) {
	b := newTestBox(t)
	_, err := b.Decrypt("sin-separador")
	assert.Error(t, err)
	_, err = b.Decrypt("bm9uY2U|x")
	assert.Error(t, err)
}
