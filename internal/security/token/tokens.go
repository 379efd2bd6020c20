package tokens

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"strings"
)

// GenerateOpaqueToken genera un token opaco aleatorio (base64url sin padding).
func GenerateOpaqueToken(nBytes int) (string, error) {
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

const codeAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateAuthCode genera el authorization code opaco de 128 caracteres.
// Con ese largo la probabilidad de colisión se trata como despreciable:
// no hay retry de colisión.
func GenerateAuthCode() (string, error) {
	return randomString(128)
}

// GenerateVerificationCode genera el código de 6 caracteres para MFA por SMS/email.
func GenerateVerificationCode() (string, error) {
	return randomString(6)
}

func randomString(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	out := make([]byte, n)
	for i, v := range b {
		out[i] = codeAlphabet[int(v)%len(codeAlphabet)]
	}
	return string(out), nil
}

// SHA256Base64URL devuelve sha256(input) en base64url sin padding.
func SHA256Base64URL(s string) string {
	sum := sha256.Sum256([]byte(s))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// VerifyPKCE recomputa el challenge desde el verifier con el método guardado
// y lo compara contra el challenge del authorize original.
// Métodos: "S256" (base64url(sha256(verifier))) y "plain" (igualdad directa).
func VerifyPKCE(challenge, verifier, method string) bool {
	if challenge == "" || verifier == "" {
		return false
	}
	var computed string
	switch strings.ToUpper(strings.TrimSpace(method)) {
	case "S256":
		computed = SHA256Base64URL(verifier)
	case "PLAIN", "":
		computed = verifier
	default:
		return false
	}
	return subtle.ConstantTimeCompare([]byte(computed), []byte(challenge)) == 1
}
