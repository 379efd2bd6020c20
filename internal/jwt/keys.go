package jwt

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
)

// GenerateRSA genera un par RSA-2048 para firmar RS256.
func GenerateRSA() (*rsa.PrivateKey, error) {
	return rsa.GenerateKey(rand.Reader, 2048)
}

// EncodePrivatePEM serializa la clave privada en PKCS#8 PEM.
func EncodePrivatePEM(key *rsa.PrivateKey) (string, error) {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return "", err
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})), nil
}

// EncodePublicPEM serializa la clave pública en PKIX PEM.
func EncodePublicPEM(key *rsa.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(key)
	if err != nil {
		return "", err
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})), nil
}

// DecodePrivatePEM parsea una privada PKCS#8 (con fallback PKCS#1).
func DecodePrivatePEM(pemStr string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemStr))
	if block == nil {
		return nil, errors.New("jwt: PEM privado inválido")
	}
	if k, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		if rk, ok := k.(*rsa.PrivateKey); ok {
			return rk, nil
		}
		return nil, errors.New("jwt: la clave privada no es RSA")
	}
	return x509.ParsePKCS1PrivateKey(block.Bytes)
}

// DecodePublicPEM parsea una pública PKIX.
func DecodePublicPEM(pemStr string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemStr))
	if block == nil {
		return nil, errors.New("jwt: PEM público inválido")
	}
	k, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	rk, ok := k.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("jwt: la clave pública no es RSA")
	}
	return rk, nil
}

// DeriveKID calcula el JWK thumbprint (RFC 7638) de la pública: sha256 del
// JSON canónico {"e","kty","n"} en base64url. Es determinístico, así que
// ambos lados derivan el mismo kid sin coordinarse.
func DeriveKID(pub *rsa.PublicKey) (string, error) {
	canon := struct {
		E   string `json:"e"`
		Kty string `json:"kty"`
		N   string `json:"n"`
	}{
		E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		Kty: "RSA",
		N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
	}
	j, err := json.Marshal(canon)
	if err != nil {
		return "", fmt.Errorf("jwt: marshal thumbprint: %w", err)
	}
	sum := sha256.Sum256(j)
	return base64.RawURLEncoding.EncodeToString(sum[:]), nil
}
