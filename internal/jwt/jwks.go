package jwt

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"errors"
	"math/big"
)

// JWK es la representación pública RFC 7517 de una clave RSA de firma.
type JWK struct {
	Kty string `json:"kty"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// JWKS es el documento que sirve GET /.well-known/jwks.json.
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// JWKS arma el set con la activa y, si existe, la deprecada. Así los clientes
// que cachean el documento siguen validando tokens pre-rotación.
func (k *Keystore) JWKS(ctx context.Context) (*JWKS, error) {
	kid, _, pub, err := k.Active(ctx)
	if err != nil {
		if errors.Is(err, ErrNoActiveKey) {
			return &JWKS{Keys: []JWK{}}, nil
		}
		return nil, err
	}
	set := &JWKS{Keys: []JWK{toJWK(kid, pub)}}

	k.mu.RLock()
	depKID, depPub := k.depKID, k.depPub
	k.mu.RUnlock()
	if depPub != nil {
		set.Keys = append(set.Keys, toJWK(depKID, depPub))
	}
	return set, nil
}

func toJWK(kid string, pub *rsa.PublicKey) JWK {
	return JWK{
		Kty: "RSA",
		Use: "sig",
		Alg: "RS256",
		Kid: kid,
		N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
		E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
	}
}
