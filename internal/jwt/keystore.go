package jwt

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/dropDatabas3/janus/internal/cache"
)

// Claves del state store para el material de firma. Sin TTL: el material vive
// hasta que rotación/cleanup lo reemplace.
const (
	keyActivePair       = "signing:active"
	keyDeprecatedPublic = "signing:deprecated:public"
)

// keypairRecord guarda las dos mitades del par activo en un solo valor: un
// único write las publica juntas, nunca puede quedar una privada sin su
// pública en el store.
type keypairRecord struct {
	PrivatePEM string `json:"private_pem"`
	PublicPEM  string `json:"public_pem"`
}

var (
	ErrNoActiveKey = errors.New("jwt: no_active_signing_key")
	ErrKidNotFound = errors.New("jwt: kid_not_found")
)

// Keystore guarda el par RSA activo (y la pública deprecada) en el state
// store, con un cache local corto para no pegarle al backend en cada firma.
type Keystore struct {
	store cache.Client

	mu         sync.RWMutex
	activeKID  string
	activePriv *rsa.PrivateKey
	activePub  *rsa.PublicKey
	depKID     string
	depPub     *rsa.PublicKey
	cacheUntil time.Time
	cacheTTL   time.Duration
}

// NewKeystore crea un keystore sobre el state store.
func NewKeystore(store cache.Client) *Keystore {
	return &Keystore{store: store, cacheTTL: 30 * time.Second}
}

// EnsureBootstrap genera un par activo si todavía no hay ninguno.
// Usa SetNX sobre el registro completo para que dos instancias arrancando a
// la vez no se pisen y para que el par aparezca entero o no aparezca.
func (k *Keystore) EnsureBootstrap(ctx context.Context) error {
	if ok, err := k.store.Exists(ctx, keyActivePair); err != nil {
		return err
	} else if ok {
		return nil
	}
	raw, err := newKeypairRecord()
	if err != nil {
		return err
	}
	// si otra instancia ganó el bootstrap, el SetNX fallido también es éxito
	_, err = k.store.SetNX(ctx, keyActivePair, raw, 0)
	return err
}

func newKeypairRecord() ([]byte, error) {
	priv, err := GenerateRSA()
	if err != nil {
		return nil, err
	}
	privPEM, err := EncodePrivatePEM(priv)
	if err != nil {
		return nil, err
	}
	pubPEM, err := EncodePublicPEM(&priv.PublicKey)
	if err != nil {
		return nil, err
	}
	return json.Marshal(keypairRecord{PrivatePEM: privPEM, PublicPEM: pubPEM})
}

// Active devuelve (kid, privada, pública) del par activo, cacheado.
func (k *Keystore) Active(ctx context.Context) (string, *rsa.PrivateKey, *rsa.PublicKey, error) {
	k.mu.RLock()
	if time.Now().Before(k.cacheUntil) && k.activePriv != nil {
		defer k.mu.RUnlock()
		return k.activeKID, k.activePriv, k.activePub, nil
	}
	k.mu.RUnlock()

	k.mu.Lock()
	defer k.mu.Unlock()
	if time.Now().Before(k.cacheUntil) && k.activePriv != nil {
		return k.activeKID, k.activePriv, k.activePub, nil
	}
	if err := k.reloadLocked(ctx); err != nil {
		return "", nil, nil, err
	}
	return k.activeKID, k.activePriv, k.activePub, nil
}

// PublicKeyByKID resuelve una pública por kid: primero la activa, después la
// deprecada. Es el orden que exige la verificación con rotación en vuelo.
func (k *Keystore) PublicKeyByKID(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	activeKID, _, activePub, err := k.Active(ctx)
	if err != nil && !errors.Is(err, ErrNoActiveKey) {
		return nil, err
	}
	if err == nil && kid == activeKID {
		return activePub, nil
	}

	k.mu.RLock()
	depKID, depPub := k.depKID, k.depPub
	k.mu.RUnlock()
	if depPub != nil && kid == depKID {
		return depPub, nil
	}
	return nil, ErrKidNotFound
}

// Rotate genera un par nuevo y demota la pública activa a deprecada.
// Idempotente a nivel operativo: correrla dos veces seguidas solo produce una
// generación extra; los tokens firmados con la clave demotada siguen
// verificando hasta CleanDeprecated.
func (k *Keystore) Rotate(ctx context.Context) error {
	var oldPub string
	if raw, err := k.store.Get(ctx, keyActivePair); err == nil {
		var rec keypairRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return err
		}
		oldPub = rec.PublicPEM
	} else if !cache.IsNotFound(err) {
		return err
	}

	next, err := newKeypairRecord()
	if err != nil {
		return err
	}
	if oldPub != "" {
		if err := k.store.Set(ctx, keyDeprecatedPublic, []byte(oldPub), 0); err != nil {
			return err
		}
	}
	if err := k.store.Set(ctx, keyActivePair, next, 0); err != nil {
		return err
	}
	k.invalidate()
	return nil
}

// CleanDeprecated elimina la pública deprecada. Después de esto, los tokens
// firmados bajo esa clave dejan de verificar. Idempotente.
func (k *Keystore) CleanDeprecated(ctx context.Context) error {
	if err := k.store.Delete(ctx, keyDeprecatedPublic); err != nil {
		return err
	}
	k.invalidate()
	return nil
}

func (k *Keystore) invalidate() {
	k.mu.Lock()
	k.cacheUntil = time.Time{}
	k.activePriv = nil
	k.depPub = nil
	k.mu.Unlock()
}

// reloadLocked lee el material desde el store. Llamar con k.mu tomado.
func (k *Keystore) reloadLocked(ctx context.Context) error {
	raw, err := k.store.Get(ctx, keyActivePair)
	if err != nil {
		if cache.IsNotFound(err) {
			return ErrNoActiveKey
		}
		return err
	}
	var rec keypairRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return err
	}
	priv, err := DecodePrivatePEM(rec.PrivatePEM)
	if err != nil {
		return err
	}
	pub, err := DecodePublicPEM(rec.PublicPEM)
	if err != nil {
		return err
	}
	kid, err := DeriveKID(pub)
	if err != nil {
		return err
	}
	k.activeKID = kid
	k.activePriv = priv
	k.activePub = pub

	k.depKID, k.depPub = "", nil
	if depPEM, err := k.store.Get(ctx, keyDeprecatedPublic); err == nil {
		if depPub, err := DecodePublicPEM(string(depPEM)); err == nil {
			if depKID, err := DeriveKID(depPub); err == nil {
				k.depKID, k.depPub = depKID, depPub
			}
		}
	}

	k.cacheUntil = time.Now().Add(k.cacheTTL)
	return nil
}
