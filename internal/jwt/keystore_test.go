package jwt

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/janus/internal/cache"
)

func newTestKeystore(t *testing.T) *Keystore {
	t.Helper()
	ks := NewKeystore(cache.NewMemory("test"))
	// sin cache local para que cada aserción vea el estado real del store
	ks.cacheTTL = 0
	require.NoError(t, ks.EnsureBootstrap(context.Background()))
	return ks
}

func TestEnsureBootstrapIsIdempotent(t *testing.T) {
	ctx := context.Background()
	ks := newTestKeystore(t)

	kid1, _, _, err := ks.Active(ctx)
	require.NoError(t, err)

	require.NoError(t, ks.EnsureBootstrap(ctx))
	kid2, _, _, err := ks.Active(ctx)
	require.NoError(t, err)
	assert.Equal(t, kid1, kid2, "re-bootstrap no debe regenerar la clave")
}

// Dos instancias arrancando contra el mismo store terminan con el mismo par:
// el bootstrap publica privada y pública en un solo write, así que el que
// pierde el SetNX ve el par completo del ganador, nunca una mitad suelta.
func TestBootstrapRaceLeavesOneCompletePair(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemory("test")

	a := NewKeystore(store)
	a.cacheTTL = 0
	b := NewKeystore(store)
	b.cacheTTL = 0

	require.NoError(t, a.EnsureBootstrap(ctx))
	require.NoError(t, b.EnsureBootstrap(ctx))

	kidA, _, pubA, err := a.Active(ctx)
	require.NoError(t, err)
	kidB, _, pubB, err := b.Active(ctx)
	require.NoError(t, err)
	assert.Equal(t, kidA, kidB)
	assert.True(t, pubA.Equal(pubB))

	// el par entero vive bajo una sola clave: borrarla no deja mitades
	require.NoError(t, store.Delete(ctx, keyActivePair))
	_, _, _, err = a.Active(ctx)
	assert.ErrorIs(t, err, ErrNoActiveKey)
}

func TestActiveWithoutBootstrapFails(t *testing.T) {
	ks := NewKeystore(cache.NewMemory("test"))
	ks.cacheTTL = 0
	_, _, _, err := ks.Active(context.Background())
	assert.ErrorIs(t, err, ErrNoActiveKey)
}

func TestRotateDemotesActiveToDeprecated(t *testing.T) {
	ctx := context.Background()
	ks := newTestKeystore(t)

	oldKID, _, oldPub, err := ks.Active(ctx)
	require.NoError(t, err)

	require.NoError(t, ks.Rotate(ctx))

	newKID, _, _, err := ks.Active(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, oldKID, newKID)

	// la pública vieja sigue resolviendo por kid
	gotPub, err := ks.PublicKeyByKID(ctx, oldKID)
	require.NoError(t, err)
	assert.True(t, oldPub.Equal(gotPub))
}

func TestCleanDeprecatedDropsOldKey(t *testing.T) {
	ctx := context.Background()
	ks := newTestKeystore(t)

	oldKID, _, _, err := ks.Active(ctx)
	require.NoError(t, err)
	require.NoError(t, ks.Rotate(ctx))
	require.NoError(t, ks.CleanDeprecated(ctx))

	_, err = ks.PublicKeyByKID(ctx, oldKID)
	assert.ErrorIs(t, err, ErrKidNotFound)

	// idempotente
	require.NoError(t, ks.CleanDeprecated(ctx))
}

func TestJWKSIncludesDeprecatedUntilCleaned(t *testing.T) {
	ctx := context.Background()
	ks := newTestKeystore(t)

	set, err := ks.JWKS(ctx)
	require.NoError(t, err)
	require.Len(t, set.Keys, 1)
	assert.Equal(t, "RS256", set.Keys[0].Alg)

	require.NoError(t, ks.Rotate(ctx))
	set, err = ks.JWKS(ctx)
	require.NoError(t, err)
	assert.Len(t, set.Keys, 2)

	require.NoError(t, ks.CleanDeprecated(ctx))
	set, err = ks.JWKS(ctx)
	require.NoError(t, err)
	assert.Len(t, set.Keys, 1)
}

func TestDeriveKIDIsDeterministic(t *testing.T) {
	priv, err := GenerateRSA()
	require.NoError(t, err)

	kid1, err := DeriveKID(&priv.PublicKey)
	require.NoError(t, err)
	kid2, err := DeriveKID(&priv.PublicKey)
	require.NoError(t, err)
	assert.Equal(t, kid1, kid2)

	other, err := GenerateRSA()
	require.NoError(t, err)
	kidOther, err := DeriveKID(&other.PublicKey)
	require.NoError(t, err)
	assert.NotEqual(t, kid1, kidOther)
}

func TestPEMRoundTrip(t *testing.T) {
	priv, err := GenerateRSA()
	require.NoError(t, err)

	privPEM, err := EncodePrivatePEM(priv)
	require.NoError(t, err)
	pubPEM, err := EncodePublicPEM(&priv.PublicKey)
	require.NoError(t, err)

	gotPriv, err := DecodePrivatePEM(privPEM)
	require.NoError(t, err)
	assert.True(t, priv.Equal(gotPriv))

	gotPub, err := DecodePublicPEM(pubPEM)
	require.NoError(t, err)
	assert.True(t, priv.PublicKey.Equal(gotPub))
}

func TestLocalCacheRefreshesAfterTTL(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemory("test")
	ks := NewKeystore(store)
	ks.cacheTTL = 10 * time.Millisecond
	require.NoError(t, ks.EnsureBootstrap(ctx))

	kid1, _, _, err := ks.Active(ctx)
	require.NoError(t, err)

	// rotamos por fuera del wrapper local (otra instancia)
	other := NewKeystore(store)
	require.NoError(t, other.Rotate(ctx))

	time.Sleep(20 * time.Millisecond)
	kid2, _, _, err := ks.Active(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, kid1, kid2)
}
