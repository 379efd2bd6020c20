package authz

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/janus/internal/cache"
	"github.com/dropDatabas3/janus/internal/domain/autherr"
)

func testBody() *CodeBody {
	return &CodeBody{
		AppID:   "app_1",
		AppName: "Demo",
		User:    UserSnapshot{ID: "usr_1", AuthID: "auth_1", Email: "ana@example.com"},
		Request: AuthorizeRequest{
			ClientID:            "cli_abc",
			RedirectURI:         "https://app.example.com/cb",
			ResponseType:        "code",
			Scopes:              []string{"openid", "profile"},
			CodeChallenge:       "challenge",
			CodeChallengeMethod: "S256",
			State:               "xyz",
		},
	}
}

func TestCoordinatorCreateGet(t *testing.T) {
	ctx := context.Background()
	c := NewCoordinator(cache.NewMemory("test"))

	code, err := c.Create(ctx, testBody(), time.Minute)
	require.NoError(t, err)
	assert.Len(t, code, 128)

	got, err := c.Get(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, "usr_1", got.User.ID)
	assert.Equal(t, 1, got.Version)
	assert.False(t, got.IsFullyAuthorized)
}

func TestCoordinatorGetUnknownCode(t *testing.T) {
	c := NewCoordinator(cache.NewMemory("test"))
	_, err := c.Get(context.Background(), "no-existe")
	assert.ErrorIs(t, err, autherr.ErrWrongAuthCode)
}

func TestCoordinatorMutateBumpsVersion(t *testing.T) {
	ctx := context.Background()
	c := NewCoordinator(cache.NewMemory("test"))

	code, err := c.Create(ctx, testBody(), time.Minute)
	require.NoError(t, err)

	body, err := c.Get(ctx, code)
	require.NoError(t, err)
	body.IsFullyAuthorized = true
	require.NoError(t, c.Mutate(ctx, code, body, time.Minute))

	got, err := c.Get(ctx, code)
	require.NoError(t, err)
	assert.True(t, got.IsFullyAuthorized)
	assert.Equal(t, 2, got.Version)
}

// Dos requests leen la misma versión; el segundo Mutate tiene que perder.
func TestCoordinatorMutateDetectsRace(t *testing.T) {
	ctx := context.Background()
	c := NewCoordinator(cache.NewMemory("test"))

	code, err := c.Create(ctx, testBody(), time.Minute)
	require.NoError(t, err)

	first, err := c.Get(ctx, code)
	require.NoError(t, err)
	second, err := c.Get(ctx, code)
	require.NoError(t, err)

	first.PasskeyDeclined = true
	require.NoError(t, c.Mutate(ctx, code, first, time.Minute))

	second.IsFullyAuthorized = true
	err = c.Mutate(ctx, code, second, time.Minute)
	assert.ErrorIs(t, err, autherr.ErrStaleCode)

	// el update del ganador quedó intacto
	got, err := c.Get(ctx, code)
	require.NoError(t, err)
	assert.True(t, got.PasskeyDeclined)
	assert.False(t, got.IsFullyAuthorized)
}

func TestCoordinatorInvalidateClosesReplay(t *testing.T) {
	ctx := context.Background()
	c := NewCoordinator(cache.NewMemory("test"))

	code, err := c.Create(ctx, testBody(), time.Minute)
	require.NoError(t, err)

	require.NoError(t, c.Invalidate(ctx, code))
	_, err = c.Get(ctx, code)
	assert.ErrorIs(t, err, autherr.ErrWrongAuthCode)

	// idempotente
	require.NoError(t, c.Invalidate(ctx, code))
}
