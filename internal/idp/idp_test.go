package idp

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/janus/internal/domain/autherr"
	"github.com/dropDatabas3/janus/internal/domain/repository"
)

type fakeUserRepo struct {
	repository.UserRepository

	bySocial map[string]*repository.User
	byEmail  map[string]*repository.User
	created  []repository.CreateUserInput
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		bySocial: map[string]*repository.User{},
		byEmail:  map[string]*repository.User{},
	}
}

func (f *fakeUserRepo) GetBySocialAccount(ctx context.Context, provider, accountID string) (*repository.User, error) {
	if u, ok := f.bySocial[provider+"/"+accountID]; ok {
		return u, nil
	}
	return nil, repository.ErrNotFound
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*repository.User, error) {
	if u, ok := f.byEmail[email]; ok {
		return u, nil
	}
	return nil, repository.ErrNotFound
}

func (f *fakeUserRepo) Create(ctx context.Context, in repository.CreateUserInput) (*repository.User, error) {
	f.created = append(f.created, in)
	return &repository.User{
		ID:              "usr_new",
		AuthID:          "auth_new",
		Email:           in.Email,
		EmailVerified:   in.EmailVerified,
		FirstName:       in.FirstName,
		LastName:        in.LastName,
		SocialProvider:  in.SocialProvider,
		SocialAccountID: in.SocialAccountID,
	}, nil
}

func TestFindOrCreateUserCreatesOnFirstLogin(t *testing.T) {
	repo := newFakeUserRepo()
	ident := &Identity{Provider: "google", Subject: "g-123", Email: "ana@example.com", EmailVerified: true, FirstName: "Ana"}

	u, err := FindOrCreateUser(context.Background(), repo, ident)
	require.NoError(t, err)
	assert.Equal(t, "google", u.SocialProvider)
	assert.Equal(t, "g-123", u.SocialAccountID)
	require.Len(t, repo.created, 1)
	assert.True(t, repo.created[0].EmailVerified)
}

func TestFindOrCreateUserReturnsExisting(t *testing.T) {
	repo := newFakeUserRepo()
	existing := &repository.User{ID: "usr_1", SocialProvider: "github", SocialAccountID: "77"}
	repo.bySocial["github/77"] = existing

	u, err := FindOrCreateUser(context.Background(), repo, &Identity{Provider: "github", Subject: "77"})
	require.NoError(t, err)
	assert.Same(t, existing, u)
	assert.Empty(t, repo.created)
}

func TestFindOrCreateUserRejectsDisabled(t *testing.T) {
	repo := newFakeUserRepo()
	now := time.Now()
	repo.bySocial["github/77"] = &repository.User{ID: "usr_1", DisabledAt: &now}

	_, err := FindOrCreateUser(context.Background(), repo, &Identity{Provider: "github", Subject: "77"})
	assert.ErrorIs(t, err, autherr.ErrUserDisabled)
}

func TestFindOrCreateUserRejectsEmailCollision(t *testing.T) {
	repo := newFakeUserRepo()
	repo.byEmail["ana@example.com"] = &repository.User{ID: "usr_pwd"}

	_, err := FindOrCreateUser(context.Background(), repo, &Identity{Provider: "google", Subject: "g-9", Email: "ana@example.com"})
	assert.ErrorIs(t, err, autherr.ErrSocialNotSupported)
}

func TestRegistryResolvesByName(t *testing.T) {
	gh := NewGitHub("id", "secret", "https://auth.example.com/cb")
	r := NewRegistry(gh)

	p, err := r.Get("github")
	require.NoError(t, err)
	assert.Equal(t, "github", p.Name())

	_, err = r.Get("myspace")
	assert.Equal(t, autherr.KindFeatureNotEnabled, autherr.KindOf(err))
}

func TestSplitName(t *testing.T) {
	first, last := splitName("Ana María García")
	assert.Equal(t, "Ana", first)
	assert.Equal(t, "María García", last)

	first, last = splitName("")
	assert.Empty(t, first)
	assert.Empty(t, last)
}
