package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/driveingest/internal/common"
	"github.com/dmitrijs2005/driveingest/internal/dbx"
	"github.com/dmitrijs2005/driveingest/internal/logging"
	"github.com/dmitrijs2005/driveingest/internal/server/models"
	"github.com/dmitrijs2005/driveingest/internal/server/repositories/accesstokens"
	"github.com/dmitrijs2005/driveingest/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/driveingest/internal/server/repositories/users"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUsers struct {
	users.Repository
	byID    map[string]*models.User
	byToken map[string]*models.User
	err     error
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	if u, ok := f.byID[id]; ok {
		return u, nil
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsers) GetByToken(_ context.Context, token string) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	if u, ok := f.byToken[token]; ok {
		return u, nil
	}
	return nil, common.ErrorNotFound
}

type fakeTokens struct {
	accesstokens.Repository
	owners map[string]string
	err    error
}

func (f *fakeTokens) GetUserID(_ context.Context, token string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if id, ok := f.owners[token]; ok {
		return id, nil
	}
	return "", common.ErrorNotFound
}

type fakeManager struct {
	repomanager.RepositoryManager
	users  *fakeUsers
	tokens *fakeTokens
}

func (m *fakeManager) Users(dbx.DBTX) users.Repository               { return m.users }
func (m *fakeManager) AccessTokens(dbx.DBTX) accesstokens.Repository { return m.tokens }

func newResolver() (*Resolver, *fakeManager) {
	alice := &models.User{ID: "alice", Username: "alice"}
	bob := &models.User{ID: "bob", Username: "bob"}
	m := &fakeManager{
		users: &fakeUsers{
			byID:    map[string]*models.User{"alice": alice, "bob": bob},
			byToken: map[string]*models.User{"native-bob": bob},
		},
		tokens: &fakeTokens{owners: map[string]string{"app-token": "alice", "stale": "ghost"}},
	}
	return NewResolver(nil, m, "secret", logging.Nop()), m
}

func TestAuthenticate_AccessToken(t *testing.T) {
	r, _ := newResolver()

	u, err := r.Authenticate(context.Background(), "app-token")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.ID)
}

func TestAuthenticate_NativeToken(t *testing.T) {
	r, _ := newResolver()

	u, err := r.Authenticate(context.Background(), " native-bob ")
	require.NoError(t, err)
	assert.Equal(t, "bob", u.ID)
}

func TestAuthenticate_JWT(t *testing.T) {
	r, _ := newResolver()
	tok := generateToken(t, jwt.SigningMethodHS256, "bob", []byte("secret"), time.Hour)

	u, err := r.Authenticate(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, "bob", u.ID)
}

func TestAuthenticate_Rejected(t *testing.T) {
	r, _ := newResolver()

	tests := []struct {
		name string
		cred string
	}{
		{"empty", ""},
		{"blank", "   "},
		{"unknown", "nope"},
		{"token of deleted user", "stale"},
		{"jwt with wrong secret", generateToken(t, jwt.SigningMethodHS256, "bob", []byte("other"), time.Hour)},
		{"jwt for unknown user", generateToken(t, jwt.SigningMethodHS256, "ghost", []byte("secret"), time.Hour)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Authenticate(context.Background(), tt.cred)
			assert.ErrorIs(t, err, common.ErrorUnauthorized)
		})
	}
}

func TestAuthenticate_DatastoreFailure(t *testing.T) {
	r, m := newResolver()
	m.tokens.err = errors.New("db error: connection refused")

	_, err := r.Authenticate(context.Background(), "app-token")
	assert.ErrorIs(t, err, common.ErrorInternal)

	m.tokens.err = nil
	m.users.err = errors.New("db error: timeout")
	_, err = r.Authenticate(context.Background(), "whatever")
	assert.ErrorIs(t, err, common.ErrorInternal)
}
