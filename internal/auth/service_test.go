package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/clinistock/clinistock/internal/shared"
	_ "github.com/clinistock/clinistock/internal/testing/guard"
)

type memUsers struct {
	byLogin map[string]*User
}

func (m *memUsers) FindByLogin(_ context.Context, login string) (*User, error) {
	user, ok := m.byLogin[login]
	if !ok {
		return nil, shared.NotFoundf("user")
	}
	return user, nil
}

func (m *memUsers) FindByID(_ context.Context, id int64) (*User, error) {
	for _, user := range m.byLogin {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, shared.NotFoundf("user")
}

func newTestService(t *testing.T) (*Service, *memUsers) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	users := &memUsers{byLogin: map[string]*User{
		"maria": {ID: 1, Login: "maria", Name: "Maria", PasswordHash: string(hash), Active: true},
		"gone":  {ID: 2, Login: "gone", PasswordHash: string(hash), Active: false},
	}}
	return NewService(users, NewTokenStore(client, time.Hour)), users
}

func TestAuthenticate(t *testing.T) {
	svc, _ := newTestService(t)

	user, err := svc.Authenticate(context.Background(), "maria", "s3cret")
	require.NoError(t, err)
	require.Equal(t, int64(1), user.ID)

	_, err = svc.Authenticate(context.Background(), "maria", "wrong")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)

	_, err = svc.Authenticate(context.Background(), "nobody", "s3cret")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)

	_, err = svc.Authenticate(context.Background(), "gone", "s3cret")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestLoginIssuesResolvableToken(t *testing.T) {
	svc, _ := newTestService(t)

	token, user, err := svc.Login(context.Background(), "maria", "s3cret")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.Equal(t, "maria", user.Login)

	actor, err := svc.tokens.Resolve(context.Background(), token)
	require.NoError(t, err)
	require.Equal(t, int64(1), actor.UserID)
	require.Equal(t, "maria", actor.Login)
}

func TestLogoutRevokesToken(t *testing.T) {
	svc, _ := newTestService(t)

	token, _, err := svc.Login(context.Background(), "maria", "s3cret")
	require.NoError(t, err)
	require.NoError(t, svc.Logout(context.Background(), token))

	_, err = svc.tokens.Resolve(context.Background(), token)
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestVerifyReturnsActor(t *testing.T) {
	svc, _ := newTestService(t)

	actor, err := svc.Verify(context.Background(), "maria", "s3cret")
	require.NoError(t, err)
	require.Equal(t, shared.Actor{UserID: 1, Login: "maria"}, actor)
}
