package users

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/clinistock/clinistock/internal/shared"
)

type memRepo struct {
	byID map[int64]User
	next int64
}

func newMemRepo() *memRepo {
	return &memRepo{byID: map[int64]User{}, next: 1}
}

func (m *memRepo) Create(_ context.Context, user User) (int64, error) {
	for _, u := range m.byID {
		if u.Login == user.Login {
			return 0, shared.Integrityf(nil, "login %q already taken", user.Login)
		}
	}
	user.ID = m.next
	m.next++
	m.byID[user.ID] = user
	return user.ID, nil
}

func (m *memRepo) Get(_ context.Context, id int64) (User, error) {
	u, ok := m.byID[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

func (m *memRepo) List(_ context.Context, _, _ int, _ string) ([]User, int, error) {
	var out []User
	for _, u := range m.byID {
		out = append(out, u)
	}
	return out, len(out), nil
}

func (m *memRepo) Update(_ context.Context, id int64, name string, active bool) error {
	u, ok := m.byID[id]
	if !ok {
		return ErrUserNotFound
	}
	u.Name = name
	u.Active = active
	m.byID[id] = u
	return nil
}

func (m *memRepo) SetPasswordHash(_ context.Context, id int64, hash string) error {
	u, ok := m.byID[id]
	if !ok {
		return ErrUserNotFound
	}
	u.PasswordHash = hash
	m.byID[id] = u
	return nil
}

func (m *memRepo) Delete(_ context.Context, id int64) error {
	delete(m.byID, id)
	return nil
}

func TestCreateHashesPassword(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)
	svc.cost = bcrypt.MinCost

	user, err := svc.Create(context.Background(), CreateInput{
		Login:    "ana",
		Name:     "Ana",
		Password: "longenough",
		Active:   true,
	})
	require.NoError(t, err)
	require.NotEqual(t, "longenough", user.PasswordHash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("longenough")))
}

func TestCreateRejectsShortPassword(t *testing.T) {
	svc := NewService(newMemRepo())

	_, err := svc.Create(context.Background(), CreateInput{Login: "ana", Password: "short"})
	require.ErrorIs(t, err, shared.ErrInvalidArgument)
}

func TestCreateRejectsDuplicateLogin(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)
	svc.cost = bcrypt.MinCost

	_, err := svc.Create(context.Background(), CreateInput{Login: "ana", Password: "longenough"})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), CreateInput{Login: "ana", Password: "longenough"})
	require.ErrorIs(t, err, shared.ErrIntegrity)
}

func TestSetPassword(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)
	svc.cost = bcrypt.MinCost

	user, err := svc.Create(context.Background(), CreateInput{Login: "ana", Password: "longenough"})
	require.NoError(t, err)

	require.ErrorIs(t, svc.SetPassword(context.Background(), user.ID, "tiny"), shared.ErrInvalidArgument)
	require.NoError(t, svc.SetPassword(context.Background(), user.ID, "evenlonger1"))

	stored, err := svc.Get(context.Background(), user.ID)
	require.NoError(t, err)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("evenlonger1")))
}
