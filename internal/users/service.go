package users

import (
	"context"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/clinistock/clinistock/internal/shared"
)

// RepositoryPort is the persistence surface the service depends on.
type RepositoryPort interface {
	Create(ctx context.Context, user User) (int64, error)
	Get(ctx context.Context, id int64) (User, error)
	List(ctx context.Context, limit, offset int, search string) ([]User, int, error)
	Update(ctx context.Context, id int64, name string, active bool) error
	SetPasswordHash(ctx context.Context, id int64, hash string) error
	Delete(ctx context.Context, id int64) error
}

// Service implements user account management.
type Service struct {
	repo RepositoryPort
	cost int
}

// NewService constructs the users service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo, cost: bcrypt.DefaultCost}
}

// CreateInput carries the fields of a new account.
type CreateInput struct {
	Login    string
	Name     string
	Password string
	Active   bool
}

// Create registers an account with a bcrypt hashed password.
func (s *Service) Create(ctx context.Context, in CreateInput) (User, error) {
	in.Login = strings.TrimSpace(in.Login)
	if in.Login == "" {
		return User{}, shared.InvalidArgumentf("login is required")
	}
	if len(in.Password) < 8 {
		return User{}, shared.InvalidArgumentf("password must have at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return User{}, err
	}
	id, err := s.repo.Create(ctx, User{
		Login:        in.Login,
		Name:         strings.TrimSpace(in.Name),
		PasswordHash: string(hash),
		Active:       in.Active,
	})
	if err != nil {
		return User{}, err
	}
	return s.repo.Get(ctx, id)
}

// Get returns one user.
func (s *Service) Get(ctx context.Context, id int64) (User, error) {
	return s.repo.Get(ctx, id)
}

// List returns users and the total matching count.
func (s *Service) List(ctx context.Context, limit, offset int, search string) ([]User, int, error) {
	return s.repo.List(ctx, limit, offset, search)
}

// Update changes name and active flag.
func (s *Service) Update(ctx context.Context, id int64, name string, active bool) (User, error) {
	if err := s.repo.Update(ctx, id, strings.TrimSpace(name), active); err != nil {
		return User{}, err
	}
	return s.repo.Get(ctx, id)
}

// SetPassword replaces the password with a fresh bcrypt hash.
func (s *Service) SetPassword(ctx context.Context, id int64, password string) error {
	if len(password) < 8 {
		return shared.InvalidArgumentf("password must have at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return err
	}
	return s.repo.SetPasswordHash(ctx, id, string(hash))
}

// Delete removes an account.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}
