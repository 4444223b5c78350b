package auth

import (
	"context"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/clinistock/clinistock/internal/shared"
)

// Service wraps authentication business rules.
type Service struct {
	repo   Repository
	tokens *TokenStore
}

// NewService constructs a new Service.
func NewService(repo Repository, tokens *TokenStore) *Service {
	return &Service{repo: repo, tokens: tokens}
}

// Authenticate validates login/password credentials. Any failure collapses
// into the same invalid-credentials error so callers learn nothing about
// which part was wrong.
func (s *Service) Authenticate(ctx context.Context, login, password string) (*User, error) {
	user, err := s.repo.FindByLogin(ctx, login)
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !user.Active {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}

// Verify re-checks credentials and returns the actor. Destructive endpoints
// call this regardless of the bearer token on the request.
func (s *Service) Verify(ctx context.Context, login, password string) (shared.Actor, error) {
	user, err := s.Authenticate(ctx, login, password)
	if err != nil {
		return shared.Actor{}, err
	}
	return shared.Actor{UserID: user.ID, Login: user.Login}, nil
}

// Login authenticates and issues a bearer token.
func (s *Service) Login(ctx context.Context, login, password string) (string, *User, error) {
	user, err := s.Authenticate(ctx, login, password)
	if err != nil {
		return "", nil, err
	}
	token, err := s.tokens.Issue(ctx, shared.Actor{UserID: user.ID, Login: user.Login})
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// Logout revokes the given token.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return shared.InvalidArgumentf("token required")
	}
	return s.tokens.Revoke(ctx, token)
}

// Middleware resolves the bearer token and attaches the actor to the
// request context. Requests without a token pass through unauthenticated;
// the permission checks downstream reject them where it matters.
func (s *Service) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}
		actor, err := s.tokens.Resolve(r.Context(), token)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithActor(r.Context(), actor)))
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
