package purchasing

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/clinistock/clinistock/internal/rbac"
	"github.com/clinistock/clinistock/internal/shared"
)

type stubAuth struct {
	actors map[string]shared.Actor
}

func (s stubAuth) Verify(_ context.Context, login, password string) (shared.Actor, error) {
	actor, ok := s.actors[login+":"+password]
	if !ok {
		return shared.Actor{}, shared.ErrInvalidCredentials
	}
	return actor, nil
}

func newTestRouter(svc *Service, auth Authenticator) http.Handler {
	h := NewHandler(slog.Default(), svc, auth, rbac.Middleware{Disabled: true})
	r := chi.NewRouter()
	r.Route("/orders", h.MountRoutes)
	return r
}

func deleteOrderRequestFor(id int64, login, password, reason string) *http.Request {
	body := `{"login":"` + login + `","password":"` + password + `","reason":"` + reason + `"}`
	return httptest.NewRequest(http.MethodDelete, "/orders/"+strconv.FormatInt(id, 10), strings.NewReader(body))
}

func TestDeleteOrderRejectsForeignCredentials(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, nil)
	detail := mustCreateOrder(t, svc, 100)

	auth := stubAuth{actors: map[string]shared.Actor{
		"maria:secret": {UserID: 1, Login: "maria"},
		"pedro:secret": {UserID: 2, Login: "pedro"},
	}}
	router := newTestRouter(svc, auth)

	req := deleteOrderRequestFor(detail.ID, "pedro", "secret", "obsolete")
	req = req.WithContext(shared.ContextWithActor(req.Context(), shared.Actor{UserID: 1, Login: "maria"}))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	_, ok := repo.orders[detail.ID]
	require.True(t, ok)
}

func TestDeleteOrderAcceptsOwnCredentials(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, nil)
	detail := mustCreateOrder(t, svc, 100)

	auth := stubAuth{actors: map[string]shared.Actor{
		"maria:secret": {UserID: 1, Login: "maria"},
	}}
	router := newTestRouter(svc, auth)

	req := deleteOrderRequestFor(detail.ID, "maria", "secret", "obsolete")
	req = req.WithContext(shared.ContextWithActor(req.Context(), shared.Actor{UserID: 1, Login: "maria"}))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, repo.orders)
}

func TestDeleteOrderRejectsBadCredentials(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, nil)
	detail := mustCreateOrder(t, svc, 100)

	auth := stubAuth{actors: map[string]shared.Actor{}}
	router := newTestRouter(svc, auth)

	req := deleteOrderRequestFor(detail.ID, "maria", "wrong", "obsolete")
	req = req.WithContext(shared.ContextWithActor(req.Context(), shared.Actor{UserID: 1, Login: "maria"}))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	_, ok := repo.orders[detail.ID]
	require.True(t, ok)
}
