package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/clinistock/clinistock/internal/accounting"
	"github.com/clinistock/clinistock/internal/auth"
	"github.com/clinistock/clinistock/internal/masterdata/products"
	"github.com/clinistock/clinistock/internal/masterdata/suppliers"
	"github.com/clinistock/clinistock/internal/observability"
	"github.com/clinistock/clinistock/internal/purchasing"
	"github.com/clinistock/clinistock/internal/rbac"
	"github.com/clinistock/clinistock/internal/stock"
	"github.com/clinistock/clinistock/internal/users"
	"github.com/clinistock/clinistock/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	AuthService       *auth.Service
	AuthHandler       *auth.Handler
	OrdersHandler     *purchasing.Handler
	StockHandler      *stock.Handler
	ProductsHandler   *products.Handler
	SuppliersHandler  *suppliers.Handler
	AccountingHandler *accounting.Handler
	UsersHandler      *users.Handler
	RBACHandler       *rbac.Handler
	JobsHandler       *jobs.Handler
	Metrics           *observability.Metrics
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	var authMW func(http.Handler) http.Handler
	if params.AuthService != nil {
		authMW = params.AuthService.Middleware
	}
	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Auth:    authMW,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		if params.AuthHandler != nil {
			r.Route("/auth", params.AuthHandler.MountRoutes)
		}
		if params.OrdersHandler != nil {
			r.Route("/orders", params.OrdersHandler.MountRoutes)
		}
		if params.StockHandler != nil {
			r.Route("/stock", params.StockHandler.MountRoutes)
		}
		if params.ProductsHandler != nil {
			r.Route("/products", params.ProductsHandler.MountRoutes)
		}
		if params.SuppliersHandler != nil {
			r.Route("/suppliers", params.SuppliersHandler.MountRoutes)
		}
		if params.AccountingHandler != nil {
			r.Route("/accounting", params.AccountingHandler.MountRoutes)
		}
		if params.UsersHandler != nil {
			r.Route("/users", params.UsersHandler.MountRoutes)
		}
		if params.RBACHandler != nil {
			r.Route("/rbac", params.RBACHandler.MountRoutes)
		}
		if params.JobsHandler != nil {
			r.Route("/jobs", params.JobsHandler.MountRoutes)
		}
	})

	return r
}
