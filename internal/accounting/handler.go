package accounting

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/clinistock/clinistock/internal/platform/httpx"
	"github.com/clinistock/clinistock/internal/rbac"
	"github.com/clinistock/clinistock/internal/shared"
)

// Handler manages cash movement endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	rbac     rbac.Middleware
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New(), rbac: guard}
}

// MountRoutes registers accounting routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny("accounting.view"))
		r.Get("/movements", h.handleList)
		r.Get("/movements/summary", h.handleSummary)
		r.Get("/movements/{id}", h.handleGet)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll("accounting.edit"))
		r.Post("/movements", h.handleCreate)
	})
}

type createMovementRequest struct {
	Type        string    `json:"type" validate:"required,oneof=ENTRY EXIT"`
	Amount      float64   `json:"amount" validate:"required,gt=0"`
	Description string    `json:"description" validate:"required"`
	Reference   string    `json:"reference"`
	OccurredAt  time.Time `json:"occurred_at"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	filters := MovementFilters{Type: MovementType(q.Get("type"))}
	if raw := q.Get("from"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			filters.From = t
		}
	}
	if raw := q.Get("to"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			filters.To = t
		}
	}
	pg := shared.NewPagination(page, perPage, 0)
	movements, total, err := h.service.ListMovements(r.Context(), pg.PerPage, pg.Offset(), filters)
	if err != nil {
		h.logger.Error("list movements", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.OKPaged(w, movements, shared.NewPagination(page, perPage, total))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.RespondError(w, shared.InvalidArgumentf("invalid id"))
		return
	}
	m, err := h.service.GetMovement(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, m)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createMovementRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, shared.InvalidArgumentf("%v", err))
		return
	}
	m, err := h.service.CreateMovement(r.Context(), CreateMovementInput{
		Type:        MovementType(req.Type),
		Amount:      req.Amount,
		Description: req.Description,
		Reference:   req.Reference,
		OccurredAt:  req.OccurredAt,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.Created(w, m)
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var from, to time.Time
	if raw := q.Get("from"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			from = t
		}
	}
	if raw := q.Get("to"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			to = t
		}
	}
	summary, err := h.service.SumByRange(r.Context(), from, to)
	if err != nil {
		h.logger.Error("movement summary", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, summary)
}
