package purchasing

import (
	"context"
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

// Authenticator re-verifies credentials for destructive operations. The
// deletion endpoint demands a fresh login/password pair regardless of the
// bearer token on the request.
type Authenticator interface {
	Verify(ctx context.Context, login, password string) (shared.Actor, error)
}

// Handler manages purchase order endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	auth     Authenticator
	validate *validator.Validate
	rbac     rbac.Middleware
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, auth Authenticator, guard rbac.Middleware) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		auth:     auth,
		validate: validator.New(),
		rbac:     guard,
	}
}

// MountRoutes registers purchasing routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny("purchasing.view"))
		r.Get("/", h.handleList)
		r.Get("/summary", h.handleSummary)
		r.Get("/{id}", h.handleGet)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll("purchasing.edit"))
		r.Post("/", h.handleCreate)
		r.Put("/{id}", h.handleUpdate)
		r.Post("/{id}/status", h.handleAdvanceStatus)
		r.Post("/{id}/items", h.handleAddItem)
		r.Put("/items/{itemID}", h.handleUpdateItem)
		r.Delete("/items/{itemID}", h.handleDeleteItem)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll("purchasing.edit", "warehouse.validate"))
		r.Delete("/{id}", h.handleDelete)
	})
}

type lineRequest struct {
	ProductID int64   `json:"product_id" validate:"required,gt=0"`
	Qty       float64 `json:"qty" validate:"required,gt=0"`
	UnitPrice float64 `json:"unit_price" validate:"required,gt=0"`
}

type createOrderRequest struct {
	SupplierID int64         `json:"supplier_id" validate:"required,gt=0"`
	Value      float64       `json:"value" validate:"gte=0"`
	PlacedAt   time.Time     `json:"placed_at"`
	ExpectedAt time.Time     `json:"expected_at" validate:"required"`
	Note       string        `json:"note"`
	Items      []lineRequest `json:"items" validate:"dive"`
}

type updateOrderRequest struct {
	SupplierID int64     `json:"supplier_id"`
	Value      *float64  `json:"value"`
	PlacedAt   time.Time `json:"placed_at"`
	ExpectedAt time.Time `json:"expected_at"`
	Note       *string   `json:"note"`
}

type advanceStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type updateItemRequest struct {
	OrderID   int64   `json:"order_id"`
	ProductID int64   `json:"product_id"`
	Qty       float64 `json:"qty" validate:"required,gt=0"`
	UnitPrice float64 `json:"unit_price" validate:"required,gt=0"`
}

type deleteOrderRequest struct {
	Login    string `json:"login" validate:"required"`
	Password string `json:"password" validate:"required"`
	Reason   string `json:"reason" validate:"required"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	supplierID, _ := strconv.ParseInt(q.Get("supplier_id"), 10, 64)
	filters := ListFilters{
		Status:     q.Get("status"),
		SupplierID: supplierID,
		Search:     q.Get("search"),
		SortBy:     q.Get("sort"),
		SortDir:    q.Get("dir"),
	}
	if raw := q.Get("placed_from"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			filters.PlacedFrom = t
		}
	}
	if raw := q.Get("placed_to"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			filters.PlacedTo = t
		}
	}
	pg := shared.NewPagination(page, perPage, 0)
	items, total, err := h.service.ListOrders(r.Context(), pg.PerPage, pg.Offset(), filters)
	if err != nil {
		h.logger.Error("list orders", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.OKPaged(w, items, shared.NewPagination(page, perPage, total))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	detail, err := h.service.GetOrder(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, detail)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, shared.InvalidArgumentf("%v", err))
		return
	}
	in := CreateOrderInput{
		SupplierID: req.SupplierID,
		Value:      req.Value,
		PlacedAt:   req.PlacedAt,
		ExpectedAt: req.ExpectedAt,
		Note:       req.Note,
	}
	for _, line := range req.Items {
		in.Lines = append(in.Lines, LineInput(line))
	}
	detail, err := h.service.CreateOrder(r.Context(), in)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.Created(w, detail)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req updateOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	order, err := h.service.UpdateOrder(r.Context(), id, UpdateOrderInput{
		SupplierID: req.SupplierID,
		Value:      req.Value,
		PlacedAt:   req.PlacedAt,
		ExpectedAt: req.ExpectedAt,
		Note:       req.Note,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, order)
}

func (h *Handler) handleAdvanceStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req advanceStatusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, shared.InvalidArgumentf("%v", err))
		return
	}
	order, err := h.service.AdvanceStatus(r.Context(), id, OrderStatus(req.Status))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, order)
}

func (h *Handler) handleAddItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req lineRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, shared.InvalidArgumentf("%v", err))
		return
	}
	item, err := h.service.AddLineItem(r.Context(), id, LineInput(req))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.Created(w, item)
}

func (h *Handler) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := pathID(r, "itemID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req updateItemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, shared.InvalidArgumentf("%v", err))
		return
	}
	item, err := h.service.UpdateLineItem(r.Context(), itemID, req.OrderID, req.ProductID, req.Qty, req.UnitPrice)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, item)
}

func (h *Handler) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := pathID(r, "itemID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteLineItem(r.Context(), itemID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OKMessage(w, "line item deleted")
}

// handleDelete runs the cascading deletion. The caller must re-authenticate
// in the request body and give a reason, which ends up in the audit trail.
func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req deleteOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, shared.InvalidArgumentf("%v", err))
		return
	}
	actor, err := h.auth.Verify(r.Context(), req.Login, req.Password)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	// The re-authenticated credentials must belong to the caller holding the
	// bearer token; someone else's valid login does not count.
	if bearer, ok := shared.ActorFromContext(r.Context()); ok && bearer.UserID != actor.UserID {
		httpx.RespondError(w, shared.ErrForbidden)
		return
	}
	ctx := shared.ContextWithActor(r.Context(), actor)
	result, err := h.service.DeleteWithAudit(ctx, id, req.Reason)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, result)
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
	summary, err := h.service.Summary(r.Context(), from, to)
	if err != nil {
		h.logger.Error("order summary", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, summary)
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, shared.InvalidArgumentf("invalid %s", name)
	}
	return id, nil
}
