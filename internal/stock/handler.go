package stock

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

// Handler manages lot and stock record endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	rbac     rbac.Middleware
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard rbac.Middleware) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(),
		rbac:     guard,
	}
}

// MountRoutes registers stock routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny("stock.view"))
		r.Get("/lots", h.handleListLots)
		r.Get("/lots/{id}", h.handleGetLot)
		r.Get("/records", h.handleListRecords)
		r.Get("/records/{id}", h.handleGetRecord)
		r.Get("/on-hand/{productID}", h.handleOnHand)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll("stock.move"))
		r.Post("/lots", h.handleCreateLot)
		r.Put("/lots/{id}", h.handleUpdateLot)
		r.Post("/lots/{id}/add", h.handleAddLotQuantity)
		r.Post("/lots/{id}/remove", h.handleRemoveLotQuantity)
		r.Post("/records", h.handleCreateRecord)
		r.Post("/movements/add", h.handleAddStock)
		r.Post("/movements/remove", h.handleRemoveStock)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll("warehouse.validate"))
		r.Delete("/lots/{id}", h.handleDeleteLot)
		r.Delete("/records/{id}", h.handleDeleteRecord)
	})
}

type createLotRequest struct {
	OrderID   int64     `json:"order_id" validate:"required,gt=0"`
	Number    string    `json:"number" validate:"required"`
	Quantity  float64   `json:"quantity" validate:"gte=0"`
	ExpiresAt time.Time `json:"expires_at" validate:"required"`
}

type updateLotRequest struct {
	OrderID   int64     `json:"order_id"`
	Number    string    `json:"number"`
	ExpiresAt time.Time `json:"expires_at"`
}

type quantityRequest struct {
	Quantity float64 `json:"quantity" validate:"required,gt=0"`
}

type createRecordRequest struct {
	ProductID int64   `json:"product_id" validate:"required,gt=0"`
	LotID     int64   `json:"lot_id" validate:"required,gt=0"`
	Quantity  float64 `json:"quantity" validate:"gte=0"`
}

type movementRequest struct {
	ProductID int64   `json:"product_id" validate:"required,gt=0"`
	LotID     int64   `json:"lot_id" validate:"required,gt=0"`
	Quantity  float64 `json:"quantity" validate:"required,gt=0"`
}

func (h *Handler) handleListLots(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	orderID, _ := strconv.ParseInt(q.Get("order_id"), 10, 64)
	filters := LotFilters{OrderID: orderID}
	if raw := q.Get("expires_before"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			filters.ExpiresBefore = t
		}
	}
	if raw := q.Get("expires_after"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			filters.ExpiresAfter = t
		}
	}
	pg := shared.NewPagination(page, perPage, 0)
	lots, total, err := h.service.ListLots(r.Context(), pg.PerPage, pg.Offset(), filters)
	if err != nil {
		h.logger.Error("list lots", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.OKPaged(w, lots, shared.NewPagination(page, perPage, total))
}

func (h *Handler) handleGetLot(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	lot, err := h.service.GetLot(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, lot)
}

func (h *Handler) handleCreateLot(w http.ResponseWriter, r *http.Request) {
	var req createLotRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, shared.InvalidArgumentf("%v", err))
		return
	}
	lot, err := h.service.CreateLot(r.Context(), CreateLotInput(req))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.Created(w, lot)
}

func (h *Handler) handleUpdateLot(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req updateLotRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	lot, err := h.service.UpdateLot(r.Context(), id, req.OrderID, UpdateLotInput{
		Number:    req.Number,
		ExpiresAt: req.ExpiresAt,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, lot)
}

func (h *Handler) handleAddLotQuantity(w http.ResponseWriter, r *http.Request) {
	h.handleLotQuantity(w, r, h.service.AddLotQuantity)
}

func (h *Handler) handleRemoveLotQuantity(w http.ResponseWriter, r *http.Request) {
	h.handleLotQuantity(w, r, h.service.RemoveLotQuantity)
}

func (h *Handler) handleLotQuantity(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, lotID int64, qty float64) (Lot, error)) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req quantityRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, shared.InvalidArgumentf("%v", err))
		return
	}
	lot, err := op(r.Context(), id, req.Quantity)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, lot)
}

func (h *Handler) handleDeleteLot(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteLot(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OKMessage(w, "lot deleted")
}

func (h *Handler) handleListRecords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	productID, _ := strconv.ParseInt(q.Get("product_id"), 10, 64)
	lotID, _ := strconv.ParseInt(q.Get("lot_id"), 10, 64)
	records, err := h.service.ListRecords(r.Context(), productID, lotID)
	if err != nil {
		h.logger.Error("list stock records", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, records)
}

func (h *Handler) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	rec, err := h.service.GetRecord(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, rec)
}

func (h *Handler) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	var req createRecordRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, shared.InvalidArgumentf("%v", err))
		return
	}
	rec, err := h.service.CreateRecord(r.Context(), CreateRecordInput(req))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.Created(w, rec)
}

func (h *Handler) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteRecord(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OKMessage(w, "stock record deleted")
}

func (h *Handler) handleAddStock(w http.ResponseWriter, r *http.Request) {
	h.handleMovement(w, r, h.service.AddStock)
}

func (h *Handler) handleRemoveStock(w http.ResponseWriter, r *http.Request) {
	h.handleMovement(w, r, h.service.RemoveStock)
}

func (h *Handler) handleMovement(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, productID, lotID int64, qty float64) (StockRecord, error)) {
	var req movementRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, shared.InvalidArgumentf("%v", err))
		return
	}
	rec, err := op(r.Context(), req.ProductID, req.LotID, req.Quantity)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, rec)
}

func (h *Handler) handleOnHand(w http.ResponseWriter, r *http.Request) {
	productID, err := pathID(r, "productID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	total, err := h.service.OnHand(r.Context(), productID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, map[string]any{"product_id": productID, "on_hand": total})
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, shared.InvalidArgumentf("invalid %s", name)
	}
	return id, nil
}
