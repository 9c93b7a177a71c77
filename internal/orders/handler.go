package orders

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/wareflow/wareflow/internal/inventory"
	"github.com/wareflow/wareflow/internal/platform/httpx"
	"github.com/wareflow/wareflow/internal/rbac"
	"github.com/wareflow/wareflow/internal/shared"
)

// Handler manages order endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	rbac     rbac.Middleware
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac, validate: validator.New()}
}

// MountRoutes registers order routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny("orders.view", "orders.edit"))
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll("orders.edit"))
		r.Post("/", h.create)
		r.Put("/{id}", h.edit)
		r.Post("/{id}/cancel", h.cancel)
		r.Delete("/{id}", h.remove)
	})
}

type createOrderRequest struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	VendorID  int64 `json:"vendor_id" validate:"required,gt=0"`
	Quantity  int64 `json:"quantity" validate:"required,gt=0"`
}

type editOrderRequest struct {
	ProductID int64  `json:"product_id" validate:"required,gt=0"`
	VendorID  int64  `json:"vendor_id" validate:"required,gt=0"`
	Quantity  int64  `json:"quantity" validate:"required,gt=0"`
	Status    string `json:"status"`
}

type orderResponse struct {
	ID             int64  `json:"id"`
	UserID         int64  `json:"user_id"`
	ProductID      int64  `json:"product_id"`
	VendorID       int64  `json:"vendor_id,omitempty"`
	Quantity       int64  `json:"quantity"`
	OrderDate      string `json:"order_date"`
	Status         string `json:"status"`
	ApprovalStatus string `json:"approval_status"`
	LastUpdated    string `json:"last_updated"`
}

func toOrderResponse(o Order) orderResponse {
	return orderResponse{
		ID:             o.ID,
		UserID:         o.UserID,
		ProductID:      o.ProductID,
		VendorID:       o.VendorID,
		Quantity:       o.Quantity,
		OrderDate:      o.OrderDate.Format("2006-01-02T15:04:05Z07:00"),
		Status:         string(o.Status),
		ApprovalStatus: string(o.ApprovalStatus),
		LastUpdated:    o.LastUpdated.Format("2006-01-02T15:04:05Z07:00"),
	}
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	order, err := h.service.Create(r.Context(), CreateInput{
		UserID:         shared.UserIDFromContext(r.Context()),
		ProductID:      req.ProductID,
		VendorID:       req.VendorID,
		Quantity:       req.Quantity,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		h.respondErr(w, r, "create order", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toOrderResponse(order))
}

func (h *Handler) edit(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	var req editOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	order, err := h.service.Edit(r.Context(), id, EditInput{
		ProductID: req.ProductID,
		VendorID:  req.VendorID,
		Quantity:  req.Quantity,
		Status:    Status(req.Status),
		ActorID:   shared.UserIDFromContext(r.Context()),
	})
	if err != nil {
		h.respondErr(w, r, "edit order", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	order, err := h.service.Cancel(r.Context(), id, shared.UserIDFromContext(r.Context()))
	if err != nil {
		h.respondErr(w, r, "cancel order", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err := h.service.Delete(r.Context(), id, shared.UserIDFromContext(r.Context())); err != nil {
		h.respondErr(w, r, "delete order", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	order, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondErr(w, r, "get order", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{Status: Status(q.Get("status"))}
	filter.ID, _ = strconv.ParseInt(q.Get("id"), 10, 64)
	filter.ProductID, _ = strconv.ParseInt(q.Get("product_id"), 10, 64)
	filter.VendorID, _ = strconv.ParseInt(q.Get("vendor_id"), 10, 64)
	filter.Quantity, _ = strconv.ParseInt(q.Get("quantity"), 10, 64)
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))
	filter.Offset, _ = strconv.Atoi(q.Get("offset"))
	if raw := q.Get("cancelled"); raw != "" {
		cancelled := raw == "true" || raw == "1"
		filter.Cancelled = &cancelled
	}
	orders, totals, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.respondErr(w, r, "list orders", err)
		return
	}
	out := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderResponse(o))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"orders": out,
		"summary": map[string]int64{
			"total_quantity":     totals.TotalQuantity,
			"active_quantity":    totals.ActiveQuantity,
			"cancelled_quantity": totals.CancelledQuantity,
		},
	})
}

func (h *Handler) respondErr(w http.ResponseWriter, r *http.Request, op string, err error) {
	var insufficient *inventory.InsufficientStockError
	var transition *shared.InvalidTransitionError
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrInvalidStatus):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.As(err, &insufficient):
		httpx.ProblemWithExtra(w, http.StatusConflict, "Insufficient Stock", insufficient.Error(), map[string]int64{
			"available": insufficient.Available,
			"requested": insufficient.Requested,
		})
	case errors.As(err, &transition):
		httpx.ProblemWithExtra(w, http.StatusUnprocessableEntity, "Invalid Transition", transition.Error(), map[string]string{
			"from": transition.From,
			"to":   transition.To,
		})
	case errors.Is(err, shared.ErrIdempotencyConflict):
		httpx.Problem(w, http.StatusConflict, "Duplicate Request", err.Error())
	case errors.Is(err, shared.ErrConcurrencyConflict), errors.Is(err, inventory.ErrConcurrencyConflict):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", shared.UserSafeMessage(err))
	}
}
