package purchasing

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/wareflow/wareflow/internal/platform/httpx"
	"github.com/wareflow/wareflow/internal/rbac"
	"github.com/wareflow/wareflow/internal/shared"
)

// Handler manages purchase order endpoints.
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

// MountRoutes registers purchase order routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny("purchasing.view", "purchasing.edit"))
		r.Get("/pos", h.list)
		r.Get("/pos/{id}", h.get)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll("purchasing.edit"))
		r.Post("/pos", h.create)
		r.Put("/pos/{id}", h.edit)
		r.Post("/pos/{id}/request-approval", h.requestApproval)
		r.Delete("/pos/{id}", h.remove)
	})
}

type createPORequest struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	VendorID  int64 `json:"vendor_id" validate:"required,gt=0"`
	Quantity  int64 `json:"quantity" validate:"required,gt=0"`
}

type editPORequest struct {
	ProductID int64  `json:"product_id" validate:"required,gt=0"`
	VendorID  int64  `json:"vendor_id" validate:"required,gt=0"`
	Quantity  int64  `json:"quantity" validate:"required,gt=0"`
	Status    string `json:"status"`
}

type poResponse struct {
	ID             int64  `json:"id"`
	UserID         int64  `json:"user_id"`
	ProductID      int64  `json:"product_id"`
	VendorID       int64  `json:"vendor_id,omitempty"`
	Quantity       int64  `json:"quantity"`
	Status         string `json:"status"`
	ApprovalStatus string `json:"approval_status"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

func toPOResponse(po PurchaseOrder) poResponse {
	return poResponse{
		ID:             po.ID,
		UserID:         po.UserID,
		ProductID:      po.ProductID,
		VendorID:       po.VendorID,
		Quantity:       po.Quantity,
		Status:         string(po.Status),
		ApprovalStatus: string(po.ApprovalStatus),
		CreatedAt:      po.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:      po.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createPORequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	po, err := h.service.Create(r.Context(), CreateInput{
		UserID:    shared.UserIDFromContext(r.Context()),
		ProductID: req.ProductID,
		VendorID:  req.VendorID,
		Quantity:  req.Quantity,
	})
	if err != nil {
		h.respondErr(w, r, "create purchase order", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toPOResponse(po))
}

func (h *Handler) edit(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	var req editPORequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	po, err := h.service.Edit(r.Context(), id, EditInput{
		ProductID: req.ProductID,
		VendorID:  req.VendorID,
		Quantity:  req.Quantity,
		Status:    Status(req.Status),
		ActorID:   shared.UserIDFromContext(r.Context()),
	})
	if err != nil {
		h.respondErr(w, r, "edit purchase order", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPOResponse(po))
}

func (h *Handler) requestApproval(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	po, err := h.service.RequestApproval(r.Context(), id, shared.UserIDFromContext(r.Context()))
	if err != nil {
		h.respondErr(w, r, "request approval", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPOResponse(po))
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err := h.service.Delete(r.Context(), id, shared.UserIDFromContext(r.Context())); err != nil {
		h.respondErr(w, r, "delete purchase order", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	po, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondErr(w, r, "get purchase order", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPOResponse(po))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{Status: Status(q.Get("status"))}
	filter.ID, _ = strconv.ParseInt(q.Get("id"), 10, 64)
	filter.ProductID, _ = strconv.ParseInt(q.Get("product_id"), 10, 64)
	filter.VendorID, _ = strconv.ParseInt(q.Get("vendor_id"), 10, 64)
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))
	filter.Offset, _ = strconv.Atoi(q.Get("offset"))
	pos, summary, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.respondErr(w, r, "list purchase orders", err)
		return
	}
	out := make([]poResponse, 0, len(pos))
	for _, po := range pos {
		out = append(out, toPOResponse(po))
	}
	summaryOut := map[string]int64{}
	for status, qty := range summary {
		summaryOut[string(status)] = qty
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"purchase_orders": out,
		"summary":         summaryOut,
	})
}

func (h *Handler) respondErr(w http.ResponseWriter, r *http.Request, op string, err error) {
	var transition *shared.InvalidTransitionError
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrInvalidStatus):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrNotApproved):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Invalid Transition", err.Error())
	case errors.As(err, &transition):
		httpx.ProblemWithExtra(w, http.StatusUnprocessableEntity, "Invalid Transition", transition.Error(), map[string]string{
			"from": transition.From,
			"to":   transition.To,
		})
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", shared.UserSafeMessage(err))
	}
}
