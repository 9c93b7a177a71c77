package inventory

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

// Handler manages inventory endpoints.
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

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny("inventory.view", "inventory.edit"))
		r.Get("/lots", h.listLots)
		r.Get("/lots/{id}", h.getLot)
		r.Get("/availability", h.availability)
		r.Get("/vendors", h.vendorAvailability)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll("inventory.edit"))
		r.Post("/inwards", h.createInward)
		r.Put("/inwards/{id}", h.editInward)
		r.Delete("/inwards/{id}", h.deleteInward)
	})
}

type inwardRequest struct {
	ProductID int64  `json:"product_id" validate:"required,gt=0"`
	VendorID  int64  `json:"vendor_id" validate:"required,gt=0"`
	Quantity  int64  `json:"quantity" validate:"required,gt=0"`
	Status    string `json:"status"`
}

type editInwardRequest struct {
	ProductID int64  `json:"product_id"`
	VendorID  int64  `json:"vendor_id"`
	StockQty  *int64 `json:"stock_quantity"`
	Status    string `json:"status"`
}

type lotResponse struct {
	ID             int64  `json:"id"`
	ProductID      int64  `json:"product_id"`
	VendorID       int64  `json:"vendor_id,omitempty"`
	StockQty       int64  `json:"stock_quantity"`
	InwardQty      int64  `json:"inward_qty"`
	Status         string `json:"status"`
	ApprovalStatus string `json:"approval_status"`
	InwardDate     string `json:"inward_date"`
	LastUpdated    string `json:"last_updated"`
}

func toLotResponse(lot Lot) lotResponse {
	return lotResponse{
		ID:             lot.ID,
		ProductID:      lot.ProductID,
		VendorID:       lot.VendorID,
		StockQty:       lot.StockQty,
		InwardQty:      lot.InwardQty,
		Status:         string(lot.Status),
		ApprovalStatus: string(lot.ApprovalStatus),
		InwardDate:     lot.InwardDate.Format("2006-01-02T15:04:05Z07:00"),
		LastUpdated:    lot.LastUpdated.Format("2006-01-02T15:04:05Z07:00"),
	}
}

func (h *Handler) createInward(w http.ResponseWriter, r *http.Request) {
	var req inwardRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	lot, err := h.service.CreateInward(r.Context(), InwardInput{
		ProductID: req.ProductID,
		VendorID:  req.VendorID,
		Quantity:  req.Quantity,
		Status:    Status(req.Status),
		ActorID:   shared.UserIDFromContext(r.Context()),
	})
	if err != nil {
		h.respondErr(w, r, "create inward", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toLotResponse(lot))
}

func (h *Handler) editInward(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	var req editInwardRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON body")
		return
	}
	lot, err := h.service.EditInward(r.Context(), id, EditInput{
		ProductID: req.ProductID,
		VendorID:  req.VendorID,
		StockQty:  req.StockQty,
		Status:    Status(req.Status),
		ActorID:   shared.UserIDFromContext(r.Context()),
	})
	if err != nil {
		h.respondErr(w, r, "edit inward", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toLotResponse(lot))
}

func (h *Handler) deleteInward(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err := h.service.DeleteInward(r.Context(), id, shared.UserIDFromContext(r.Context())); err != nil {
		h.respondErr(w, r, "delete inward", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getLot(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	lot, err := h.service.GetLot(r.Context(), id)
	if err != nil {
		h.respondErr(w, r, "get lot", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toLotResponse(lot))
}

func (h *Handler) listLots(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	productID, _ := strconv.ParseInt(q.Get("product_id"), 10, 64)
	vendorID, _ := strconv.ParseInt(q.Get("vendor_id"), 10, 64)
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	lots, err := h.service.ListLots(r.Context(), LotFilter{
		ProductID: productID,
		VendorID:  vendorID,
		Status:    Status(q.Get("status")),
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		h.respondErr(w, r, "list lots", err)
		return
	}
	out := make([]lotResponse, 0, len(lots))
	for _, lot := range lots {
		out = append(out, toLotResponse(lot))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"lots": out})
}

func (h *Handler) availability(w http.ResponseWriter, r *http.Request) {
	productID, _ := strconv.ParseInt(r.URL.Query().Get("product_id"), 10, 64)
	vendorID, _ := strconv.ParseInt(r.URL.Query().Get("vendor_id"), 10, 64)
	if productID == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "product_id is required")
		return
	}
	total, err := h.service.AvailableStock(r.Context(), productID, vendorID)
	if err != nil {
		h.respondErr(w, r, "availability", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"product_id":     productID,
		"vendor_id":      vendorID,
		"stock_quantity": total,
	})
}

func (h *Handler) vendorAvailability(w http.ResponseWriter, r *http.Request) {
	productID, _ := strconv.ParseInt(r.URL.Query().Get("product_id"), 10, 64)
	if productID == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "product_id is required")
		return
	}
	vendors, err := h.service.VendorAvailability(r.Context(), productID)
	if err != nil {
		h.respondErr(w, r, "vendor availability", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"vendors": vendors})
}

func (h *Handler) respondErr(w http.ResponseWriter, r *http.Request, op string, err error) {
	var insufficient *InsufficientStockError
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
	case errors.Is(err, ErrConcurrencyConflict):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", shared.UserSafeMessage(err))
	}
}
