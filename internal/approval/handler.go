package approval

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

// Handler manages approval endpoints.
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

// MountRoutes registers approval routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny("approvals.view", "approvals.decide"))
		r.Get("/pending", h.pending)
		r.Get("/{kind}/{id}/history", h.history)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll("approvals.decide"))
		r.Post("/{kind}/{id}", h.transition)
	})
}

type transitionRequest struct {
	Action string `json:"action" validate:"required,oneof=PENDING APPROVED CANCELLED"`
	Note   string `json:"note"`
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request) {
	kind := Kind(chi.URLParam(r, "kind"))
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	var req transitionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	status, err := h.service.Transition(r.Context(), kind, id, Action(req.Action), shared.UserIDFromContext(r.Context()), req.Note)
	if err != nil {
		h.respondErr(w, r, "approval transition", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"kind":            string(kind),
		"id":              id,
		"approval_status": req.Action,
		"status":          status,
	})
}

func (h *Handler) pending(w http.ResponseWriter, r *http.Request) {
	counts, err := h.service.PendingCounts(r.Context())
	if err != nil {
		h.respondErr(w, r, "pending approvals", err)
		return
	}
	out := map[string]int64{}
	for _, c := range counts {
		out[string(c.Kind)] = c.Count
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"pending": out})
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	kind := Kind(chi.URLParam(r, "kind"))
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	entries, err := h.service.History(r.Context(), kind, id)
	if err != nil {
		h.respondErr(w, r, "approval history", err)
		return
	}
	type entryResponse struct {
		ActorID int64  `json:"actor_id"`
		Action  string `json:"action"`
		Note    string `json:"note,omitempty"`
		At      string `json:"at"`
	}
	out := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, entryResponse{
			ActorID: e.ActorID,
			Action:  string(e.Action),
			Note:    e.Note,
			At:      e.At.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"history": out})
}

func (h *Handler) respondErr(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrUnknownKind), errors.Is(err, ErrUnknownAction):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", shared.UserSafeMessage(err))
	}
}
