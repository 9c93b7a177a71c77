package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wareflow/wareflow/internal/approval"
	"github.com/wareflow/wareflow/internal/inventory"
	"github.com/wareflow/wareflow/internal/masterdata/categories"
	"github.com/wareflow/wareflow/internal/masterdata/products"
	"github.com/wareflow/wareflow/internal/masterdata/vendors"
	"github.com/wareflow/wareflow/internal/observability"
	"github.com/wareflow/wareflow/internal/orders"
	"github.com/wareflow/wareflow/internal/purchasing"
	"github.com/wareflow/wareflow/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger  *slog.Logger
	Config  *Config
	Pool    *pgxpool.Pool
	Metrics *observability.Metrics

	InventoryHandler  *inventory.Handler
	OrdersHandler     *orders.Handler
	PurchasingHandler *purchasing.Handler
	ApprovalHandler   *approval.Handler
	ProductsHandler   *products.Handler
	VendorsHandler    *vendors.Handler
	CategoriesHandler *categories.Handler
	JobsHandler       *jobs.Handler
}

// NewRouter constructs the chi.Router with wareflow defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)
	if params.Metrics != nil {
		r.Use(params.Metrics.Middleware)
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if params.Pool != nil {
			if err := params.Pool.Ping(req.Context()); err != nil {
				params.Logger.Warn("healthz db ping", slog.Any("error", err))
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"degraded"}`))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.InventoryHandler != nil {
		r.Route("/inventory", params.InventoryHandler.MountRoutes)
	}
	if params.OrdersHandler != nil {
		r.Route("/orders", params.OrdersHandler.MountRoutes)
	}
	if params.PurchasingHandler != nil {
		r.Route("/purchasing", params.PurchasingHandler.MountRoutes)
	}
	if params.ApprovalHandler != nil {
		r.Route("/approvals", params.ApprovalHandler.MountRoutes)
	}
	if params.JobsHandler != nil {
		r.Route("/jobs", params.JobsHandler.MountRoutes)
	}
	r.Route("/masterdata", func(r chi.Router) {
		if params.ProductsHandler != nil {
			r.Route("/products", params.ProductsHandler.MountRoutes)
		}
		if params.VendorsHandler != nil {
			r.Route("/vendors", params.VendorsHandler.MountRoutes)
		}
		if params.CategoriesHandler != nil {
			r.Route("/categories", params.CategoriesHandler.MountRoutes)
		}
	})

	return r
}
