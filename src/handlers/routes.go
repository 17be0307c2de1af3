package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/username/poolcosts/backend/src/utils"
	"golang.org/x/time/rate"
)

// API bundles the handlers mounted under /api.
type API struct {
	Extract  *ExtractHandler
	Sync     *SyncHandler
	Invoices *InvoiceHandler
	Costs    *CostHandler
}

// RouterOptions configures the shared middleware.
type RouterOptions struct {
	AllowedOrigins []string
	Limiter        *rate.Limiter
}

func NewRouter(api API, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(ContextualLoggerMiddleware)
	r.Use(MetricsMiddleware)
	r.Use(CORSMiddleware(opts.AllowedOrigins))
	if opts.Limiter != nil {
		r.Use(RateLimitMiddleware(opts.Limiter))
	}

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		utils.WriteJSON(w, http.StatusOK, map[string]string{"message": "poolcosts backend is running"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/extract", api.Extract.HandleExtract)
		r.Post("/sync", api.Sync.HandleSync)
		r.Get("/config", HandleGetConfig)

		r.Route("/invoices", func(r chi.Router) {
			r.Get("/", api.Invoices.HandleListInvoices)
			r.Get("/{id}", api.Invoices.HandleGetInvoice)
			r.Patch("/{id}", api.Invoices.HandleUpdateInvoice)
		})

		r.Route("/manual-costs", func(r chi.Router) {
			r.Get("/", api.Costs.HandleListManualCosts)
			r.Post("/", api.Costs.HandleCreateManualCost)
			r.Get("/{id}", api.Costs.HandleGetManualCost)
			r.Put("/{id}", api.Costs.HandleUpdateManualCost)
			r.Delete("/{id}", api.Costs.HandleDeleteManualCost)
		})

		r.Get("/summary", api.Costs.HandleGetSummary)
		r.Get("/costs", api.Costs.HandleGetCosts)
		r.Get("/costs/export.csv", api.Costs.HandleExportCSV)
		r.Get("/costs/export.xlsx", api.Costs.HandleExportXLSX)
	})

	return r
}
