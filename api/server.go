/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request, attached to every log line
  2. Logger:     zap request logging (pkg/logger.Middleware)
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/date, /api/balance   Calendar and balances
  /api/products/*           Products and availability
  /api/batches              Batch listings
  /api/partners/*           Partners, their views and subscriptions
  /api/transactions/*       Ledger and payments
  /api/acquisitions         Register acquisition
  /api/sales                Register sale
  /api/breakdowns           Register breakdown
  /api/state/*              Save, load, import
  /api/scenarios/*          Demo scenarios

SECURITY NOTE:
  No authentication middleware. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/warp/warehouse-engine/pkg/logger"
	"github.com/warp/warehouse-engine/warehouse"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, log *logger.Logger) *chi.Mux {
	if log == nil {
		log = logger.Nop()
	}
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(logger.Middleware(log.WithComponent("http")))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/date", h.GetDate)
		r.Post("/date/advance", h.AdvanceDate)
		r.Get("/balance", h.GetBalance)

		// Product routes
		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.ListProducts)
			r.Post("/", h.RegisterProduct)
			r.Get("/{key}", h.GetProduct)
			r.Get("/{key}/batches", h.ListProductBatches)
			r.Get("/{key}/availability", h.CheckAvailability)
		})

		r.Get("/batches", h.ListBatches)

		// Partner routes
		r.Route("/partners", func(r chi.Router) {
			r.Get("/", h.ListPartners)
			r.Post("/", h.RegisterPartner)
			r.Get("/{key}", h.ShowPartner)
			r.Get("/{key}/batches", h.ListPartnerBatches)
			r.Get("/{key}/acquisitions", h.partnerTransactions((*warehouse.Warehouse).PartnerAcquisitions))
			r.Get("/{key}/sales", h.partnerTransactions((*warehouse.Warehouse).PartnerSalesAndBreakdowns))
			r.Get("/{key}/paid", h.partnerTransactions((*warehouse.Warehouse).PartnerPaidTransactions))
			r.Get("/{key}/transactions", h.partnerTransactions((*warehouse.Warehouse).PartnerTransactions))
			r.Post("/{key}/subscriptions/{product}/toggle", h.ToggleSubscription)
		})

		// Transaction routes
		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", h.ListTransactions)
			r.Get("/{id}", h.GetTransaction)
			r.Post("/{id}/payment", h.ReceivePayment)
		})
		r.Post("/acquisitions", h.RegisterAcquisition)
		r.Post("/sales", h.RegisterSale)
		r.Post("/breakdowns", h.RegisterBreakdown)

		// State routes
		r.Route("/state", func(r chi.Router) {
			r.Get("/", h.GetState)
			r.Get("/snapshot", h.GetSnapshot)
			r.Post("/save", h.Save)
			r.Post("/save-as", h.SaveAs)
			r.Post("/load", h.Load)
			r.Post("/import", h.Import)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})
	})

	return r
}
