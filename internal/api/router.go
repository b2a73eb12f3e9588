package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/coopfare/engine/internal/fare"
	"github.com/coopfare/engine/internal/ingestion"
	"github.com/coopfare/engine/internal/ledger"
	"github.com/coopfare/engine/internal/repository"
	"github.com/coopfare/engine/internal/settlement"
)

// Deps carries everything the HTTP layer needs.
type Deps struct {
	SettingsRepo   *repository.SettingsRepo
	TripRepo       *repository.TripRepo
	CostRepo       *repository.CostRepo
	DividendRepo   *repository.DividendRepo
	SettlementRepo *repository.SettlementRepo
	MemberRepo     *repository.MemberRepo
	Ledger         *ledger.Service
	Calculator     *fare.Calculator
	Runner         *settlement.Runner
	Ingestion      *ingestion.Service
}

// NewRouter creates the Chi router with all API routes mounted.
func NewRouter(d Deps) http.Handler {
	h := &Handlers{
		settingsRepo:   d.SettingsRepo,
		tripRepo:       d.TripRepo,
		costRepo:       d.CostRepo,
		dividendRepo:   d.DividendRepo,
		settlementRepo: d.SettlementRepo,
		memberRepo:     d.MemberRepo,
		ledgerSvc:      d.Ledger,
		calculator:     d.Calculator,
		runner:         d.Runner,
		ingestionSvc:   d.Ingestion,
	}

	r := chi.NewRouter()

	// Middleware.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))
	r.Use(middleware.SetHeader("Content-Type", "application/json"))

	r.Route("/api/v1", func(r chi.Router) {
		// Trip fares.
		r.Post("/trips/import", h.ImportTrips)
		r.Post("/trips/{tripID}/fare", h.ComputeTripFare)
		r.Get("/trips/{tripID}/fare", h.GetTripFare)
		r.Get("/trips", h.ListTripFares)

		// Settlements.
		r.Post("/tenants/{tenantID}/periods/{periodID}/run", h.RunPeriod)
		r.Get("/tenants/{tenantID}/periods/{periodID}/settlement", h.GetSettlementStatus)
		r.Post("/tenants/{tenantID}/periods/{periodID}/release", h.ReleaseSettlement)
		r.Get("/tenants/{tenantID}/settlements", h.ListSettlements)

		// Commonwealth fund.
		r.Get("/tenants/{tenantID}/fund", h.GetFund)
		r.Get("/dividends", h.ListDividends)

		// Tenant configuration.
		r.Put("/tenants/{tenantID}/settings/fares", h.SaveFareSettings)
		r.Put("/tenants/{tenantID}/settings/schedule", h.SaveScheduleSettings)
		r.Post("/tenants/{tenantID}/costs", h.RecordOperatingCost)
		r.Get("/tenants/{tenantID}/costs", h.ListOperatingCosts)
		r.Post("/tenants/{tenantID}/members", h.UpsertMember)

		// Dashboard.
		r.Get("/dashboard", h.GetDashboard)
	})

	return r
}
