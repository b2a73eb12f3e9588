package api

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/coopfare/engine/internal/currency"
	"github.com/coopfare/engine/internal/domain"
	"github.com/coopfare/engine/internal/fare"
	"github.com/coopfare/engine/internal/ingestion"
	"github.com/coopfare/engine/internal/ledger"
	"github.com/coopfare/engine/internal/repository"
	"github.com/coopfare/engine/internal/settlement"
)

// Handlers groups all HTTP handler methods and their dependencies.
type Handlers struct {
	settingsRepo   *repository.SettingsRepo
	tripRepo       *repository.TripRepo
	costRepo       *repository.CostRepo
	dividendRepo   *repository.DividendRepo
	settlementRepo *repository.SettlementRepo
	memberRepo     *repository.MemberRepo
	ledgerSvc      *ledger.Service
	calculator     *fare.Calculator
	runner         *settlement.Runner
	ingestionSvc   *ingestion.Service
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[api] encode error: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeEngineError maps the engine's sentinel errors onto HTTP statuses.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrAlreadyRunning),
		errors.Is(err, domain.ErrDuplicateContribution),
		errors.Is(err, domain.ErrInsufficientFunds):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrSettingsInvariant),
		errors.Is(err, domain.ErrInvalidCostInput),
		errors.Is(err, domain.ErrTierGap):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func parseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t, err = time.Parse("2006-01-02", s)
		if err != nil {
			return nil
		}
	}
	return &t
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 1 {
		return def
	}
	return v
}

// --- ImportTrips ---

func (h *Handlers) ImportTrips(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body: "+err.Error())
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "request body is required")
		return
	}

	result, err := h.ingestionSvc.ImportTrips(data)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// --- ComputeTripFare ---

func (h *Handlers) ComputeTripFare(w http.ResponseWriter, r *http.Request) {
	tripID := chi.URLParam(r, "tripID")

	var in fare.TripInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload: "+err.Error())
		return
	}
	in.TripID = tripID

	rec, err := h.calculator.ComputeTripFare(in)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// --- GetTripFare ---

func (h *Handlers) GetTripFare(w http.ResponseWriter, r *http.Request) {
	tripID := chi.URLParam(r, "tripID")

	current, err := h.tripRepo.GetCurrent(tripID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	versions, err := h.tripRepo.GetVersions(tripID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	breakdown := fare.Breakdown{Components: current.Components, Multiplier: current.Multiplier}
	shares := breakdown.ComponentShares(current.PassengerCount)

	writeJSON(w, http.StatusOK, map[string]any{
		"current":  current,
		"versions": versions,
		"component_shares_pence": map[string]int64{
			"wage":     shares[0],
			"fuel":     shares[1],
			"vehicle":  shares[2],
			"overhead": shares[3],
		},
	})
}

// --- ListTripFares ---

func (h *Handlers) ListTripFares(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repository.TripFilter{
		TenantID: q.Get("tenant_id"),
		From:     parseTime(q.Get("from")),
		To:       parseTime(q.Get("to")),
		Page:     parseIntDefault(q.Get("page"), 1),
		Limit:    parseIntDefault(q.Get("limit"), 50),
	}

	records, total, err := h.tripRepo.List(filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"trip_fares": records,
		"total":      total,
		"page":       filter.Page,
		"limit":      filter.Limit,
	})
}

// --- RunPeriod ---

func (h *Handlers) RunPeriod(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")
	periodID := chi.URLParam(r, "periodID")

	result, err := h.runner.RunPeriod(r.Context(), tenantID, periodID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// --- ReleaseSettlement ---

// ReleaseSettlement clears a settlement lock left behind by a crashed run
// and marks the run failed so the next trigger can recover it.
func (h *Handlers) ReleaseSettlement(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")
	periodID := chi.URLParam(r, "periodID")

	if err := h.settlementRepo.ForceRelease(tenantID, periodID, "released by operator"); err != nil {
		writeEngineError(w, err)
		return
	}
	log.Printf("[api] Settlement lock for %s/%s released by operator", tenantID, periodID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "released"})
}

// --- GetSettlementStatus ---

func (h *Handlers) GetSettlementStatus(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")
	periodID := chi.URLParam(r, "periodID")

	s, err := h.runner.SettlementStatus(tenantID, periodID)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	dividends, err := h.dividendRepo.GetForPeriod(tenantID, periodID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	paidOut, err := h.ledgerSvc.PeriodPayout(tenantID, periodID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"settlement":     s,
		"dividends":      dividends,
		"paid_out_pence": paidOut,
	})
}

// --- ListSettlements ---

func (h *Handlers) ListSettlements(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")

	settlements, err := h.settlementRepo.ListByTenant(tenantID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"settlements": settlements})
}

// --- GetFund ---

func (h *Handlers) GetFund(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")

	view, err := h.ledgerSvc.Fund(tenantID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"fund":           view.Fund,
		"currency":       currency.Code,
		"balance_pounds": currency.Pounds(view.Fund.BalancePence),
		"contributions":  view.Contributions,
		"distributions":  view.Distributions,
	})
}

// --- ListDividends ---

func (h *Handlers) ListDividends(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repository.DividendFilter{
		TenantID:   q.Get("tenant_id"),
		PeriodID:   q.Get("period_id"),
		MemberID:   q.Get("member_id"),
		MemberType: q.Get("member_type"),
		Status:     q.Get("status"),
		Page:       parseIntDefault(q.Get("page"), 1),
		Limit:      parseIntDefault(q.Get("limit"), 50),
	}

	dividends, total, err := h.dividendRepo.List(filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"dividends": dividends,
		"total":     total,
		"page":      filter.Page,
		"limit":     filter.Limit,
	})
}

// --- SaveFareSettings ---

type fareSettingsPayload struct {
	WageRateHourPence  int64             `json:"wage_rate_hour_pence"`
	FuelRateKmPence    int64             `json:"fuel_rate_km_pence"`
	VehicleRateKmPence int64             `json:"vehicle_rate_km_pence"`
	OverheadTripPence  int64             `json:"overhead_trip_pence"`
	Tiers              []domain.FareTier `json:"tiers"`
}

func (h *Handlers) SaveFareSettings(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")

	var payload fareSettingsPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload: "+err.Error())
		return
	}

	settings := domain.FareCalculationSettings{
		TenantID:           tenantID,
		WageRateHourPence:  payload.WageRateHourPence,
		FuelRateKmPence:    payload.FuelRateKmPence,
		VehicleRateKmPence: payload.VehicleRateKmPence,
		OverheadTripPence:  payload.OverheadTripPence,
	}
	if err := h.settingsRepo.SaveFareSettings(settings); err != nil {
		writeEngineError(w, err)
		return
	}
	if len(payload.Tiers) > 0 {
		if err := h.settingsRepo.ReplaceTiers(tenantID, payload.Tiers); err != nil {
			writeEngineError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

// --- SaveScheduleSettings ---

type schedulePayload struct {
	Enabled           bool   `json:"enabled"`
	Frequency         string `json:"frequency"`
	ReservesPercent   int    `json:"reserves_percent"`
	BusinessPercent   int    `json:"business_percent"`
	DividendPercent   int    `json:"dividend_percent"`
	Model             string `json:"model"`
	CustomerPercent   int    `json:"customer_percent"`
	DriverPercent     int    `json:"driver_percent"`
	AutoDistribute    bool   `json:"auto_distribute"`
	NotificationEmail string `json:"notification_email"`
}

func (h *Handlers) SaveScheduleSettings(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")

	var payload schedulePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload: "+err.Error())
		return
	}

	model, err := domain.NewCooperativeModel(payload.Model, payload.CustomerPercent, payload.DriverPercent)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	settings := domain.DividendScheduleSettings{
		TenantID:          tenantID,
		Enabled:           payload.Enabled,
		Frequency:         domain.Frequency(payload.Frequency),
		ReservesPercent:   payload.ReservesPercent,
		BusinessPercent:   payload.BusinessPercent,
		DividendPercent:   payload.DividendPercent,
		Model:             model,
		AutoDistribute:    payload.AutoDistribute,
		NotificationEmail: payload.NotificationEmail,
	}
	if err := h.settingsRepo.SaveSchedule(settings); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

// --- RecordOperatingCost ---

type costPayload struct {
	Category    string    `json:"category"`
	AmountPence int64     `json:"amount_pence"`
	Amount      string    `json:"amount,omitempty"` // pounds, e.g. "125.50"
	IncurredAt  time.Time `json:"incurred_at"`
}

func (h *Handlers) RecordOperatingCost(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")

	var payload costPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload: "+err.Error())
		return
	}
	if payload.AmountPence == 0 && payload.Amount != "" {
		pence, err := currency.ParsePounds(payload.Amount)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		payload.AmountPence = pence
	}
	if payload.IncurredAt.IsZero() {
		payload.IncurredAt = time.Now()
	}

	cost := domain.OperatingCost{
		TenantID:    tenantID,
		Category:    payload.Category,
		AmountPence: payload.AmountPence,
		IncurredAt:  payload.IncurredAt,
	}
	if err := h.costRepo.Insert(&cost); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, cost)
}

// --- ListOperatingCosts ---

func (h *Handlers) ListOperatingCosts(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")

	period, err := domain.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	costs, err := h.costRepo.ListForPeriod(tenantID, period.Start, period.End)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	var total int64
	for _, c := range costs {
		total += c.AmountPence
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"period":      period.ID,
		"costs":       costs,
		"total_pence": total,
	})
}

// --- UpsertMember ---

type memberPayload struct {
	MemberID string  `json:"member_id"`
	Type     string  `json:"type"`
	Weight   float64 `json:"weight"`
	Active   *bool   `json:"active"`
}

func (h *Handlers) UpsertMember(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")

	var payload memberPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload: "+err.Error())
		return
	}
	active := true
	if payload.Active != nil {
		active = *payload.Active
	}

	m := domain.Member{
		ID:       payload.MemberID,
		TenantID: tenantID,
		Type:     domain.MemberType(payload.Type),
		Weight:   payload.Weight,
	}
	if err := h.memberRepo.Upsert(m, active); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

// --- GetDashboard ---

func (h *Handlers) GetDashboard(w http.ResponseWriter, r *http.Request) {
	byStatus, err := h.settlementRepo.CountByStatus()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	pendingFilter := repository.DividendFilter{Status: string(domain.DividendPending), Limit: 1}
	_, pendingTotal, err := h.dividendRepo.List(pendingFilter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	paidFilter := repository.DividendFilter{Status: string(domain.DividendPaid), Limit: 1}
	_, paidTotal, err := h.dividendRepo.List(paidFilter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"settlements_by_status": byStatus,
		"dividends": map[string]int{
			"pending": pendingTotal,
			"paid":    paidTotal,
		},
	})
}
