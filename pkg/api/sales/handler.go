// Package sales serves the daily sales ledger and its totals against the
// targets implied by the current assessment.
package sales

import (
	"net/http"
	"strconv"
	"time"

	"finpulse/pkg/api/render"
	"finpulse/pkg/core/calc"
	"finpulse/pkg/core/pipeline"
	"finpulse/pkg/core/store"
	"finpulse/pkg/models"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	Store    store.HistoryStore
	Pipeline *pipeline.Orchestrator
	Now      func() time.Time
}

func NewHandler(s store.HistoryStore, p *pipeline.Orchestrator) *Handler {
	return &Handler{Store: s, Pipeline: p, Now: time.Now}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/sales", h.List)
	r.Get("/sales/totals", h.Totals)
	r.Put("/sales/{date}", h.Upsert)
}

type UpsertRequest struct {
	Amount float64 `json:"amount"`
}

type LedgerResponse struct {
	Entries []models.DailySalesEntry `json:"entries"`
	Months  []store.MonthSummary     `json:"months"`
}

func (h *Handler) Upsert(w http.ResponseWriter, r *http.Request) {
	var req UpsertRequest
	if err := render.Decode(r, &req); err != nil {
		render.Error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	entry := models.DailySalesEntry{Date: chi.URLParam(r, "date"), Amount: req.Amount}
	entries, err := h.Store.UpsertSalesEntry(r.Context(), chi.URLParam(r, "userID"), entry)
	if err != nil {
		render.Failure(w, err)
		return
	}
	render.JSON(w, http.StatusOK, ledger(entries))
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Store.SalesEntries(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		render.Failure(w, err)
		return
	}
	render.JSON(w, http.StatusOK, ledger(entries))
}

func ledger(entries []models.DailySalesEntry) LedgerResponse {
	if entries == nil {
		entries = []models.DailySalesEntry{}
	}
	months := store.SummarizeMonths(entries)
	if months == nil {
		months = []store.MonthSummary{}
	}
	return LedgerResponse{Entries: entries, Months: months}
}

type TotalsResponse struct {
	Year         int                  `json:"year"`
	Month        int                  `json:"month"`
	MonthlyTotal float64              `json:"monthly_total"`
	AllTimeTotal float64              `json:"all_time_total"`
	Targets      calc.SalesTargets    `json:"targets"`
	Progress     *calc.TargetProgress `json:"monthly_progress,omitempty"`
}

// Totals reports the month's sales (default: the current month) and, when a
// report is current, progress against its monthly target.
func (h *Handler) Totals(w http.ResponseWriter, r *http.Request) {
	now := h.Now()
	year, err := intParam(r, "year", now.Year())
	if err != nil {
		render.Error(w, http.StatusBadRequest, "bad_request", "year must be a number")
		return
	}
	month, err := intParam(r, "month", int(now.Month()))
	if err != nil || month < 1 || month > 12 {
		render.Error(w, http.StatusBadRequest, "bad_request", "month must be between 1 and 12")
		return
	}

	id := chi.URLParam(r, "userID")
	monthly, err := store.MonthlyTotal(r.Context(), h.Store, id, year, time.Month(month))
	if err != nil {
		render.Failure(w, err)
		return
	}
	all, err := store.AllTimeTotal(r.Context(), h.Store, id)
	if err != nil {
		render.Failure(w, err)
		return
	}

	resp := TotalsResponse{Year: year, Month: month, MonthlyTotal: monthly, AllTimeTotal: all}
	if snap := h.Pipeline.Current(id); snap.Derived != nil {
		resp.Targets = snap.Derived.Targets
		p := calc.Progress(monthly, resp.Targets.Monthly)
		resp.Progress = &p
	}
	render.JSON(w, http.StatusOK, resp)
}

func intParam(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
