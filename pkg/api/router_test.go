package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"finpulse/pkg/api/render"
	"finpulse/pkg/core/agent"
	"finpulse/pkg/core/assessor"
	"finpulse/pkg/core/calc"
	"finpulse/pkg/core/llm"
	"finpulse/pkg/core/pipeline"
	"finpulse/pkg/core/store"
	"finpulse/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubAssessor returns err when set, optionally waiting on gate first, and
// otherwise delegates to the simulated assessor.
type stubAssessor struct {
	mu   sync.Mutex
	err  error
	gate chan struct{}
	sim  *assessor.Simulated
}

func (s *stubAssessor) Assess(ctx context.Context, d models.FinancialData, h assessor.HistorySummary) (models.AssessmentResult, error) {
	s.mu.Lock()
	err, gate := s.err, s.gate
	s.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return models.AssessmentResult{}, ctx.Err()
		}
	}
	if err != nil {
		return models.AssessmentResult{}, err
	}
	return s.sim.Assess(ctx, d, h)
}

type fixture struct {
	srv    *httptest.Server
	stub   *stubAssessor
	store  *store.MemoryStore
	agents *agent.Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		stub:  &stubAssessor{sim: assessor.NewSimulated(calc.DefaultRatePolicy(), calc.DefaultTenurePolicy())},
		store: store.NewMemoryStore(store.DefaultLimits()),
	}
	cfg := pipeline.DefaultConfig()
	cfg.Retry.MaxAttempts = 2
	cfg.Retry.Sleep = func(context.Context, time.Duration) error { return nil }
	cfg.Retry.Jitter = func(time.Duration) time.Duration { return 0 }

	noSleep := func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	orch := pipeline.New(f.stub, f.store, cfg, pipeline.WithSleep(noSleep))

	f.agents = agent.NewManager(agent.Config{ActiveProvider: "gemini"}, nil)
	f.srv = httptest.NewServer(NewRouter(Deps{Pipeline: orch, Store: f.store, Agents: f.agents}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, f.srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func sample() models.FinancialData {
	return models.FinancialData{
		Revenue: 1200000, Expenses: 800000, AccountsReceivable: 60000, AccountsPayable: 40000,
		Inventory: 90000, Loans: 150000, CashInHand: 25000,
		Industry: models.IndustryRetail, GSTStatus: models.GSTFiled,
	}
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSubmitThenCurrentAndSelect(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, "/api/users/u1/assessments", sample())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	report := decode[models.SavedReport](t, resp)
	assert.NotEmpty(t, report.ID)
	assert.Equal(t, sample(), report.Data)

	resp = f.do(t, http.MethodGet, "/api/users/u1/assessments/current", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	snap := decode[pipeline.Snapshot](t, resp)
	assert.Equal(t, pipeline.StateCommitted, snap.State)
	require.NotNil(t, snap.Current)
	assert.Equal(t, report.ID, snap.Current.ID)
	require.NotNil(t, snap.Derived)

	resp = f.do(t, http.MethodGet, "/api/users/u1/reports", nil)
	reports := decode[[]models.SavedReport](t, resp)
	require.Len(t, reports, 1)

	resp = f.do(t, http.MethodPost, "/api/users/u1/reports/"+report.ID+"/select", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/api/users/u1/reports/nope/select", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSubmitErrorStatuses(t *testing.T) {
	f := newFixture(t)

	bad := sample()
	bad.Revenue = -1
	resp := f.do(t, http.MethodPost, "/api/users/u1/assessments", bad)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	body := decode[render.ErrorBody](t, resp)
	assert.Equal(t, pipeline.KindValidation, body.Kind)
	assert.Contains(t, body.Error, "Financial values failed validation")

	resp = f.do(t, http.MethodPost, "/api/users/u1/assessments", map[string]any{"revenue": 1, "bogus": true})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	f.stub.mu.Lock()
	f.stub.err = &llm.StatusError{Provider: "gemini", Code: http.StatusTooManyRequests, Body: "RESOURCE_EXHAUSTED"}
	f.stub.mu.Unlock()
	resp = f.do(t, http.MethodPost, "/api/users/u1/assessments", sample())
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	body = decode[render.ErrorBody](t, resp)
	assert.Equal(t, pipeline.KindRateLimited, body.Kind)
	assert.Equal(t, http.StatusTooManyRequests, body.Status)
	assert.Equal(t, "System quota exhausted. Please wait 60s for the assessment engine to reset.", body.Error)

	f.stub.mu.Lock()
	f.stub.err = &assessor.ContractError{Missing: []string{"creditScore"}}
	f.stub.mu.Unlock()
	resp = f.do(t, http.MethodPost, "/api/users/u1/assessments", sample())
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	body = decode[render.ErrorBody](t, resp)
	assert.Equal(t, pipeline.KindContract, body.Kind)

	resp = f.do(t, http.MethodGet, "/api/users/u1/reports", nil)
	assert.Empty(t, decode[[]models.SavedReport](t, resp))
}

func TestSubmitBusyWhileInFlight(t *testing.T) {
	f := newFixture(t)
	payload := mustJSON(t, sample())

	gate := make(chan struct{})
	f.stub.mu.Lock()
	f.stub.gate = gate
	f.stub.mu.Unlock()

	done := make(chan int, 1)
	go func() {
		resp, err := http.Post(f.srv.URL+"/api/users/u1/assessments", "application/json", strings.NewReader(payload))
		if err != nil {
			done <- 0
			return
		}
		resp.Body.Close()
		done <- resp.StatusCode
	}()

	require.Eventually(t, func() bool {
		resp := f.do(t, http.MethodGet, "/api/users/u1/assessments/current", nil)
		return decode[pipeline.Snapshot](t, resp).State.InFlight()
	}, 2*time.Second, 5*time.Millisecond)

	resp := f.do(t, http.MethodPost, "/api/users/u1/assessments", sample())
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp = f.do(t, http.MethodDelete, "/api/users/u1", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	close(gate)
	assert.Equal(t, http.StatusOK, <-done)

	resp = f.do(t, http.MethodDelete, "/api/users/u1", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = f.do(t, http.MethodGet, "/api/users/u1/reports", nil)
	assert.Empty(t, decode[[]models.SavedReport](t, resp))
}

func TestStreamEmitsProgressThenResult(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, "/api/users/u1/assessments/stream", sample())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	var names []string
	var last string
	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		line := sc.Text()
		if name, ok := strings.CutPrefix(line, "event: "); ok {
			names = append(names, name)
		}
		if data, ok := strings.CutPrefix(line, "data: "); ok {
			last = data
		}
	}
	require.NoError(t, sc.Err())

	progress := 0
	for _, n := range names {
		if n == string(pipeline.EventProgress) {
			progress++
		}
	}
	assert.Equal(t, len(pipeline.DefaultProgressLabels), progress)
	require.NotEmpty(t, names)
	assert.Equal(t, "result", names[len(names)-1])

	var report models.SavedReport
	require.NoError(t, json.Unmarshal([]byte(last), &report))
	assert.NotEmpty(t, report.ID)
}

func TestStreamFailureCarriesStatus(t *testing.T) {
	f := newFixture(t)
	f.stub.mu.Lock()
	f.stub.err = &llm.StatusError{Provider: "gemini", Code: http.StatusTooManyRequests, Body: "RESOURCE_EXHAUSTED"}
	f.stub.mu.Unlock()

	resp := f.do(t, http.MethodPost, "/api/users/u1/assessments/stream", sample())
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var name, last string
	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		line := sc.Text()
		if n, ok := strings.CutPrefix(line, "event: "); ok {
			name = n
		}
		if data, ok := strings.CutPrefix(line, "data: "); ok {
			last = data
		}
	}
	require.NoError(t, sc.Err())
	require.Equal(t, "error", name)

	var body render.ErrorBody
	require.NoError(t, json.Unmarshal([]byte(last), &body))
	assert.Equal(t, http.StatusTooManyRequests, body.Status)
	assert.Equal(t, pipeline.KindRateLimited, body.Kind)
}

func TestLoginsRestoreLatestReport(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodPost, "/api/users/u1/assessments", sample())
	report := decode[models.SavedReport](t, resp)

	resp = f.do(t, http.MethodPost, "/api/users/u1/logins", map[string]string{"status": "Success"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	logins := decode[[]models.LoginSession](t, resp)
	require.Len(t, logins, 1)
	assert.Equal(t, "127.0.0.1", logins[0].IP)

	resp = f.do(t, http.MethodPost, "/api/users/u1/logins", map[string]string{"status": "Maybe"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/users/u1/assessments/current", nil)
	snap := decode[pipeline.Snapshot](t, resp)
	require.NotNil(t, snap.Current)
	assert.Equal(t, report.ID, snap.Current.ID)
}

func TestSalesLedgerAndTotals(t *testing.T) {
	f := newFixture(t)

	for date, amount := range map[string]float64{"2024-03-02": 1500, "2024-03-01": 1000, "2024-04-10": 700} {
		resp := f.do(t, http.MethodPut, "/api/users/u1/sales/"+date, map[string]float64{"amount": amount})
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	resp := f.do(t, http.MethodPut, "/api/users/u1/sales/2024-03-01", map[string]float64{"amount": 1200})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = f.do(t, http.MethodPut, "/api/users/u1/sales/not-a-date", map[string]float64{"amount": 1})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/users/u1/sales", nil)
	var ledger struct {
		Entries []models.DailySalesEntry `json:"entries"`
		Months  []store.MonthSummary     `json:"months"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ledger))
	require.Len(t, ledger.Entries, 3)
	assert.Equal(t, "2024-03-01", ledger.Entries[0].Date)
	assert.Equal(t, 1200.0, ledger.Entries[0].Amount)
	require.Len(t, ledger.Months, 2)
	assert.Equal(t, 2700.0, ledger.Months[0].Total)

	resp = f.do(t, http.MethodGet, "/api/users/u1/sales/totals?year=2024&month=3", nil)
	var totals struct {
		MonthlyTotal float64              `json:"monthly_total"`
		AllTimeTotal float64              `json:"all_time_total"`
		Progress     *calc.TargetProgress `json:"monthly_progress"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&totals))
	assert.Equal(t, 2700.0, totals.MonthlyTotal)
	assert.Equal(t, 3400.0, totals.AllTimeTotal)
	assert.Nil(t, totals.Progress)

	resp = f.do(t, http.MethodGet, "/api/users/u1/sales/totals?month=13", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSeedUpload(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodGet, "/api/users/u1/seed", nil)
	var empty struct {
		Data models.FinancialData `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&empty))
	assert.Equal(t, models.DefaultFinancialData(), empty.Data)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "books.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte("revenue,expenses,industry\n900000,600000,Manufacturing\n"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	up, err := http.Post(f.srv.URL+"/api/users/u1/seed", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer up.Body.Close()
	require.Equal(t, http.StatusOK, up.StatusCode)

	var seeded struct {
		Data models.FinancialData `json:"data"`
	}
	require.NoError(t, json.NewDecoder(up.Body).Decode(&seeded))
	assert.Equal(t, 900000.0, seeded.Data.Revenue)
	assert.Equal(t, models.IndustryManufacturing, seeded.Data.Industry)
	assert.Equal(t, models.GSTFiled, seeded.Data.GSTStatus)
}

func TestConfigProviders(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodGet, "/api/config/providers", nil)
	cfg := decode[map[string]any](t, resp)
	assert.Equal(t, "gemini", cfg["active_provider"])

	resp = f.do(t, http.MethodPost, "/api/config/providers/active", map[string]string{"provider": "deepseek"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "deepseek", f.agents.GetActiveProvider())

	resp = f.do(t, http.MethodPost, "/api/config/providers/active", map[string]string{"provider": "nobody"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodOptions, "/api/users/u1/assessments", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}
