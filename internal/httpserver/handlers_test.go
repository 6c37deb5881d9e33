package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"log/slog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adtrack/internal/config"
	"adtrack/internal/ingest"
	"adtrack/internal/meta"
	"adtrack/internal/metrics"
	"adtrack/internal/repo"
	"adtrack/internal/report"
)

// fakeStore implements repo.Store with overridable behavior per test.
type fakeStore struct {
	pingErr error

	savedRecords []ingest.Record
	saveErr      error

	leadItems []repo.LeadItem
	leadsErr  error

	leadToday, leadTotal int64

	dailySpend []report.SpendPoint
	dailyLeads []report.LeadPoint
	daysSeen   int

	sums map[string][2]float64

	snapToday, snapRange repo.SnapshotAgg
	snapErr              error

	groups []repo.InsightGroup

	upsertedSpend int
}

func (f *fakeStore) Ping(context.Context) error { return f.pingErr }

func (f *fakeStore) SaveIngestBatch(_ context.Context, _ []byte, records []ingest.Record) (string, error) {
	if f.saveErr != nil {
		return "", f.saveErr
	}
	f.savedRecords = records
	return "job-1", nil
}

func (f *fakeStore) UpsertLeads(_ context.Context, leads []repo.LeadUpsert) (int, error) {
	return len(leads), nil
}

func (f *fakeStore) ListLeads(_ context.Context, _ repo.LeadFilter) ([]repo.LeadItem, error) {
	return f.leadItems, f.leadsErr
}

func (f *fakeStore) LeadCounts(context.Context, time.Time, time.Time) (int64, int64, error) {
	return f.leadToday, f.leadTotal, nil
}

func (f *fakeStore) DailySpend(_ context.Context, days int) ([]report.SpendPoint, error) {
	f.daysSeen = days
	return f.dailySpend, nil
}

func (f *fakeStore) DailyLeads(context.Context, int) ([]report.LeadPoint, error) {
	return f.dailyLeads, nil
}

func (f *fakeStore) SumAdColumn(_ context.Context, column, _ string) (float64, float64, error) {
	v := f.sums[column]
	return v[0], v[1], nil
}

func (f *fakeStore) SnapshotAggregate(context.Context, string, string, *string, *string) (repo.SnapshotAgg, repo.SnapshotAgg, error) {
	return f.snapToday, f.snapRange, f.snapErr
}

func (f *fakeStore) InsightBreakdown(context.Context, string, *string, *string) ([]repo.InsightGroup, error) {
	return f.groups, nil
}

func (f *fakeStore) UpsertAdSpend(_ context.Context, rows []repo.AdSpendRow) (int, error) {
	f.upsertedSpend += len(rows)
	return len(rows), nil
}

var _ repo.Store = (*fakeStore)(nil)

func newTestServer(t *testing.T, store *fakeStore, cfg config.Config) *Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New("127.0.0.1:0", logger, metrics.Registry("test"), Dependencies{
		Store:  store,
		Config: cfg,
	})
}

func doRequest(t *testing.T, srv *Server, method, target string, body string, header map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded), "response body: %s", rec.Body.String())
	}
	return rec, decoded
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, &fakeStore{}, config.Config{})
	rec, body := doRequest(t, srv, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "no-store, max-age=0", rec.Header().Get("Cache-Control"))
}

func TestConnectionTest(t *testing.T) {
	srv := newTestServer(t, &fakeStore{}, config.Config{})
	rec, body := doRequest(t, srv, http.MethodGet, "/connection-test", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	pg := body["postgres"].(map[string]any)
	assert.Equal(t, true, pg["ok"])

	srv = newTestServer(t, &fakeStore{pingErr: fmt.Errorf("connection refused")}, config.Config{})
	_, body = doRequest(t, srv, http.MethodGet, "/connection-test", "", nil)
	pg = body["postgres"].(map[string]any)
	assert.Equal(t, false, pg["ok"])
	assert.Contains(t, pg["error"], "connection refused")
}

func TestIngestHappyPath(t *testing.T) {
	store := &fakeStore{}
	srv := newTestServer(t, store, config.Config{})

	payload := `{"metric_date":"2024-05-01","platform":"meta","spend":"12.5","utm_breakdown":[{"utm_campaign":"promo","leads":3}]}`
	rec, body := doRequest(t, srv, http.MethodPost, "/ingest", payload, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, true, body["ok"])
	assert.EqualValues(t, 1, body["metrics_upserted"])
	assert.EqualValues(t, 1, body["utm_upserted"])
	assert.Equal(t, "job-1", body["job_id"])
	require.Len(t, store.savedRecords, 1)
	assert.Equal(t, "2024-05-01", store.savedRecords[0].MetricDate)
}

func TestIngestRejectsBadKey(t *testing.T) {
	srv := newTestServer(t, &fakeStore{}, config.Config{IngestionAPIKey: "secret"})

	rec, _ := doRequest(t, srv, http.MethodPost, "/ingest", `{}`, map[string]string{"x-ingestion-key": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = doRequest(t, srv, http.MethodPost, "/ingest",
		`{"metric_date":"2024-05-01","platform":"meta"}`,
		map[string]string{"x-ingestion-key": "secret"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestIngestRejectsInvalidBody(t *testing.T) {
	srv := newTestServer(t, &fakeStore{}, config.Config{})
	rec, body := doRequest(t, srv, http.MethodPost, "/ingest", `{"platform":"meta"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["error"], "metric_date")
}

func TestLeadsDefaultsAndAll(t *testing.T) {
	store := &fakeStore{leadItems: []repo.LeadItem{{CreatedAt: "2024-05-01T10:00:00Z"}}}
	srv := newTestServer(t, store, config.Config{})

	rec, body := doRequest(t, srv, http.MethodGet, "/leads", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "all", body["platform"])
	assert.EqualValues(t, 1, body["total_conversations"])

	_, body = doRequest(t, srv, http.MethodGet, "/leads?date=all&platform=meta", "", nil)
	assert.Equal(t, "all", body["date"])
	assert.Equal(t, "meta", body["platform"])

	rec, _ = doRequest(t, srv, http.MethodGet, "/leads?date=01-05-2024", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBudgetUnconfigured(t *testing.T) {
	srv := newTestServer(t, &fakeStore{}, config.Config{})
	rec, _ := doRequest(t, srv, http.MethodGet, "/budget", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestInsightsLevelValidation(t *testing.T) {
	store := &fakeStore{groups: []repo.InsightGroup{
		{Name: "A", Spend: 100, Quantity: 10},
		{Name: "B", Spend: 40, Quantity: 8},
	}}
	srv := newTestServer(t, store, config.Config{})

	rec, body := doRequest(t, srv, http.MethodGet, "/insights", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "campaign", body["level"])
	assert.Equal(t, "B", body["champion"])

	rec, body = doRequest(t, srv, http.MethodGet, "/insights?level=creative", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "level must be campaign, adset or ad", body["error"])
}

func TestInsightDetailStub(t *testing.T) {
	srv := newTestServer(t, &fakeStore{}, config.Config{})

	rec, _ := doRequest(t, srv, http.MethodGet, "/insights/detail", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body := doRequest(t, srv, http.MethodGet, "/insights/detail?id=123&level=ad", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "123", body["id"])
	assert.Equal(t, "ad", body["level"])
	assert.EqualValues(t, 0, body["spend"])
}

func TestMetricsDailyClampsDays(t *testing.T) {
	store := &fakeStore{
		dailySpend: []report.SpendPoint{{Date: "2024-05-01", Spend: 100}},
		dailyLeads: []report.LeadPoint{{Date: "2024-05-01", Leads: 4}},
	}
	srv := newTestServer(t, store, config.Config{})

	rec, body := doRequest(t, srv, http.MethodGet, "/metrics/daily?days=400", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 365, store.daysSeen)

	daily := body["daily"].([]any)
	require.Len(t, daily, 1)
	best := body["best_day"].(map[string]any)
	assert.Equal(t, "2024-05-01", best["date"])
	assert.EqualValues(t, 25, best["cpl"])
}

func TestMetricsAggregates(t *testing.T) {
	store := &fakeStore{
		leadToday: 3,
		leadTotal: 40,
		sums: map[string][2]float64{
			"spend":                 {10, 200},
			"impressions":           {1000, 50000},
			"link_clicks":           {50, 900},
			"conversations_started": {2, 25},
		},
	}
	srv := newTestServer(t, store, config.Config{})

	rec, body := doRequest(t, srv, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "meta", body["platform"])
	assert.Equal(t, "ENGAGEMENT", body["objective"])
	assert.Equal(t, "ACTIVE", body["status"])

	today := body["today"].(map[string]any)
	assert.EqualValues(t, 3, today["leads"])
	assert.EqualValues(t, 10, today["spend"])
	assert.EqualValues(t, 5, today["cost_per_result"]) // 10 / 2 conversations

	total := body["total"].(map[string]any)
	assert.EqualValues(t, 40, total["leads"])
	assert.EqualValues(t, 200, total["spend"])
	assert.EqualValues(t, 8, total["cost_per_result"]) // 200 / 25

	rec, _ = doRequest(t, srv, http.MethodGet, "/metrics?platform=google", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsSnapshotPath(t *testing.T) {
	store := &fakeStore{
		leadTotal: 40,
		snapToday: repo.SnapshotAgg{Spend: 11, Opportunities: 2, SalesCount: 1, Revenue: 500},
		snapRange: repo.SnapshotAgg{Spend: 300, Opportunities: 9, SalesCount: 4, Revenue: 2000},
	}
	srv := newTestServer(t, store, config.Config{})

	_, body := doRequest(t, srv, http.MethodGet, "/metrics?objective=ALL&status=ALL", "", nil)
	today := body["today"].(map[string]any)
	total := body["total"].(map[string]any)

	assert.EqualValues(t, 2, today["opportunities"])
	assert.EqualValues(t, 2000, total["revenue"])
	// Snapshot spend fills in only when the ad_spend sum is empty.
	assert.EqualValues(t, 11, today["spend"])
	assert.EqualValues(t, 300, total["spend"])
}

func TestSyncDisabledRoute(t *testing.T) {
	srv := newTestServer(t, &fakeStore{}, config.Config{})
	rec, _ := doRequest(t, srv, http.MethodPost, "/sync", "", nil)
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestSyncNowUnconfiguredBeforeGate(t *testing.T) {
	srv := newTestServer(t, &fakeStore{}, config.Config{})
	rec, _ := doRequest(t, srv, http.MethodPost, "/sync-now", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	// The failed call must not have consumed the rate-limit slot.
	assert.True(t, srv.syncGate.allow(time.Minute))
}

func TestSyncNowRateLimited(t *testing.T) {
	graph := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"data":[]}`)
	}))
	defer graph.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := &fakeStore{}
	client := meta.New(meta.Config{AccessToken: "t", AdAccountID: "1", BaseURL: graph.URL}, logger, nil, nil)

	srv := New("127.0.0.1:0", logger, metrics.Registry("test"), Dependencies{
		Store:    store,
		MetaSync: meta.NewSyncer(client, store, logger, nil),
		Config:   config.Config{SyncMinInterval: time.Minute},
	})

	rec, body := doRequest(t, srv, http.MethodPost, "/sync-now", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, body, "meta")
	assert.Equal(t, map[string]any{}, body["whatsapp"])

	rec, body = doRequest(t, srv, http.MethodPost, "/sync-now", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, rateLimitedMsg, body["error"])
}

func TestWhatsAppSyncUnconfigured(t *testing.T) {
	srv := newTestServer(t, &fakeStore{}, config.Config{})
	rec, _ := doRequest(t, srv, http.MethodPost, "/whatsapp/sync", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec, _ = doRequest(t, srv, http.MethodGet, "/whatsapp/test", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
