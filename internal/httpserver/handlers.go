package httpserver

import (
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"adtrack/internal/ingest"
	"adtrack/internal/repo"
	"adtrack/internal/report"
	"adtrack/internal/tz"
)

const maxIngestBody = 4 << 20

// handleConnectionTest runs the SELECT 1 probe.
func (s *Server) handleConnectionTest(w http.ResponseWriter, r *http.Request) {
	probe := map[string]any{"ok": false, "configured": true}
	if err := s.deps.Store.Ping(r.Context()); err != nil {
		probe["error"] = err.Error()
	} else {
		probe["ok"] = true
	}
	writeJSON(w, http.StatusOK, map[string]any{"postgres": probe})
}

// handleIngest accepts a record, an array of records, or {"records": [...]},
// normalizes the batch atomically and persists it in one transaction.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		writeError(w, http.StatusUnauthorized, "invalid ingestion key")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxIngestBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	items, err := ingest.ParseBody(body)
	if err != nil {
		s.metrics.IngestBatches.WithLabelValues("invalid").Inc()
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	records, err := ingest.NormalizeBatch(items)
	if err != nil {
		s.metrics.IngestBatches.WithLabelValues("invalid").Inc()
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	jobID, err := s.deps.Store.SaveIngestBatch(r.Context(), body, records)
	if err != nil {
		s.logger.Error("ingest batch failed", "error", err, "records", len(records))
		s.metrics.IngestBatches.WithLabelValues("error").Inc()
		s.metrics.Errors.WithLabelValues("ingest").Inc()
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	utmCount := 0
	leadCount := 0
	for _, rec := range records {
		utmCount += len(rec.UTMBreakdown)
		leadCount += len(rec.LeadMessages)
	}
	s.metrics.IngestBatches.WithLabelValues("ok").Inc()
	s.metrics.IngestRecords.Add(float64(len(records)))
	if leadCount > 0 {
		s.metrics.LeadUpserts.WithLabelValues("ingest").Add(float64(leadCount))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":               true,
		"metrics_upserted": len(records),
		"utm_upserted":     utmCount,
		"job_id":           jobID,
	})
}

// handleLeads lists attributed leads for one local day (or all days) with
// their soft-joined campaign/ad-set/creative names.
func (s *Server) handleLeads(w http.ResponseWriter, r *http.Request) {
	platformParam := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("platform")))
	dateParam := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("date")))

	filter := repo.LeadFilter{}
	if platformParam != "" && platformParam != "all" {
		filter.Platform = &platformParam
	}

	date := dateParam
	switch {
	case dateParam == "all":
		filter.AllDates = true
	case dateParam == "":
		date = tz.Today()
	}
	if !filter.AllDates {
		if !tz.ValidDate(date) {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD or all")
			return
		}
		start, end, err := tz.DayBounds(date)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		filter.Start = start
		filter.End = end.Add(time.Second) // [00:00, next day 00:00) half-open window
	}

	items, err := s.deps.Store.ListLeads(r.Context(), filter)
	if err != nil {
		s.logger.Error("lead listing failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if items == nil {
		items = []repo.LeadItem{}
	}

	dateOut := date
	if filter.AllDates {
		dateOut = "all"
	}
	platformOut := platformParam
	if platformOut == "" {
		platformOut = "all"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"date":                dateOut,
		"platform":            platformOut,
		"total_conversations": len(items),
		"items":               items,
	})
}

// handleBudget returns the ads-account budget in display units.
func (s *Server) handleBudget(w http.ResponseWriter, r *http.Request) {
	if s.deps.Meta == nil || !s.deps.Meta.Configured() {
		writeError(w, http.StatusServiceUnavailable, "ads platform credentials not configured")
		return
	}
	budget, err := s.deps.Meta.Budget(r.Context(), s.deps.Config.MetaAvailableBalanceOverride)
	if err != nil {
		s.logger.Error("budget fetch failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, budget)
}

// handleInsights returns the grouped breakdown for one level plus the
// champion group name.
func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	level := strings.ToLower(strings.TrimSpace(q.Get("level")))
	if level == "" {
		level = "campaign"
	}
	if !repo.ValidLevel(level) {
		writeError(w, http.StatusBadRequest, "level must be campaign, adset or ad")
		return
	}
	dateFrom := optionalDate(q.Get("date_from"))
	dateTo := optionalDate(q.Get("date_to"))

	groups, err := s.deps.Store.InsightBreakdown(r.Context(), level, dateFrom, dateTo)
	if err != nil {
		s.logger.Error("insight breakdown failed", "error", err, "level", level)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if groups == nil {
		groups = []repo.InsightGroup{}
	}

	champGroups := make([]report.Group, 0, len(groups))
	for _, g := range groups {
		champGroups = append(champGroups, report.Group{Name: g.Name, Spend: g.Spend, Quantity: g.Quantity})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"level":     level,
		"items":     groups,
		"champion":  report.Champion(champGroups),
		"date_from": dateFrom,
		"date_to":   dateTo,
	})
}

// handleInsightDetail is a stub: the per-item modal aggregates nothing yet
// and answers zeros for a valid id.
func (s *Server) handleInsightDetail(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	id := strings.TrimSpace(q.Get("id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing id")
		return
	}
	level := strings.ToLower(strings.TrimSpace(q.Get("level")))
	if level == "" {
		level = "campaign"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"level":       level,
		"id":          id,
		"spend":       0,
		"impressions": 0,
		"clicks":      0,
		"leads":       0,
		"conversions": 0,
		"date_from":   optionalDate(q.Get("date_from")),
		"date_to":     optionalDate(q.Get("date_to")),
	})
}

// handleMetricsDaily returns the merged per-day spend/lead/CPL series for a
// trailing window plus the ranked day cards.
func (s *Server) handleMetricsDaily(w http.ResponseWriter, r *http.Request) {
	days := clampDays(r.URL.Query().Get("days"))

	spend, err := s.deps.Store.DailySpend(r.Context(), days)
	if err != nil {
		s.logger.Error("daily spend query failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	leads, err := s.deps.Store.DailyLeads(r.Context(), days)
	if err != nil {
		s.logger.Error("daily leads query failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	daily := report.MergeDaily(spend, leads)
	writeJSON(w, http.StatusOK, map[string]any{
		"daily":         daily,
		"best_day":      report.BestDay(daily),
		"worst_day":     report.WorstDay(daily),
		"top_spend_day": report.TopSpendDay(daily),
	})
}

// periodAgg is one today-or-total aggregate block of the /metrics response.
type periodAgg struct {
	Spend            float64 `json:"spend"`
	Leads            float64 `json:"leads"`
	Opportunities    float64 `json:"opportunities"`
	SalesCount       float64 `json:"sales_count"`
	Revenue          float64 `json:"revenue"`
	CostPerResult    float64 `json:"cost_per_result"`
	Impressions      float64 `json:"impressions"`
	InlineLinkClicks float64 `json:"inline_link_clicks"`
	Actions          float64 `json:"actions"`
}

// handleMetrics returns today-vs-total aggregates. Lead counts always come
// from the lead table and spend/impressions/clicks/actions from ad_spend,
// even on the snapshot path, so the cards agree with the listing.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	platform := strings.TrimSpace(q.Get("platform"))
	if platform == "" {
		platform = "meta"
	}
	if platform != "meta" {
		writeError(w, http.StatusBadRequest, "only platform=meta is supported")
		return
	}
	dateFrom := optionalDate(q.Get("date_from"))
	dateTo := optionalDate(q.Get("date_to"))
	objective := strings.ToUpper(strings.TrimSpace(q.Get("objective")))
	if objective == "" {
		objective = "ENGAGEMENT"
	}
	status := strings.ToUpper(strings.TrimSpace(q.Get("status")))
	if status == "" {
		status = "ACTIVE"
	}

	todayStr := tz.Today()
	dayStart, dayEnd, _ := tz.DayBounds(todayStr)
	leadsToday, leadsTotal, err := s.deps.Store.LeadCounts(r.Context(), dayStart, dayEnd.Add(time.Second))
	if err != nil {
		s.logger.Warn("lead count query failed", "error", err)
	}

	var today, total periodAgg
	today.Leads = float64(leadsToday)
	total.Leads = float64(leadsTotal)

	// Each ad-spend column is summed independently: one missing column must
	// not blank the others.
	sum := func(column string) (float64, float64) {
		t, tot, err := s.deps.Store.SumAdColumn(r.Context(), column, todayStr)
		if err != nil {
			s.logger.Warn("ad spend column query failed", "column", column, "error", err)
			return 0, 0
		}
		return t, tot
	}
	today.Spend, total.Spend = sum("spend")
	today.Impressions, total.Impressions = sum("impressions")
	today.InlineLinkClicks, total.InlineLinkClicks = sum("link_clicks")
	today.Actions, total.Actions = sum("conversations_started")

	if objective == "ALL" && status == "ALL" {
		todaySnap, rangeSnap, err := s.deps.Store.SnapshotAggregate(r.Context(), platform, todayStr, dateFrom, dateTo)
		if err != nil {
			s.logger.Warn("snapshot aggregate failed", "error", err)
		} else {
			today.Opportunities = todaySnap.Opportunities
			today.SalesCount = todaySnap.SalesCount
			today.Revenue = todaySnap.Revenue
			total.Opportunities = rangeSnap.Opportunities
			total.SalesCount = rangeSnap.SalesCount
			total.Revenue = rangeSnap.Revenue
			if today.Spend == 0 {
				today.Spend = todaySnap.Spend
			}
			if total.Spend == 0 {
				total.Spend = rangeSnap.Spend
			}
		}
	}

	if today.Actions > 0 {
		today.CostPerResult = today.Spend / today.Actions
	}
	if total.Actions > 0 {
		total.CostPerResult = total.Spend / total.Actions
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"today":     today,
		"total":     total,
		"platform":  platform,
		"date_from": dateFrom,
		"date_to":   dateTo,
		"objective": objective,
		"status":    status,
	})
}

// authorized checks the optional shared-secret header. An empty configured
// key disables the check.
func (s *Server) authorized(r *http.Request) bool {
	key := s.deps.Config.IngestionAPIKey
	if key == "" {
		return true
	}
	return r.Header.Get("x-ingestion-key") == key
}

func clampDays(raw string) int {
	days := 90
	if v, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil && v != 0 {
		days = v
	}
	if days < 1 {
		days = 1
	}
	if days > 365 {
		days = 365
	}
	return days
}

func optionalDate(raw string) *string {
	v := strings.TrimSpace(raw)
	if v == "" {
		return nil
	}
	return &v
}
