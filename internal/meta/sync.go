package meta

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"log/slog"

	"adtrack/internal/metrics"
	"adtrack/internal/repo"
	"adtrack/internal/tz"
)

// SyncResult summarizes one ad-spend sync run.
type SyncResult struct {
	Since        string `json:"since"`
	Until        string `json:"until"`
	RowsFetched  int    `json:"rows_fetched"`
	RowsUpserted int    `json:"rows_upserted"`
}

// Syncer pulls ad-level insights from the Graph API and persists them as
// day-granular ad_spend rows.
type Syncer struct {
	client  *Client
	store   repo.Store
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewSyncer wires the insight sync job.
func NewSyncer(client *Client, store repo.Store, logger *slog.Logger, metrics *metrics.Metrics) *Syncer {
	return &Syncer{
		client:  client,
		store:   store,
		logger:  logger.With("component", "meta-sync"),
		metrics: metrics,
	}
}

// Run fetches ad-level insight rows for the trailing window ending today
// (dashboard timezone) and upserts them. Ad and campaign names come from the
// insight rows themselves; the listings backfill names for rows the API
// returns without them.
func (s *Syncer) Run(ctx context.Context, days int) (SyncResult, error) {
	if days <= 0 {
		days = 7
	}
	until := tz.Today()
	sinceT := time.Now().In(tz.Zone).AddDate(0, 0, -(days - 1))
	win := InsightsWindow{Since: sinceT.Format("2006-01-02"), Until: until}
	result := SyncResult{Since: win.Since, Until: win.Until}

	rows, err := s.client.AdInsights(ctx, win)
	if err != nil {
		s.fail()
		return result, fmt.Errorf("fetch ad insights: %w", err)
	}
	result.RowsFetched = len(rows)
	if len(rows) == 0 {
		s.ok()
		return result, nil
	}

	campaignNames, adSetNames, adNames, err := s.nameMaps(ctx)
	if err != nil {
		// Names are cosmetic; the sync proceeds with whatever the
		// insight rows carry.
		s.logger.Warn("listing fetch failed, using insight-row names only", "error", err)
	}

	upserts := make([]repo.AdSpendRow, 0, len(rows))
	for _, row := range rows {
		if row.AdID == "" || row.DateStart == "" {
			continue
		}
		u := repo.AdSpendRow{
			SourceID:             row.AdID,
			MetricDate:           row.DateStart,
			Campaign:             firstNonEmpty(row.CampaignName, campaignNames[row.CampaignID]),
			AdSet:                firstNonEmpty(row.AdSetName, adSetNames[row.AdSetID]),
			AdName:               firstNonEmpty(row.AdName, adNames[row.AdID]),
			Spend:                parseFloat(row.Spend),
			Impressions:          parseInt(row.Impressions),
			LinkClicks:           parseInt(row.Clicks),
			ConversationsStarted: ConversationCount(row.Actions),
		}
		upserts = append(upserts, u)
	}

	n, err := s.store.UpsertAdSpend(ctx, upserts)
	if err != nil {
		s.fail()
		return result, fmt.Errorf("upsert ad spend: %w", err)
	}
	result.RowsUpserted = n
	s.ok()
	s.logger.Info("ad spend synced",
		"since", win.Since, "until", win.Until,
		"fetched", result.RowsFetched, "upserted", result.RowsUpserted)
	return result, nil
}

func (s *Syncer) nameMaps(ctx context.Context) (campaigns, adSets, ads map[string]string, err error) {
	cs, err := s.client.Campaigns(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	campaigns = make(map[string]string, len(cs))
	for _, c := range cs {
		campaigns[c.ID] = c.Name
	}

	sets, err := s.client.AdSets(ctx)
	if err != nil {
		return campaigns, nil, nil, err
	}
	adSets = make(map[string]string, len(sets))
	for _, a := range sets {
		adSets[a.ID] = a.Name
	}

	list, err := s.client.Ads(ctx)
	if err != nil {
		return campaigns, adSets, nil, err
	}
	ads = make(map[string]string, len(list))
	for _, a := range list {
		ads[a.ID] = a.Name
	}
	return campaigns, adSets, ads, nil
}

func (s *Syncer) ok() {
	if s.metrics != nil {
		s.metrics.SyncRuns.WithLabelValues("meta", "ok").Inc()
	}
}

func (s *Syncer) fail() {
	if s.metrics != nil {
		s.metrics.SyncRuns.WithLabelValues("meta", "error").Inc()
		s.metrics.Errors.WithLabelValues("meta-sync").Inc()
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}

func parseInt(s string) int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0
	}
	return v
}
