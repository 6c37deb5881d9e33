package repo

import "time"

// LeadUpsert carries one lead row for the idempotent phone-hash upsert. The
// optional columns are written on first insert only; the conflict path never
// touches them.
type LeadUpsert struct {
	Phone         string
	TransactionID string
	CreatedAt     string
	SourceID      *string
	Name          string
	Platform      string

	Message   *string
	CTA       *string
	CtwaClid  *string
	SourceURL *string
}

// LeadFilter narrows the lead listing.
type LeadFilter struct {
	// Platform filters by platform tag; nil means all platforms.
	Platform *string
	// Start/End bound the message timestamp; AllDates skips the bound.
	Start    time.Time
	End      time.Time
	AllDates bool
}

// LeadItem is one listed lead row joined against its ad-spend match.
type LeadItem struct {
	Name      *string `json:"name"`
	Surname   *string `json:"surname"`
	CreatedAt string  `json:"created_at"`
	SourceID  *string `json:"source_id"`
	CtwaClid  *string `json:"ctwa_clid"`
	Platform  *string `json:"platform"`
	Message   *string `json:"message"`
	CTA       *string `json:"cta"`
	SourceURL *string `json:"source_url"`
	Campaign  *string `json:"campaign"`
	AdSet     *string `json:"ad_set"`
	Creative  *string `json:"creative"`
}

// SnapshotAgg sums the measure columns of metric_snapshots rows.
type SnapshotAgg struct {
	Spend         float64
	Leads         float64
	Opportunities float64
	SalesCount    float64
	Revenue       float64
}

// InsightGroup is one grouped breakdown row for a campaign, ad set or ad.
type InsightGroup struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Quantity    int64   `json:"quantity"`
	Spend       float64 `json:"spend"`
	Impressions int64   `json:"impressions"`
	Clicks      int64   `json:"clicks"`
}

// AdSpendRow is one day-granular ad-spend record keyed by (source_id, date).
type AdSpendRow struct {
	SourceID             string
	MetricDate           string
	Campaign             string
	AdSet                string
	AdName               string
	Spend                float64
	Impressions          int64
	LinkClicks           int64
	ConversationsStarted int64
}
