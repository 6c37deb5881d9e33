package repo

import (
	"context"
	"time"

	"adtrack/internal/ingest"
	"adtrack/internal/report"
)

// Store defines the persistence surface the HTTP handlers and sync jobs
// depend on. *Repository is the Postgres implementation; tests substitute
// fakes.
type Store interface {
	Ping(ctx context.Context) error

	// Ingestion
	SaveIngestBatch(ctx context.Context, rawPayload []byte, records []ingest.Record) (string, error)
	UpsertLeads(ctx context.Context, leads []LeadUpsert) (int, error)

	// Leads
	ListLeads(ctx context.Context, f LeadFilter) ([]LeadItem, error)
	LeadCounts(ctx context.Context, start, end time.Time) (today, total int64, err error)

	// Aggregation reads
	DailySpend(ctx context.Context, days int) ([]report.SpendPoint, error)
	DailyLeads(ctx context.Context, days int) ([]report.LeadPoint, error)
	SumAdColumn(ctx context.Context, column, date string) (today, total float64, err error)
	SnapshotAggregate(ctx context.Context, platform, today string, dateFrom, dateTo *string) (todayAgg, rangeAgg SnapshotAgg, err error)
	InsightBreakdown(ctx context.Context, level string, dateFrom, dateTo *string) ([]InsightGroup, error)

	// Ad spend writes (meta sync)
	UpsertAdSpend(ctx context.Context, rows []AdSpendRow) (int, error)
}

var _ Store = (*Repository)(nil)
