package repo

import (
	"context"
	"fmt"
)

// SnapshotAggregate sums metric_snapshots measures for one day and for an
// optional date range, both filtered by platform.
func (r *Repository) SnapshotAggregate(ctx context.Context, platform, today string, dateFrom, dateTo *string) (todayAgg, rangeAgg SnapshotAgg, err error) {
	const todaySQL = `
SELECT COALESCE(SUM(spend), 0), COALESCE(SUM(leads), 0), COALESCE(SUM(opportunities), 0),
       COALESCE(SUM(sales_count), 0), COALESCE(SUM(revenue), 0)
FROM metric_snapshots
WHERE platform = $1 AND metric_date = $2;
`
	if err := r.pool.QueryRow(ctx, todaySQL, platform, today).Scan(
		&todayAgg.Spend, &todayAgg.Leads, &todayAgg.Opportunities, &todayAgg.SalesCount, &todayAgg.Revenue,
	); err != nil {
		return SnapshotAgg{}, SnapshotAgg{}, fmt.Errorf("aggregate snapshots today: %w", err)
	}

	rangeSQL := `
SELECT COALESCE(SUM(spend), 0), COALESCE(SUM(leads), 0), COALESCE(SUM(opportunities), 0),
       COALESCE(SUM(sales_count), 0), COALESCE(SUM(revenue), 0)
FROM metric_snapshots
WHERE platform = $1`
	args := []any{platform}
	if dateFrom != nil {
		args = append(args, *dateFrom)
		rangeSQL += fmt.Sprintf(" AND metric_date >= $%d", len(args))
	}
	if dateTo != nil {
		args = append(args, *dateTo)
		rangeSQL += fmt.Sprintf(" AND metric_date <= $%d", len(args))
	}

	if err := r.pool.QueryRow(ctx, rangeSQL, args...).Scan(
		&rangeAgg.Spend, &rangeAgg.Leads, &rangeAgg.Opportunities, &rangeAgg.SalesCount, &rangeAgg.Revenue,
	); err != nil {
		return SnapshotAgg{}, SnapshotAgg{}, fmt.Errorf("aggregate snapshots range: %w", err)
	}
	return todayAgg, rangeAgg, nil
}
