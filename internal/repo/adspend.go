package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"adtrack/internal/report"
)

// adColumns whitelists the summable ad_spend measure columns. Query text is
// built from this map only; user input never reaches the SQL.
var adColumns = map[string]string{
	"spend":                 "spend",
	"impressions":           "impressions",
	"link_clicks":           "link_clicks",
	"conversations_started": "conversations_started",
}

// levelColumns maps breakdown levels to their grouping column.
var levelColumns = map[string]string{
	"campaign": "campaign",
	"adset":    "ad_set",
	"ad":       "ad_name",
}

// ValidLevel reports whether level names a supported breakdown.
func ValidLevel(level string) bool {
	_, ok := levelColumns[level]
	return ok
}

// DailySpend returns per-day spend sums for the trailing window.
func (r *Repository) DailySpend(ctx context.Context, days int) ([]report.SpendPoint, error) {
	const q = `
SELECT metric_date::text, COALESCE(SUM(spend), 0)::double precision AS spend
FROM ad_spend
WHERE metric_date >= CURRENT_DATE - $1::integer
GROUP BY metric_date
ORDER BY metric_date;
`
	rows, err := r.pool.Query(ctx, q, days)
	if err != nil {
		return nil, fmt.Errorf("daily spend: %w", err)
	}
	defer rows.Close()

	var points []report.SpendPoint
	for rows.Next() {
		var p report.SpendPoint
		if err := rows.Scan(&p.Date, &p.Spend); err != nil {
			return nil, fmt.Errorf("scan daily spend: %w", err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate daily spend: %w", err)
	}
	return points, nil
}

// SumAdColumn sums one measure column for a single date and for all time.
// Callers treat a failure here as "column unavailable" and keep going.
func (r *Repository) SumAdColumn(ctx context.Context, column, date string) (today, total float64, err error) {
	col, ok := adColumns[column]
	if !ok {
		return 0, 0, fmt.Errorf("unknown ad_spend column %q", column)
	}

	todaySQL := fmt.Sprintf(`SELECT COALESCE(SUM(%s), 0)::double precision FROM ad_spend WHERE metric_date = $1;`, col)
	if err := r.pool.QueryRow(ctx, todaySQL, date).Scan(&today); err != nil {
		return 0, 0, fmt.Errorf("sum %s for %s: %w", col, date, err)
	}
	totalSQL := fmt.Sprintf(`SELECT COALESCE(SUM(%s), 0)::double precision FROM ad_spend;`, col)
	if err := r.pool.QueryRow(ctx, totalSQL).Scan(&total); err != nil {
		return 0, 0, fmt.Errorf("sum %s total: %w", col, err)
	}
	return today, total, nil
}

// InsightBreakdown groups ad_spend by the level's name column. Quantity per
// group counts distinct (lead source_id, date) pairs whose ad-spend row at
// that date carries the group's name: attribution by name+date, not by key.
func (r *Repository) InsightBreakdown(ctx context.Context, level string, dateFrom, dateTo *string) ([]InsightGroup, error) {
	col, ok := levelColumns[level]
	if !ok {
		return nil, fmt.Errorf("unknown breakdown level %q", level)
	}

	args := []any{}
	dateWhere := ""
	if dateFrom != nil {
		args = append(args, *dateFrom)
		dateWhere += fmt.Sprintf(" AND fa.metric_date >= $%d", len(args))
	}
	if dateTo != nil {
		args = append(args, *dateTo)
		dateWhere += fmt.Sprintf(" AND fa.metric_date <= $%d", len(args))
	}

	q := fmt.Sprintf(`
SELECT
    COALESCE(TRIM(fa.%[1]s), '') AS id,
    COALESCE(TRIM(fa.%[1]s), '—') AS name,
    (
        SELECT COUNT(*)::bigint FROM (
            SELECT DISTINCT wa.source_id, (wa.created_at AT TIME ZONE '%[2]s')::date
            FROM whatsapp_leads AS wa
            INNER JOIN ad_spend AS fa2
                ON fa2.source_id = wa.source_id
               AND fa2.metric_date = (wa.created_at AT TIME ZONE '%[2]s')::date
               AND fa2.%[1]s = fa.%[1]s
        ) lead_keys
    ) AS quantity,
    COALESCE(SUM(fa.spend), 0)::double precision AS spend,
    COALESCE(SUM(fa.impressions), 0)::bigint AS impressions,
    COALESCE(SUM(fa.link_clicks), 0)::bigint AS clicks
FROM ad_spend AS fa
WHERE (fa.%[1]s IS NOT NULL AND TRIM(fa.%[1]s) <> '')%[3]s
GROUP BY fa.%[1]s
ORDER BY spend DESC NULLS LAST, name;`, col, saoPauloTZ, dateWhere)

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("insight breakdown %s: %w", level, err)
	}
	defer rows.Close()

	var groups []InsightGroup
	for rows.Next() {
		var g InsightGroup
		if err := rows.Scan(&g.ID, &g.Name, &g.Quantity, &g.Spend, &g.Impressions, &g.Clicks); err != nil {
			return nil, fmt.Errorf("scan insight group: %w", err)
		}
		if g.ID == "" {
			g.ID = g.Name
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate insight groups: %w", err)
	}
	return groups, nil
}

// UpsertAdSpend writes day-granular insight rows keyed by (source_id, date).
func (r *Repository) UpsertAdSpend(ctx context.Context, rows []AdSpendRow) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	const q = `
INSERT INTO ad_spend (source_id, metric_date, campaign, ad_set, ad_name, spend, impressions, link_clicks, conversations_started, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
ON CONFLICT (source_id, metric_date) DO UPDATE SET
    campaign = EXCLUDED.campaign,
    ad_set = EXCLUDED.ad_set,
    ad_name = EXCLUDED.ad_name,
    spend = EXCLUDED.spend,
    impressions = EXCLUDED.impressions,
    link_clicks = EXCLUDED.link_clicks,
    conversations_started = EXCLUDED.conversations_started,
    updated_at = NOW();
`
	err := r.WithTx(ctx, func(tx pgx.Tx) error {
		for _, row := range rows {
			if _, err := tx.Exec(ctx, q,
				row.SourceID, row.MetricDate, row.Campaign, row.AdSet, row.AdName,
				row.Spend, row.Impressions, row.LinkClicks, row.ConversationsStarted,
			); err != nil {
				return fmt.Errorf("upsert ad spend %s/%s: %w", row.SourceID, row.MetricDate, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}
