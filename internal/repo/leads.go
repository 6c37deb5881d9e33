package repo

import (
	"context"
	"fmt"
	"time"

	"adtrack/internal/report"
)

const saoPauloTZ = "America/Sao_Paulo"

// ListLeads returns lead rows with a non-null source id, newest first, each
// soft-joined to its ad-spend match on (source_id, local date). There is no
// foreign key; rows without a match keep null campaign/ad-set/creative.
func (r *Repository) ListLeads(ctx context.Context, f LeadFilter) ([]LeadItem, error) {
	q := fmt.Sprintf(`
SELECT wa.name, wa.surname, wa.created_at, wa.source_id, wa.ctwa_clid, wa.platform,
       wa.message, wa.cta, wa.source_url,
       fa.campaign, fa.ad_set, fa.ad_name
FROM whatsapp_leads AS wa
LEFT JOIN ad_spend AS fa
    ON fa.source_id = wa.source_id
   AND fa.metric_date = (wa.created_at AT TIME ZONE '%s')::date
WHERE wa.source_id IS NOT NULL`, saoPauloTZ)

	args := []any{}
	if !f.AllDates {
		args = append(args, f.Start, f.End)
		q += fmt.Sprintf(" AND wa.created_at >= $%d AND wa.created_at < $%d", len(args)-1, len(args))
	}
	if f.Platform != nil {
		args = append(args, *f.Platform)
		q += fmt.Sprintf(" AND wa.platform = $%d", len(args))
	}
	q += " ORDER BY wa.created_at DESC"

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	defer rows.Close()

	var items []LeadItem
	for rows.Next() {
		var it LeadItem
		var createdAt time.Time
		if err := rows.Scan(
			&it.Name, &it.Surname, &createdAt, &it.SourceID, &it.CtwaClid, &it.Platform,
			&it.Message, &it.CTA, &it.SourceURL,
			&it.Campaign, &it.AdSet, &it.Creative,
		); err != nil {
			return nil, fmt.Errorf("scan lead: %w", err)
		}
		it.CreatedAt = createdAt.UTC().Format(time.RFC3339)
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate leads: %w", err)
	}
	return items, nil
}

// LeadCounts returns the number of attributed leads within [start, end) and
// the all-time total. Platform is deliberately not filtered so the counts
// match the listing.
func (r *Repository) LeadCounts(ctx context.Context, start, end time.Time) (today, total int64, err error) {
	const todaySQL = `
SELECT COUNT(*) FROM whatsapp_leads
WHERE created_at >= $1 AND created_at < $2 AND source_id IS NOT NULL;
`
	if err := r.pool.QueryRow(ctx, todaySQL, start, end).Scan(&today); err != nil {
		return 0, 0, fmt.Errorf("count leads today: %w", err)
	}
	const totalSQL = `SELECT COUNT(*) FROM whatsapp_leads WHERE source_id IS NOT NULL;`
	if err := r.pool.QueryRow(ctx, totalSQL).Scan(&total); err != nil {
		return 0, 0, fmt.Errorf("count leads total: %w", err)
	}
	return today, total, nil
}

// DailyLeads returns per-day attributed lead counts for the trailing window.
func (r *Repository) DailyLeads(ctx context.Context, days int) ([]report.LeadPoint, error) {
	q := fmt.Sprintf(`
SELECT ((wa.created_at AT TIME ZONE '%s')::date)::text AS metric_date, COUNT(*)::bigint AS leads
FROM whatsapp_leads AS wa
WHERE wa.source_id IS NOT NULL
  AND (wa.created_at AT TIME ZONE '%s')::date >= CURRENT_DATE - $1::integer
GROUP BY (wa.created_at AT TIME ZONE '%s')::date
ORDER BY metric_date;`, saoPauloTZ, saoPauloTZ, saoPauloTZ)

	rows, err := r.pool.Query(ctx, q, days)
	if err != nil {
		return nil, fmt.Errorf("daily leads: %w", err)
	}
	defer rows.Close()

	var points []report.LeadPoint
	for rows.Next() {
		var p report.LeadPoint
		if err := rows.Scan(&p.Date, &p.Leads); err != nil {
			return nil, fmt.Errorf("scan daily leads: %w", err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate daily leads: %w", err)
	}
	return points, nil
}
