package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"adtrack/internal/ingest"
)

// SaveIngestBatch persists one normalized batch inside a single transaction:
// audit row first, then snapshot/UTM/lead upserts, then the status flip to
// processed. Any failure rolls the whole batch back. Returns the job id.
func (r *Repository) SaveIngestBatch(ctx context.Context, rawPayload []byte, records []ingest.Record) (string, error) {
	if len(records) == 0 {
		return "", fmt.Errorf("no records to save")
	}

	now := time.Now().UTC()
	var jobID string

	err := r.WithTx(ctx, func(tx pgx.Tx) error {
		const jobSQL = `
INSERT INTO ingestion_jobs (source, payload, status)
VALUES ($1, $2, 'received')
RETURNING id;
`
		if err := tx.QueryRow(ctx, jobSQL, records[0].Source, rawPayload).Scan(&jobID); err != nil {
			return fmt.Errorf("insert ingestion job: %w", err)
		}
		if jobID == "" {
			return fmt.Errorf("ingestion job insert returned no id")
		}

		const snapshotSQL = `
INSERT INTO metric_snapshots (metric_date, platform, spend, leads, opportunities, sales_count, revenue, source, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (metric_date, platform) DO UPDATE SET
    spend = EXCLUDED.spend,
    leads = EXCLUDED.leads,
    opportunities = EXCLUDED.opportunities,
    sales_count = EXCLUDED.sales_count,
    revenue = EXCLUDED.revenue,
    source = EXCLUDED.source,
    updated_at = EXCLUDED.updated_at;
`
		const utmSQL = `
INSERT INTO utm_metrics (metric_date, platform, utm_campaign, leads, source, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (metric_date, platform, utm_campaign) DO UPDATE SET
    leads = EXCLUDED.leads,
    source = EXCLUDED.source,
    updated_at = EXCLUDED.updated_at;
`
		for _, rec := range records {
			if _, err := tx.Exec(ctx, snapshotSQL,
				rec.MetricDate, rec.Platform, rec.Spend, rec.Leads, rec.Opportunities, rec.SalesCount, rec.Revenue, rec.Source, now,
			); err != nil {
				return fmt.Errorf("upsert metric snapshot %s/%s: %w", rec.MetricDate, rec.Platform, err)
			}

			for _, utm := range rec.UTMBreakdown {
				if _, err := tx.Exec(ctx, utmSQL,
					rec.MetricDate, rec.Platform, utm.UTMCampaign, utm.Leads, rec.Source, now,
				); err != nil {
					return fmt.Errorf("upsert utm metric %s: %w", utm.UTMCampaign, err)
				}
			}

			for _, msg := range rec.LeadMessages {
				phone := ingest.PhoneHash(rec.Platform, msg.LeadName, msg.MessageAt)
				lead := LeadUpsert{
					Phone:         phone,
					TransactionID: ingest.TransactionID("ingest", phone),
					CreatedAt:     msg.MessageAt,
					SourceID:      msg.AdCreative,
					Name:          msg.LeadName,
					Platform:      rec.Platform,
				}
				if err := upsertLead(ctx, tx, lead); err != nil {
					return err
				}
			}
		}

		if _, err := tx.Exec(ctx, `UPDATE ingestion_jobs SET status = 'processed' WHERE id = $1`, jobID); err != nil {
			return fmt.Errorf("mark ingestion job processed: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return jobID, nil
}

// upsertLead writes one lead row. The conflict path deliberately refreshes
// only created_at, source_id and name; message body and the other columns
// keep their first-seen values.
func upsertLead(ctx context.Context, tx pgx.Tx, lead LeadUpsert) error {
	const q = `
INSERT INTO whatsapp_leads (phone, transaction_id, created_at, source_id, name, platform, message, cta, ctwa_clid, source_url)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (phone) DO UPDATE SET
    created_at = EXCLUDED.created_at,
    source_id = EXCLUDED.source_id,
    name = EXCLUDED.name;
`
	if _, err := tx.Exec(ctx, q,
		lead.Phone, lead.TransactionID, lead.CreatedAt, lead.SourceID, lead.Name, lead.Platform,
		lead.Message, lead.CTA, lead.CtwaClid, lead.SourceURL,
	); err != nil {
		return fmt.Errorf("upsert lead %s: %w", lead.Phone, err)
	}
	return nil
}

// UpsertLeads writes a batch of lead rows outside the ingest flow (used by
// the messaging sync). Same conflict semantics as the ingest path. Returns
// the number of rows written.
func (r *Repository) UpsertLeads(ctx context.Context, leads []LeadUpsert) (int, error) {
	if len(leads) == 0 {
		return 0, nil
	}
	err := r.WithTx(ctx, func(tx pgx.Tx) error {
		for _, lead := range leads {
			if err := upsertLead(ctx, tx, lead); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(leads), nil
}
