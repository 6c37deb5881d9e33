package wa

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"log/slog"

	"adtrack/internal/ingest"
	"adtrack/internal/metrics"
	"adtrack/internal/repo"
	"adtrack/internal/tz"
)

// unknownContactName labels messages whose sender has no profile entry.
const unknownContactName = "Desconhecido"

// platformTag is the platform column value for messaging-captured leads.
// The ads and messaging sources are the same platform, so leads from both
// paths share the tag and aggregate together.
const platformTag = "meta"

// SyncResult summarizes one messaging sync run.
type SyncResult struct {
	Date          string `json:"date"`
	PhonesQueried int    `json:"phones_queried"`
	Messages      int    `json:"messages"`
	LeadsUpserted int    `json:"leads_upserted"`
}

// Syncer pulls one local day of inbound messages per registered phone number
// and upserts the senders as leads.
type Syncer struct {
	client   *Client
	store    repo.Store
	logger   *slog.Logger
	metrics  *metrics.Metrics
	phoneIDs []string
}

// NewSyncer wires the messaging sync job.
func NewSyncer(client *Client, store repo.Store, phoneIDs []string, logger *slog.Logger, metrics *metrics.Metrics) *Syncer {
	return &Syncer{
		client:   client,
		store:    store,
		logger:   logger.With("component", "wa-sync"),
		metrics:  metrics,
		phoneIDs: phoneIDs,
	}
}

// ctwaPayload is the JSON carried inside a base64 ctwa_clid token.
type ctwaPayload struct {
	AdID       string `json:"ad_id"`
	AdSetID    string `json:"adset_id"`
	CampaignID string `json:"campaign_id"`
}

// SyncDay processes the given local date (YYYY-MM-DD, defaults to today).
// A fetch failure on any phone aborts the run and reports which phone broke;
// partial lead batches from earlier phones are still persisted.
func (s *Syncer) SyncDay(ctx context.Context, date string) (SyncResult, error) {
	if date == "" {
		date = tz.Today()
	}
	start, end, err := tz.DayBounds(date)
	if err != nil {
		return SyncResult{}, err
	}
	result := SyncResult{Date: date}

	for _, phoneID := range s.phoneIDs {
		msgs, contacts, err := s.client.DayMessages(ctx, phoneID, start.Unix(), end.Unix())
		if err != nil {
			s.fail()
			return result, fmt.Errorf("fetch messages for phone %s: %w", phoneID, err)
		}
		result.PhonesQueried++
		result.Messages += len(msgs)

		names := make(map[string]string, len(contacts))
		for _, c := range contacts {
			if c.Profile.Name != "" {
				names[c.WaID] = c.Profile.Name
			}
		}

		leads := buildLeads(msgs, names, start.Unix(), end.Unix())
		if len(leads) == 0 {
			continue
		}
		n, err := s.store.UpsertLeads(ctx, leads)
		if err != nil {
			s.fail()
			return result, fmt.Errorf("upsert leads for phone %s: %w", phoneID, err)
		}
		result.LeadsUpserted += n
		if s.metrics != nil {
			s.metrics.LeadUpserts.WithLabelValues("whatsapp").Add(float64(n))
		}
	}

	if s.metrics != nil {
		s.metrics.SyncRuns.WithLabelValues("whatsapp", "ok").Inc()
	}
	s.logger.Info("messaging day synced",
		"date", date, "phones", result.PhonesQueried,
		"messages", result.Messages, "leads", result.LeadsUpserted)
	return result, nil
}

func buildLeads(msgs []Message, names map[string]string, sinceUnix, untilUnix int64) []repo.LeadUpsert {
	leads := make([]repo.LeadUpsert, 0, len(msgs))
	for _, msg := range msgs {
		if msg.From == "" || msg.Timestamp == "" {
			continue
		}
		secs, err := strconv.ParseInt(msg.Timestamp, 10, 64)
		if err != nil {
			continue
		}
		// The API is asked for the window too, but filter again here since
		// the upstream since/until handling has been observed to be loose.
		if secs < sinceUnix || secs > untilUnix {
			continue
		}
		// UTC ISO form: the identity hash depends on this exact string,
		// so the format must never change once leads exist.
		messageAt := time.Unix(secs, 0).UTC().Format(time.RFC3339)

		name := names[msg.From]
		if name == "" {
			name = unknownContactName
		}

		phone := ingest.PhoneHash(platformTag, name, messageAt)
		lead := repo.LeadUpsert{
			Phone:         phone,
			TransactionID: ingest.TransactionID("wa", phone),
			CreatedAt:     messageAt,
			Name:          name,
			Platform:      platformTag,
		}

		if msg.Text != nil && msg.Text.Body != "" {
			body := msg.Text.Body
			lead.Message = &body
		}
		if msg.Referral != nil {
			applyReferral(&lead, msg.Referral)
		}
		leads = append(leads, lead)
	}
	return leads
}

// applyReferral fills attribution columns from the click-to-WhatsApp
// referral. The ctwa_clid token, when decodable, yields the ad id used as
// source_id; otherwise the referral's own source_id is kept.
func applyReferral(lead *repo.LeadUpsert, ref *Referral) {
	if ref.CtwaClid != "" {
		clid := ref.CtwaClid
		lead.CtwaClid = &clid
		if adID := decodeCtwaAdID(clid); adID != "" {
			lead.SourceID = &adID
		}
	}
	if lead.SourceID == nil && ref.SourceID != "" {
		id := ref.SourceID
		lead.SourceID = &id
	}
	if ref.SourceURL != "" {
		u := ref.SourceURL
		lead.SourceURL = &u
	}
	if ref.Headline != "" {
		h := ref.Headline
		lead.CTA = &h
	}
}

// decodeCtwaAdID decodes the base64 click token and extracts the ad id.
// Tokens come in several encodings; every failure is swallowed since the
// token is opaque and attribution then falls back to the plain referral.
func decodeCtwaAdID(clid string) string {
	for _, dec := range []*base64.Encoding{
		base64.StdEncoding, base64.RawStdEncoding,
		base64.URLEncoding, base64.RawURLEncoding,
	} {
		raw, err := dec.DecodeString(clid)
		if err != nil {
			continue
		}
		var payload ctwaPayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			continue
		}
		if id := strings.TrimSpace(payload.AdID); id != "" {
			return id
		}
	}
	return ""
}

func (s *Syncer) fail() {
	if s.metrics != nil {
		s.metrics.SyncRuns.WithLabelValues("whatsapp", "error").Inc()
		s.metrics.Errors.WithLabelValues("wa-sync").Inc()
	}
}
