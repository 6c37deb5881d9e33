package ingest

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var dateRegex = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// UTMBreakdown is one campaign-level lead count inside a record.
type UTMBreakdown struct {
	UTMCampaign string
	Leads       float64
}

// LeadMessage is one inbound lead/message event inside a record.
type LeadMessage struct {
	LeadName     string
	MessageAt    string
	AdCreative   *string
	CampaignName *string
	Audience     *string
}

// Record is the canonical shape every ingestion payload is coerced into.
type Record struct {
	Source        string
	MetricDate    string
	Platform      string
	Spend         float64
	Leads         float64
	Opportunities float64
	SalesCount    float64
	Revenue       float64
	UTMBreakdown  []UTMBreakdown
	LeadMessages  []LeadMessage
}

type rawUTMItem struct {
	UTMCampaign json.RawMessage `json:"utm_campaign"`
	Leads       json.RawMessage `json:"leads"`
}

type rawLeadItem struct {
	LeadName     json.RawMessage `json:"lead_name"`
	MessageAt    json.RawMessage `json:"message_at"`
	AdCreative   json.RawMessage `json:"ad_creative"`
	CampaignName json.RawMessage `json:"campaign_name"`
	Audience     json.RawMessage `json:"audience"`
}

type rawRecord struct {
	Source        json.RawMessage `json:"source"`
	MetricDate    string          `json:"metric_date"`
	Platform      json.RawMessage `json:"platform"`
	Spend         json.RawMessage `json:"spend"`
	Leads         json.RawMessage `json:"leads"`
	Opportunities json.RawMessage `json:"opportunities"`
	SalesCount    json.RawMessage `json:"sales_count"`
	Revenue       json.RawMessage `json:"revenue"`
	UTMBreakdown  []rawUTMItem    `json:"utm_breakdown"`
	LeadMessages  []rawLeadItem   `json:"lead_messages"`
}

// ParseBody splits an ingestion body into raw record documents. Accepted
// shapes: a single object, an array of objects, or {"records": [...]}.
func ParseBody(body []byte) ([]json.RawMessage, error) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return nil, fmt.Errorf("invalid JSON body")
	}

	if strings.HasPrefix(trimmed, "[") {
		var items []json.RawMessage
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, fmt.Errorf("invalid JSON body")
		}
		if len(items) == 0 {
			return nil, fmt.Errorf("no records found")
		}
		return items, nil
	}

	var wrapper struct {
		Records []json.RawMessage `json:"records"`
	}
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return nil, fmt.Errorf("invalid JSON body")
	}
	if wrapper.Records != nil {
		if len(wrapper.Records) == 0 {
			return nil, fmt.Errorf("no records found")
		}
		return wrapper.Records, nil
	}
	return []json.RawMessage{json.RawMessage(body)}, nil
}

// NormalizeBatch validates and coerces a batch of raw documents. The whole
// batch fails on the first invalid record; there is no partial acceptance.
func NormalizeBatch(items []json.RawMessage) ([]Record, error) {
	records := make([]Record, 0, len(items))
	for _, item := range items {
		rec, err := NormalizeRecord(item)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// NormalizeRecord validates a single raw document and returns its canonical
// form.
func NormalizeRecord(data json.RawMessage) (Record, error) {
	var raw rawRecord
	if err := json.Unmarshal(data, &raw); err != nil {
		return Record{}, fmt.Errorf("record must be an object")
	}

	if raw.MetricDate == "" || !dateRegex.MatchString(raw.MetricDate) {
		return Record{}, fmt.Errorf("metric_date must be in YYYY-MM-DD format")
	}
	// The regex alone would let 2024-13-40 through.
	if _, err := time.Parse("2006-01-02", raw.MetricDate); err != nil {
		return Record{}, fmt.Errorf("metric_date must be in YYYY-MM-DD format")
	}

	platform := strings.TrimSpace(stringValue(raw.Platform))
	if platform == "" {
		return Record{}, fmt.Errorf("platform is required")
	}

	source := strings.TrimSpace(stringValue(raw.Source))
	if source == "" {
		source = "unknown"
	}

	rec := Record{
		Source:     source,
		MetricDate: raw.MetricDate,
		Platform:   platform,
	}

	var err error
	if rec.Spend, err = normalizeNumber(raw.Spend, "spend"); err != nil {
		return Record{}, err
	}
	if rec.Leads, err = normalizeNumber(raw.Leads, "leads"); err != nil {
		return Record{}, err
	}
	if rec.Opportunities, err = normalizeNumber(raw.Opportunities, "opportunities"); err != nil {
		return Record{}, err
	}
	if rec.SalesCount, err = normalizeNumber(raw.SalesCount, "sales_count"); err != nil {
		return Record{}, err
	}
	if rec.Revenue, err = normalizeNumber(raw.Revenue, "revenue"); err != nil {
		return Record{}, err
	}

	for _, item := range raw.UTMBreakdown {
		campaign := strings.TrimSpace(stringValue(item.UTMCampaign))
		if campaign == "" {
			continue
		}
		leads, err := normalizeNumber(item.Leads, "utm_breakdown.leads")
		if err != nil {
			return Record{}, err
		}
		rec.UTMBreakdown = append(rec.UTMBreakdown, UTMBreakdown{UTMCampaign: campaign, Leads: leads})
	}

	for _, item := range raw.LeadMessages {
		leadName := strings.TrimSpace(stringValue(item.LeadName))
		messageAt := strings.TrimSpace(stringValue(item.MessageAt))
		if leadName == "" || messageAt == "" {
			continue
		}
		rec.LeadMessages = append(rec.LeadMessages, LeadMessage{
			LeadName:     leadName,
			MessageAt:    messageAt,
			AdCreative:   optionalString(item.AdCreative),
			CampaignName: optionalString(item.CampaignName),
			Audience:     optionalString(item.Audience),
		})
	}

	return rec, nil
}

// normalizeNumber coerces a JSON value (number, numeric string, null or
// absent) to a float. Missing values count as zero; anything that does not
// coerce to a finite number fails with the field name.
func normalizeNumber(raw json.RawMessage, field string) (float64, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, nil
	}

	var num float64
	if err := json.Unmarshal(raw, &num); err == nil {
		if math.IsNaN(num) || math.IsInf(num, 0) {
			return 0, fmt.Errorf("invalid number for %s", field)
		}
		return num, nil
	}

	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		str = strings.TrimSpace(str)
		if str == "" {
			return 0, nil
		}
		parsed, err := strconv.ParseFloat(str, 64)
		if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
			return 0, fmt.Errorf("invalid number for %s", field)
		}
		return parsed, nil
	}

	return 0, fmt.Errorf("invalid number for %s", field)
}

func stringValue(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func optionalString(raw json.RawMessage) *string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
