package meta

import (
	"context"
	"encoding/json"
	"math"
	"net/url"
	"strconv"
	"strings"
)

const budgetCacheKey = "meta:budget"

// accountFields is the full field set requested for the ad account. Some
// tokens lack permission for funding_source_details, so the fetch retries
// without it on failure.
const (
	accountFieldsFull = "amount_spent,balance,spend_cap,currency,is_prepay_account,funding_source_details"
	accountFieldsBase = "amount_spent,balance,spend_cap,currency,is_prepay_account"
)

type accountEnvelope struct {
	AmountSpent          json.RawMessage `json:"amount_spent"`
	Balance              json.RawMessage `json:"balance"`
	SpendCap             json.RawMessage `json:"spend_cap"`
	Currency             string          `json:"currency"`
	IsPrepayAccount      bool            `json:"is_prepay_account"`
	FundingSourceDetails json.RawMessage `json:"funding_source_details"`
}

// AccountBudget fetches raw budget figures for the ad account. Values are in
// minor currency units as returned by the API.
func (c *Client) AccountBudget(ctx context.Context) (RawBudget, error) {
	env, err := c.fetchAccount(ctx, accountFieldsFull)
	if err != nil {
		c.logger.Warn("account fetch with funding details failed, retrying without", "error", err)
		env, err = c.fetchAccount(ctx, accountFieldsBase)
		if err != nil {
			return RawBudget{}, err
		}
	}

	raw := RawBudget{
		AmountSpent:     centValue(env.AmountSpent),
		Currency:        env.Currency,
		IsPrepayAccount: env.IsPrepayAccount,
	}
	if v, ok := optionalCentValue(env.Balance); ok {
		raw.Balance = &v
	}
	if v, ok := optionalCentValue(env.SpendCap); ok && v > 0 {
		raw.SpendCap = &v
	}
	raw.FundingSourceAmount = parseFundingDetails(env.FundingSourceDetails)
	return raw, nil
}

func (c *Client) fetchAccount(ctx context.Context, fields string) (accountEnvelope, error) {
	params := url.Values{}
	params.Set("fields", fields)
	var env accountEnvelope
	if err := c.get(ctx, "/"+c.accountID, params, &env); err != nil {
		return accountEnvelope{}, err
	}
	return env, nil
}

// Budget fetches the account budget and converts it to display units,
// deriving the available amount. Cached briefly when redis is configured.
func (c *Client) Budget(ctx context.Context, override *float64) (Budget, error) {
	if c.cache != nil && override == nil {
		var cached Budget
		ok, err := c.cache.GetJSON(ctx, budgetCacheKey, &cached)
		if err != nil {
			c.logger.Warn("read budget cache failed", "error", err)
		} else if ok {
			return cached, nil
		}
	}

	raw, err := c.AccountBudget(ctx)
	if err != nil {
		return Budget{}, err
	}
	budget := DeriveBudget(raw, override)

	if c.cache != nil && override == nil {
		if err := c.cache.SetJSON(ctx, budgetCacheKey, budget, c.budgetTTL); err != nil {
			c.logger.Warn("set budget cache failed", "error", err)
		}
	}
	return budget, nil
}

// DeriveBudget converts cent figures to display units and derives the
// available amount: explicit override first, then spend-cap headroom, then
// the funding wallet amount, then the raw balance as a last resort.
func DeriveBudget(raw RawBudget, override *float64) Budget {
	b := Budget{
		AmountSpent: raw.AmountSpent / 100,
		Currency:    raw.Currency,
	}
	if raw.Balance != nil {
		v := *raw.Balance / 100
		b.Balance = &v
	}
	if raw.SpendCap != nil {
		v := *raw.SpendCap / 100
		b.SpendCap = &v
	}

	switch {
	case override != nil:
		v := *override
		b.Available = &v
	case b.SpendCap != nil:
		v := math.Max(0, *b.SpendCap-b.AmountSpent)
		b.Available = &v
	case raw.FundingSourceAmount != nil:
		v := *raw.FundingSourceAmount
		b.Available = &v
	case b.Balance != nil:
		v := *b.Balance
		b.Available = &v
	}
	return b
}

// parseFundingDetails extracts the wallet amount, in display units, from the
// funding_source_details payload. Only funding types 2 (credit line) and 20
// (prepaid wallet) carry a usable amount. The payload may be a single object
// or an array of them.
func parseFundingDetails(raw json.RawMessage) *float64 {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	var entries []map[string]json.RawMessage
	var single map[string]json.RawMessage
	if err := json.Unmarshal(raw, &single); err == nil {
		entries = append(entries, single)
	} else if err := json.Unmarshal(raw, &entries); err != nil {
		return nil
	}

	for _, entry := range entries {
		var fundingType int
		if v, ok := fundingField(entry, "type"); ok {
			if err := json.Unmarshal(v, &fundingType); err != nil {
				var s string
				if json.Unmarshal(v, &s) == nil {
					fundingType, _ = strconv.Atoi(strings.TrimSpace(s))
				}
			}
		}
		if fundingType != 2 && fundingType != 20 {
			continue
		}

		if v, ok := fundingField(entry, "amount"); ok {
			if cents, ok := rawNumber(v); ok {
				display := cents / 100
				return &display
			}
		}
		if v, ok := fundingField(entry, "display_amount"); ok {
			var s string
			if json.Unmarshal(v, &s) == nil {
				if amount, ok := parseDisplayAmount(s); ok {
					return &amount
				}
			}
		}
	}
	return nil
}

// fundingField reads a funding-details key. The API has been seen emitting
// both lowercase and uppercase spellings of these keys.
func fundingField(entry map[string]json.RawMessage, key string) (json.RawMessage, bool) {
	if v, ok := entry[key]; ok {
		return v, true
	}
	v, ok := entry[strings.ToUpper(key)]
	return v, ok
}

// parseDisplayAmount parses a localized currency string such as
// "R$ 1.234,56" or "$1,234.56" into display units.
func parseDisplayAmount(s string) (float64, bool) {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' || r == '-' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if cleaned == "" {
		return 0, false
	}

	lastComma := strings.LastIndex(cleaned, ",")
	lastDot := strings.LastIndex(cleaned, ".")
	if lastComma > lastDot {
		// Comma is the decimal separator, dots are thousands.
		cleaned = strings.ReplaceAll(cleaned, ".", "")
		cleaned = strings.Replace(cleaned, ",", ".", 1)
	} else {
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	}

	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// centValue decodes a numeric-or-string cent figure, zero when absent.
func centValue(raw json.RawMessage) float64 {
	v, _ := optionalCentValue(raw)
	return v
}

func optionalCentValue(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false
	}
	return rawNumber(raw)
}

func rawNumber(raw json.RawMessage) (float64, bool) {
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return parsed, true
		}
	}
	return 0, false
}
