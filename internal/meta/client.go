package meta

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"log/slog"

	"adtrack/internal/cache"
	"adtrack/internal/metrics"
)

const (
	defaultBaseURL   = "https://graph.facebook.com/v21.0"
	defaultListLimit = "100"
	defaultBudgetTTL = 2 * time.Minute
	maxInsightPages  = 50
)

var (
	// ErrNotConfigured indicates the client was built without credentials.
	ErrNotConfigured = errors.New("meta client not configured")
	// ErrTokenRejected indicates the Graph API refused the access token.
	ErrTokenRejected = errors.New("meta access token rejected")
	// ErrRateLimited indicates the Graph API throttled the request.
	ErrRateLimited = errors.New("meta rate limited")
)

// Client provides typed access to the Graph marketing API.
type Client struct {
	logger    *slog.Logger
	baseURL   string
	token     string
	accountID string
	http      *http.Client
	metrics   *metrics.Metrics
	cache     *cache.Redis
	budgetTTL time.Duration
}

// Config holds Graph client configuration.
type Config struct {
	AccessToken string
	AdAccountID string
	BaseURL     string
	Timeout     time.Duration
}

// New creates a Graph API client. AdAccountID may be passed with or without
// the "act_" prefix.
func New(cfg Config, logger *slog.Logger, metrics *metrics.Metrics, redis *cache.Redis) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		logger:    logger.With("component", "meta"),
		baseURL:   base,
		token:     cfg.AccessToken,
		accountID: ensureActPrefix(cfg.AdAccountID),
		http:      &http.Client{Timeout: timeout},
		metrics:   metrics,
		cache:     redis,
		budgetTTL: defaultBudgetTTL,
	}
}

// Configured reports whether the client carries credentials.
func (c *Client) Configured() bool {
	return c != nil && c.token != "" && c.accountID != "act_"
}

func ensureActPrefix(id string) string {
	id = strings.TrimSpace(id)
	if strings.HasPrefix(id, "act_") {
		return id
	}
	return "act_" + id
}

// Campaigns lists every campaign of the ad account, following pagination.
func (c *Client) Campaigns(ctx context.Context) ([]Campaign, error) {
	params := url.Values{}
	params.Set("fields", "id,account_id,name,status,objective,created_time")
	params.Set("limit", defaultListLimit)
	raws, err := c.getAll(ctx, "/"+c.accountID+"/campaigns", params)
	if err != nil {
		return nil, err
	}
	out := make([]Campaign, 0, len(raws))
	for _, raw := range raws {
		var v Campaign
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decode campaign: %w", err)
		}
		out = append(out, v)
	}
	return out, nil
}

// AdSets lists every ad set of the ad account, following pagination.
func (c *Client) AdSets(ctx context.Context) ([]AdSet, error) {
	params := url.Values{}
	params.Set("fields", "id,account_id,campaign_id,name,status,created_time")
	params.Set("limit", defaultListLimit)
	raws, err := c.getAll(ctx, "/"+c.accountID+"/adsets", params)
	if err != nil {
		return nil, err
	}
	out := make([]AdSet, 0, len(raws))
	for _, raw := range raws {
		var v AdSet
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decode adset: %w", err)
		}
		out = append(out, v)
	}
	return out, nil
}

// Ads lists every ad of the ad account, following pagination.
func (c *Client) Ads(ctx context.Context) ([]Ad, error) {
	params := url.Values{}
	params.Set("fields", "id,account_id,campaign_id,adset_id,name,status,created_time")
	params.Set("limit", defaultListLimit)
	raws, err := c.getAll(ctx, "/"+c.accountID+"/ads", params)
	if err != nil {
		return nil, err
	}
	out := make([]Ad, 0, len(raws))
	for _, raw := range raws {
		var v Ad
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decode ad: %w", err)
		}
		out = append(out, v)
	}
	return out, nil
}

// InsightsWindow names an inclusive since/until day range (YYYY-MM-DD).
type InsightsWindow struct {
	Since string
	Until string
}

func (c *Client) insights(ctx context.Context, level, fields string, win InsightsWindow, extra url.Values) ([]json.RawMessage, error) {
	params := url.Values{}
	params.Set("level", level)
	params.Set("fields", fields)
	params.Set("time_increment", "1")
	params.Set("limit", defaultListLimit)
	params.Set("time_range", fmt.Sprintf(`{"since":"%s","until":"%s"}`, win.Since, win.Until))
	for key, vals := range extra {
		for _, v := range vals {
			params.Add(key, v)
		}
	}
	return c.getAll(ctx, "/"+c.accountID+"/insights", params)
}

// CampaignInsights returns day-granular campaign-level insight rows.
func (c *Client) CampaignInsights(ctx context.Context, win InsightsWindow) ([]InsightRow, error) {
	raws, err := c.insights(ctx, "campaign",
		"campaign_id,campaign_name,spend,impressions,clicks,actions,date_start,date_stop", win, nil)
	if err != nil {
		return nil, err
	}
	return decodeInsightRows(raws)
}

// AdSetInsights returns day-granular ad-set-level insight rows.
func (c *Client) AdSetInsights(ctx context.Context, win InsightsWindow) ([]InsightRow, error) {
	raws, err := c.insights(ctx, "adset",
		"campaign_id,adset_id,adset_name,spend,impressions,clicks,actions,date_start,date_stop", win, nil)
	if err != nil {
		return nil, err
	}
	return decodeInsightRows(raws)
}

// AdInsights returns day-granular ad-level insight rows. These feed the
// ad_spend table, keyed by ad id and day.
func (c *Client) AdInsights(ctx context.Context, win InsightsWindow) ([]InsightRow, error) {
	raws, err := c.insights(ctx, "ad",
		"campaign_id,adset_id,ad_id,ad_name,spend,impressions,clicks,actions,date_start,date_stop", win, nil)
	if err != nil {
		return nil, err
	}
	return decodeInsightRows(raws)
}

// PlatformInsights returns campaign-level rows broken down by publisher
// platform (facebook, instagram, ...).
func (c *Client) PlatformInsights(ctx context.Context, win InsightsWindow) ([]PlatformInsightRow, error) {
	extra := url.Values{}
	extra.Set("breakdowns", "publisher_platform")
	raws, err := c.insights(ctx, "campaign",
		"campaign_id,spend,impressions,clicks,actions,date_start,date_stop", win, extra)
	if err != nil {
		return nil, err
	}
	out := make([]PlatformInsightRow, 0, len(raws))
	for _, raw := range raws {
		var v PlatformInsightRow
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decode platform insight: %w", err)
		}
		out = append(out, v)
	}
	return out, nil
}

func decodeInsightRows(raws []json.RawMessage) ([]InsightRow, error) {
	out := make([]InsightRow, 0, len(raws))
	for _, raw := range raws {
		var v InsightRow
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decode insight row: %w", err)
		}
		out = append(out, v)
	}
	return out, nil
}

// getAll fetches the first page via path+params and then follows paging.next
// URLs until exhausted. A hard page cap guards against pathological cursors.
func (c *Client) getAll(ctx context.Context, path string, params url.Values) ([]json.RawMessage, error) {
	var all []json.RawMessage

	var pg page
	if err := c.get(ctx, path, params, &pg); err != nil {
		return nil, err
	}
	all = append(all, pg.Data...)

	for i := 0; i < maxInsightPages; i++ {
		if pg.Paging == nil || pg.Paging.Next == "" {
			return all, nil
		}
		next := pg.Paging.Next
		pg = page{}
		if err := c.getURL(ctx, path, next, &pg); err != nil {
			return nil, err
		}
		all = append(all, pg.Data...)
	}
	c.logger.Warn("pagination cap reached", "path", path, "pages", maxInsightPages)
	return all, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, dest any) error {
	if !c.Configured() {
		return ErrNotConfigured
	}
	if params == nil {
		params = url.Values{}
	}
	params.Set("access_token", c.token)
	return c.getURL(ctx, path, c.baseURL+path+"?"+params.Encode(), dest)
}

// getURL performs one GET against a fully-built URL. endpoint labels metrics
// with the logical path, never the token-bearing query string.
func (c *Client) getURL(ctx context.Context, endpoint, fullURL string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	res, err := c.http.Do(req)
	if err != nil {
		if c.metrics != nil {
			c.metrics.MetaRequests.WithLabelValues(endpoint, "error").Inc()
		}
		return fmt.Errorf("meta request: %w", err)
	}
	defer res.Body.Close()

	statusLabel := fmt.Sprintf("%d", res.StatusCode)
	if c.metrics != nil {
		c.metrics.MetaRequests.WithLabelValues(endpoint, statusLabel).Inc()
		c.metrics.MetaLatency.WithLabelValues(endpoint, statusLabel).Observe(time.Since(start).Seconds())
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if res.StatusCode >= 400 {
		return c.classifyError(endpoint, res.StatusCode, body)
	}
	if dest == nil {
		return nil
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) classifyError(endpoint string, status int, body []byte) error {
	var env errorEnvelope
	_ = json.Unmarshal(body, &env)
	if env.Error != nil {
		e := env.Error
		c.logger.Warn("graph api error",
			"endpoint", endpoint, "status", status,
			"code", e.Code, "subcode", e.ErrorSubcode, "message", e.Message)
		switch {
		case status == http.StatusUnauthorized || e.Code == 190:
			return fmt.Errorf("%w: %s (code=%d)", ErrTokenRejected, e.Message, e.Code)
		case status == http.StatusTooManyRequests || e.Code == 613 || e.Code == 17 || e.Code == 4:
			return fmt.Errorf("%w: %s (code=%d)", ErrRateLimited, e.Message, e.Code)
		}
		return fmt.Errorf("meta %s error: %s (code=%d)", endpoint, e.Message, e.Code)
	}
	return fmt.Errorf("meta %s error: status=%d body=%s", endpoint, status, strings.TrimSpace(string(body)))
}
