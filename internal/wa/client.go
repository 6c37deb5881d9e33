package wa

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

	"adtrack/internal/metrics"
)

const defaultBaseURL = "https://graph.facebook.com/v21.0"

// ErrNotConfigured indicates the client was built without credentials.
var ErrNotConfigured = errors.New("whatsapp client not configured")

// Client reads messaging data from the Graph cloud API.
type Client struct {
	logger  *slog.Logger
	baseURL string
	token   string
	http    *http.Client
	metrics *metrics.Metrics
}

// Config holds messaging client configuration. The token is the same Graph
// access token the ads client uses.
type Config struct {
	AccessToken string
	BaseURL     string
	Timeout     time.Duration
}

// New creates a messaging API client.
func New(cfg Config, logger *slog.Logger, metrics *metrics.Metrics) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		logger:  logger.With("component", "whatsapp"),
		baseURL: base,
		token:   cfg.AccessToken,
		http:    &http.Client{Timeout: timeout},
		metrics: metrics,
	}
}

// Configured reports whether the client carries a token.
func (c *Client) Configured() bool {
	return c != nil && c.token != ""
}

// Text is the body of a text message.
type Text struct {
	Body string `json:"body"`
}

// Referral carries click-to-WhatsApp attribution attached to a message.
type Referral struct {
	SourceURL  string `json:"source_url,omitempty"`
	SourceID   string `json:"source_id,omitempty"`
	SourceType string `json:"source_type,omitempty"`
	Headline   string `json:"headline,omitempty"`
	Body       string `json:"body,omitempty"`
	CtwaClid   string `json:"ctwa_clid,omitempty"`
}

// Message is one inbound message entry.
type Message struct {
	ID        string    `json:"id"`
	From      string    `json:"from"`
	Timestamp string    `json:"timestamp"`
	Type      string    `json:"type"`
	Text      *Text     `json:"text,omitempty"`
	Referral  *Referral `json:"referral,omitempty"`
}

// Contact maps a sender id to its profile name.
type Contact struct {
	WaID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

type phoneEnvelope struct {
	Messages *struct {
		Data []Message `json:"data"`
	} `json:"messages"`
	Contacts *struct {
		Data []Contact `json:"data"`
	} `json:"contacts"`
}

// DayMessages fetches the inbound messages and contact profiles of one phone
// number within a unix-seconds window.
func (c *Client) DayMessages(ctx context.Context, phoneNumberID string, since, until int64) ([]Message, []Contact, error) {
	fields := fmt.Sprintf(
		"messages.since(%d).until(%d){id,from,timestamp,type,text,referral},contacts{wa_id,profile}",
		since, until)
	params := url.Values{}
	params.Set("fields", fields)

	var env phoneEnvelope
	if err := c.get(ctx, "/"+phoneNumberID, params, &env); err != nil {
		return nil, nil, err
	}

	var msgs []Message
	if env.Messages != nil {
		msgs = env.Messages.Data
	}
	var contacts []Contact
	if env.Contacts != nil {
		contacts = env.Contacts.Data
	}
	return msgs, contacts, nil
}

// PhoneNumber is one registered business phone number.
type PhoneNumber struct {
	ID                 string `json:"id"`
	DisplayPhoneNumber string `json:"display_phone_number"`
	VerifiedName       string `json:"verified_name"`
	QualityRating      string `json:"quality_rating,omitempty"`
}

// AccountInfo summarizes one business account and its phone numbers, used by
// the connectivity check endpoint.
type AccountInfo struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	PhoneNumbers []PhoneNumber `json:"phone_numbers"`
}

// AccountInfo fetches the business account and its registered numbers.
func (c *Client) AccountInfo(ctx context.Context, businessAccountID string) (AccountInfo, error) {
	params := url.Values{}
	params.Set("fields", "id,name")
	var info AccountInfo
	if err := c.get(ctx, "/"+businessAccountID, params, &info); err != nil {
		return AccountInfo{}, err
	}

	numParams := url.Values{}
	numParams.Set("fields", "id,display_phone_number,verified_name,quality_rating")
	var listing struct {
		Data []PhoneNumber `json:"data"`
	}
	if err := c.get(ctx, "/"+businessAccountID+"/phone_numbers", numParams, &listing); err != nil {
		return AccountInfo{}, err
	}
	info.PhoneNumbers = listing.Data
	return info, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, dest any) error {
	if !c.Configured() {
		return ErrNotConfigured
	}
	if params == nil {
		params = url.Values{}
	}
	params.Set("access_token", c.token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		if c.metrics != nil {
			c.metrics.WARequests.WithLabelValues("error").Inc()
		}
		return fmt.Errorf("whatsapp request: %w", err)
	}
	defer res.Body.Close()

	if c.metrics != nil {
		c.metrics.WARequests.WithLabelValues(fmt.Sprintf("%d", res.StatusCode)).Inc()
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if res.StatusCode >= 400 {
		var env struct {
			Error *struct {
				Message string `json:"message"`
				Code    int    `json:"code"`
			} `json:"error"`
		}
		_ = json.Unmarshal(body, &env)
		if env.Error != nil {
			return fmt.Errorf("whatsapp %s error: %s (code=%d)", path, env.Error.Message, env.Error.Code)
		}
		return fmt.Errorf("whatsapp %s error: status=%d body=%s", path, res.StatusCode, strings.TrimSpace(string(body)))
	}
	if dest == nil {
		return nil
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
