package meta

import "encoding/json"

// Campaign is one campaign listing entry.
type Campaign struct {
	ID          string `json:"id"`
	AccountID   string `json:"account_id"`
	Name        string `json:"name"`
	Status      string `json:"status"`
	Objective   string `json:"objective,omitempty"`
	CreatedTime string `json:"created_time,omitempty"`
}

// AdSet is one ad-set listing entry.
type AdSet struct {
	ID          string `json:"id"`
	CampaignID  string `json:"campaign_id"`
	AccountID   string `json:"account_id"`
	Name        string `json:"name"`
	Status      string `json:"status"`
	CreatedTime string `json:"created_time,omitempty"`
}

// Ad is one ad listing entry.
type Ad struct {
	ID          string `json:"id"`
	AdSetID     string `json:"adset_id"`
	CampaignID  string `json:"campaign_id"`
	AccountID   string `json:"account_id"`
	Name        string `json:"name"`
	Status      string `json:"status"`
	CreatedTime string `json:"created_time,omitempty"`
}

// Action is one entry of the heterogeneous "actions" array on insight rows.
type Action struct {
	ActionType string `json:"action_type"`
	Value      string `json:"value"`
}

// InsightRow is one day-granular insight row at campaign, ad-set or ad
// level. Numeric fields arrive as strings from the API.
type InsightRow struct {
	CampaignID   string   `json:"campaign_id,omitempty"`
	CampaignName string   `json:"campaign_name,omitempty"`
	AdSetID      string   `json:"adset_id,omitempty"`
	AdSetName    string   `json:"adset_name,omitempty"`
	AdID         string   `json:"ad_id,omitempty"`
	AdName       string   `json:"ad_name,omitempty"`
	DateStart    string   `json:"date_start"`
	DateStop     string   `json:"date_stop"`
	Spend        string   `json:"spend,omitempty"`
	Impressions  string   `json:"impressions,omitempty"`
	Clicks       string   `json:"clicks,omitempty"`
	Actions      []Action `json:"actions,omitempty"`
}

// PlatformInsightRow is one insight row broken down by publisher platform.
type PlatformInsightRow struct {
	CampaignID        string   `json:"campaign_id,omitempty"`
	PublisherPlatform string   `json:"publisher_platform,omitempty"`
	DateStart         string   `json:"date_start"`
	DateStop          string   `json:"date_stop"`
	Spend             string   `json:"spend,omitempty"`
	Impressions       string   `json:"impressions,omitempty"`
	Clicks            string   `json:"clicks,omitempty"`
	Actions           []Action `json:"actions,omitempty"`
}

// RawBudget carries account budget fields as returned by the API, in minor
// currency units (cents). FundingSourceAmount is the one exception: it is
// already in display units. Balance is semantically "amount due", not credit.
type RawBudget struct {
	AmountSpent         float64
	Balance             *float64
	SpendCap            *float64
	Currency            string
	IsPrepayAccount     bool
	FundingSourceAmount *float64
}

// Budget is the display-unit budget exposed to callers.
type Budget struct {
	AmountSpent float64  `json:"amount_spent"`
	Balance     *float64 `json:"balance"`
	SpendCap    *float64 `json:"spend_cap"`
	Currency    string   `json:"currency"`
	Available   *float64 `json:"available"`
}

// apiError mirrors the Graph API error envelope.
type apiError struct {
	Message      string `json:"message"`
	Type         string `json:"type"`
	Code         int    `json:"code"`
	ErrorSubcode int    `json:"error_subcode,omitempty"`
	FBTraceID    string `json:"fbtrace_id,omitempty"`
}

type errorEnvelope struct {
	Error *apiError `json:"error"`
}

// page is the generic paginated listing envelope.
type page struct {
	Data   []json.RawMessage `json:"data"`
	Paging *struct {
		Next string `json:"next"`
	} `json:"paging"`
	Error *apiError `json:"error"`
}
