package meta

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"log/slog"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := New(Config{
		AccessToken: "token",
		AdAccountID: "123",
		BaseURL:     srv.URL,
	}, testLogger(), nil, nil)
	return client, srv
}

func TestEnsureActPrefix(t *testing.T) {
	if got := ensureActPrefix("123"); got != "act_123" {
		t.Errorf("ensureActPrefix(123) = %q", got)
	}
	if got := ensureActPrefix("act_123"); got != "act_123" {
		t.Errorf("ensureActPrefix(act_123) = %q", got)
	}
}

func TestCampaignsFollowsPagination(t *testing.T) {
	mux := http.NewServeMux()
	var srv *httptest.Server

	mux.HandleFunc("/act_123/campaigns", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("access_token") != "token" {
			http.Error(w, "no token", http.StatusUnauthorized)
			return
		}
		fmt.Fprintf(w, `{"data":[{"id":"c1","name":"First"}],"paging":{"next":%q}}`, srv.URL+"/page2")
	})
	mux.HandleFunc("/page2", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"data":[{"id":"c2","name":"Second"}]}`)
	})

	client, s := testClient(t, mux)
	srv = s

	campaigns, err := client.Campaigns(context.Background())
	if err != nil {
		t.Fatalf("Campaigns: %v", err)
	}
	if len(campaigns) != 2 || campaigns[0].ID != "c1" || campaigns[1].ID != "c2" {
		t.Fatalf("campaigns = %+v, want both pages accumulated", campaigns)
	}
}

func TestAdInsightsDecodesRows(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/act_123/insights", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("level") != "ad" || q.Get("time_increment") != "1" {
			t.Errorf("unexpected query: %v", q)
		}
		fmt.Fprint(w, `{"data":[{
			"ad_id":"a1","ad_name":"Promo","campaign_id":"c1",
			"date_start":"2024-05-01","date_stop":"2024-05-01",
			"spend":"12.34","impressions":"100","clicks":"7",
			"actions":[{"action_type":"messaging_conversation_started_7d","value":"2"}]
		}]}`)
	})

	client, _ := testClient(t, mux)
	rows, err := client.AdInsights(context.Background(), InsightsWindow{Since: "2024-05-01", Until: "2024-05-01"})
	if err != nil {
		t.Fatalf("AdInsights: %v", err)
	}
	if len(rows) != 1 || rows[0].AdID != "a1" || rows[0].Spend != "12.34" {
		t.Fatalf("rows = %+v", rows)
	}
	if got := ConversationCount(rows[0].Actions); got != 2 {
		t.Errorf("conversation count = %d, want 2", got)
	}
}

func TestTokenRejectedError(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "Invalid OAuth access token", "code": 190},
		})
	})
	client, _ := testClient(t, handler)
	_, err := client.Campaigns(context.Background())
	if !errors.Is(err, ErrTokenRejected) {
		t.Fatalf("err = %v, want ErrTokenRejected", err)
	}
}

func TestRateLimitedError(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "User request limit reached", "code": 613},
		})
	})
	client, _ := testClient(t, handler)
	_, err := client.AdSets(context.Background())
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("err = %v, want ErrRateLimited", err)
	}
}

func TestNotConfigured(t *testing.T) {
	client := New(Config{}, testLogger(), nil, nil)
	if client.Configured() {
		t.Fatal("empty config should not count as configured")
	}
	if _, err := client.Campaigns(context.Background()); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err = %v, want ErrNotConfigured", err)
	}
}

func TestAccountBudgetRetriesWithoutFundingDetails(t *testing.T) {
	calls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/act_123", func(w http.ResponseWriter, r *http.Request) {
		calls++
		fields := r.URL.Query().Get("fields")
		if fields == accountFieldsFull {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]any{"message": "funding_source_details not allowed", "code": 100},
			})
			return
		}
		fmt.Fprint(w, `{"amount_spent":"32000","spend_cap":"50000","balance":"1000","currency":"BRL"}`)
	})

	client, _ := testClient(t, mux)
	raw, err := client.AccountBudget(context.Background())
	if err != nil {
		t.Fatalf("AccountBudget: %v", err)
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want a retry without funding details", calls)
	}
	b := DeriveBudget(raw, nil)
	if b.Available == nil || *b.Available != 180 {
		t.Fatalf("available = %v, want 180", b.Available)
	}
}
