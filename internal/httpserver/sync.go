package httpserver

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"adtrack/internal/cache"
)

const syncLockKey = "adtrack:sync:lock"

// rateLimitedMsg matches what the dashboard shows on a throttled trigger.
const rateLimitedMsg = "Sync recently triggered. Please wait a minute and try again."

// syncGate is the in-process fallback for the sync rate limit, used only
// when Redis is absent or failing. The Redis lock is authoritative because
// it holds across instances.
type syncGate struct {
	mu   sync.Mutex
	last time.Time
}

func (g *syncGate) allow(interval time.Duration) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := time.Now()
	if now.Sub(g.last) < interval {
		return false
	}
	g.last = now
	return true
}

// acquireSyncSlot enforces the minimum interval between sync triggers.
func (s *Server) acquireSyncSlot(r *http.Request) bool {
	interval := s.deps.Config.SyncMinInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ok, err := s.deps.Redis.AcquireLock(r.Context(), syncLockKey, interval)
	if err != nil {
		if !errors.Is(err, cache.ErrUnavailable) {
			s.logger.Warn("sync lock via redis failed, falling back to local gate", "error", err)
		}
		return s.syncGate.allow(interval)
	}
	return ok
}

// handleSyncNow triggers the combined ads + messaging sync.
func (s *Server) handleSyncNow(w http.ResponseWriter, r *http.Request) {
	if s.deps.MetaSync == nil {
		writeError(w, http.StatusServiceUnavailable, "ads platform credentials not configured")
		return
	}
	if !s.acquireSyncSlot(r) {
		writeError(w, http.StatusTooManyRequests, rateLimitedMsg)
		return
	}

	days := 7
	if v, err := strconv.Atoi(strings.TrimSpace(r.URL.Query().Get("days"))); err == nil && v > 0 {
		days = v
	}

	metaResult, err := s.deps.MetaSync.Run(r.Context(), days)
	if err != nil {
		s.logger.Error("ads sync failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	response := map[string]any{"meta": metaResult}
	if s.deps.WASync != nil {
		waResult, err := s.deps.WASync.SyncDay(r.Context(), "")
		if err != nil {
			s.logger.Error("messaging sync failed", "error", err)
			response["whatsapp"] = map[string]any{"error": err.Error()}
		} else {
			response["whatsapp"] = waResult
		}
	} else {
		response["whatsapp"] = map[string]any{}
	}
	writeJSON(w, http.StatusOK, response)
}

// handleSyncDisabled answers the legacy standalone ads-sync trigger, which
// is intentionally not implemented; /sync-now is the supported path.
func (s *Server) handleSyncDisabled(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusNotImplemented, "standalone ads sync is not implemented; use /sync-now")
}

// handleWhatsAppSync pulls one local day of messaging leads.
func (s *Server) handleWhatsAppSync(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		writeError(w, http.StatusUnauthorized, "invalid ingestion key")
		return
	}
	if s.deps.WASync == nil {
		writeError(w, http.StatusServiceUnavailable, "messaging platform credentials not configured")
		return
	}

	date := strings.TrimSpace(r.URL.Query().Get("date"))
	result, err := s.deps.WASync.SyncDay(r.Context(), date)
	if err != nil {
		s.logger.Error("messaging sync failed", "error", err, "date", date)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":       true,
		"inserted": result.LeadsUpserted,
		"date":     result.Date,
	})
}

// handleWhatsAppTest probes the configured business account and lists its
// phone numbers, so the operator can fill in the phone-number-id variables.
func (s *Server) handleWhatsAppTest(w http.ResponseWriter, r *http.Request) {
	if s.deps.WAClient == nil || !s.deps.WAClient.Configured() {
		writeError(w, http.StatusServiceUnavailable, "META_ACCESS_TOKEN not set")
		return
	}
	wabaID := s.deps.Config.WhatsAppBusinessAccountID
	if wabaID == "" {
		writeError(w, http.StatusServiceUnavailable, "WHATSAPP_BUSINESS_ACCOUNT_ID not set")
		return
	}

	info, err := s.deps.WAClient.AccountInfo(r.Context(), wabaID)
	if err != nil {
		s.logger.Error("messaging account probe failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":            true,
		"waba_id":       info.ID,
		"name":          info.Name,
		"phone_numbers": info.PhoneNumbers,
		"instructions":  "Set WHATSAPP_PHONE_NUMBER_ID_1 and WHATSAPP_PHONE_NUMBER_ID_2 to the ids above.",
	})
}
