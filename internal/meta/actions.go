package meta

import (
	"strconv"
	"strings"
)

// conversationActionTypes lists every historical tag the platform has used
// for "messaging conversation started". Counts are summed across all of
// them to tolerate taxonomy drift.
var conversationActionTypes = map[string]struct{}{
	"onsite_conversion.messaging_conversation_started_7d": {},
	"messaging_conversation_started_7d":                   {},
	"onsite_conversion.messaging_conversation_started":    {},
	"messaging_conversation_started":                      {},
}

// LeadCount extracts the value of the action tagged "lead", zero if absent.
func LeadCount(actions []Action) int64 {
	for _, a := range actions {
		if strings.ToLower(a.ActionType) == "lead" {
			n, err := strconv.ParseInt(a.Value, 10, 64)
			if err != nil {
				return 0
			}
			return n
		}
	}
	return 0
}

// ConversionValue extracts the value of the first action whose tag contains
// "purchase" (which also covers "omni_purchase"), zero if absent.
func ConversionValue(actions []Action) float64 {
	for _, a := range actions {
		tag := strings.ToLower(a.ActionType)
		if strings.Contains(tag, "purchase") {
			v, err := strconv.ParseFloat(a.Value, 64)
			if err != nil {
				return 0
			}
			return v
		}
	}
	return 0
}

// ConversationCount sums the values of every recognised conversation-started
// action tag.
func ConversationCount(actions []Action) int64 {
	var sum int64
	for _, a := range actions {
		if _, ok := conversationActionTypes[strings.ToLower(a.ActionType)]; !ok {
			continue
		}
		if n, err := strconv.ParseInt(a.Value, 10, 64); err == nil {
			sum += n
		}
	}
	return sum
}
