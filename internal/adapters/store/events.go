package store

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mailvet/mailvet/internal/core"
)

// eventPayload is the wire form of a history event inside the SQL stores.
type eventPayload struct {
	Timestamp time.Time `json:"timestamp"`
	Event     string    `json:"event"`
}

func encodeEvent(event core.HistoryEvent) (string, error) {
	raw, err := json.Marshal(eventPayload{Timestamp: event.Timestamp, Event: event.Event})
	if err != nil {
		return "", fmt.Errorf("failed to encode history event: %w", err)
	}
	return string(raw), nil
}

// decodeEvent parses a stored history payload. Payloads that picked up
// garbage around the JSON object, from interrupted writes or manual edits,
// are repaired by extracting the outermost object before giving up.
func decodeEvent(raw string) (core.HistoryEvent, error) {
	var p eventPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		repaired, ok := extractObject(raw)
		if !ok {
			return core.HistoryEvent{}, fmt.Errorf("failed to decode history event: %w", err)
		}
		if err := json.Unmarshal([]byte(repaired), &p); err != nil {
			return core.HistoryEvent{}, fmt.Errorf("failed to decode history event: %w", err)
		}
	}
	return core.HistoryEvent{Timestamp: p.Timestamp, Event: p.Event}, nil
}

// extractObject pulls the first balanced top-level JSON object out of raw.
func extractObject(raw string) (string, bool) {
	start := strings.IndexByte(raw, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(raw); i++ {
		c := raw[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			escaped = inString
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return raw[start : i+1], true
				}
			}
		}
	}
	return "", false
}

func encodeDetails(details map[string]string) (string, error) {
	if len(details) == 0 {
		return "", nil
	}
	raw, err := json.Marshal(details)
	if err != nil {
		return "", fmt.Errorf("failed to encode result details: %w", err)
	}
	return string(raw), nil
}
