package llm

import (
	"encoding/json"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/olliezdai13/SmartFridge/internal/common"
)

// ParsedItem is one inventory line recovered from the model's reply.
type ParsedItem struct {
	Name     string
	Quantity int
	// RawPayload is the item's original JSON fragment, retained for audit.
	RawPayload []byte
}

// StripCodeFences removes a leading/trailing markdown fence (``` or ```json)
// that vision models frequently wrap JSON in.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// drop the language tag on the opening fence, if any
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		first := strings.TrimSpace(s[:idx])
		if first == "" || isFenceTag(first) {
			s = s[idx+1:]
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func looksLikeArray(s string) bool {
	return strings.HasPrefix(s, "[")
}

func isFenceTag(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

// ParseItems decodes the model reply into inventory items. Three shapes are
// accepted: {"items":[{"name":...,"quantity":...},...]}, a bare array of the
// same objects, or an object map {"milk": 2, ...}. Items with an empty name
// or a quantity that is not numeric at all are dropped; a missing or
// non-positive quantity means 1. Zero usable items is a validation error.
func ParseItems(raw string, logger *slog.Logger) ([]ParsedItem, error) {
	if logger == nil {
		logger = slog.Default()
	}
	text := StripCodeFences(raw)
	if text == "" {
		return nil, common.ValidationError("model returned empty output", nil)
	}

	var items []ParsedItem
	var dropped int

	switch {
	case looksLikeArray(text):
		var arr []json.RawMessage
		if err := json.Unmarshal([]byte(text), &arr); err != nil {
			return nil, common.ValidationError("model output is not valid JSON", err)
		}
		items, dropped = parseItemObjects(arr)
	default:
		var obj map[string]json.RawMessage
		if err := json.Unmarshal([]byte(text), &obj); err != nil {
			return nil, common.ValidationError("model output is not valid JSON", err)
		}
		// An "items" array wins even when the model added sibling keys like
		// "note". A numeric "items" value is just an ingredient count.
		if inner, ok := obj["items"]; ok && looksLikeArray(strings.TrimSpace(string(inner))) {
			var arr []json.RawMessage
			if err := json.Unmarshal(inner, &arr); err != nil {
				return nil, common.ValidationError("items field is not an array", err)
			}
			items, dropped = parseItemObjects(arr)
		} else {
			items, dropped = parseCountMap(obj)
		}
	}

	if dropped > 0 {
		logger.Warn("llm.parse.items_dropped", "dropped", dropped, "kept", len(items))
	}
	if len(items) == 0 {
		return nil, common.ValidationError("no usable items in model output", nil)
	}
	return items, nil
}

// parseItemObjects handles the [{"name":...,"quantity":...}] shape.
func parseItemObjects(arr []json.RawMessage) ([]ParsedItem, int) {
	items := make([]ParsedItem, 0, len(arr))
	dropped := 0
	for _, frag := range arr {
		var rec struct {
			Name     string          `json:"name"`
			Quantity json.RawMessage `json:"quantity"`
		}
		if err := json.Unmarshal(frag, &rec); err != nil {
			dropped++
			continue
		}
		name := strings.TrimSpace(rec.Name)
		if name == "" {
			dropped++
			continue
		}
		qty := 1
		if len(rec.Quantity) > 0 {
			q, ok := coerceQuantity(rec.Quantity)
			if !ok {
				dropped++
				continue
			}
			qty = q
		}
		items = append(items, ParsedItem{Name: name, Quantity: qty, RawPayload: append([]byte(nil), frag...)})
	}
	return items, dropped
}

// parseCountMap handles the {"milk": 2} shape the default prompt asks for.
func parseCountMap(obj map[string]json.RawMessage) ([]ParsedItem, int) {
	items := make([]ParsedItem, 0, len(obj))
	dropped := 0
	for name, rawQty := range obj {
		name = strings.TrimSpace(name)
		if name == "" {
			dropped++
			continue
		}
		qty, ok := coerceQuantity(rawQty)
		if !ok {
			dropped++
			continue
		}
		payload, _ := json.Marshal(map[string]json.RawMessage{name: rawQty})
		items = append(items, ParsedItem{Name: name, Quantity: qty, RawPayload: payload})
	}
	return items, dropped
}

// coerceQuantity accepts JSON numbers and numeric strings. Fractions round
// half up; a non-positive quantity is floored to 1 rather than dropping the
// item the model saw.
func coerceQuantity(raw json.RawMessage) (int, bool) {
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	q := int(math.Floor(f + 0.5))
	if q < 1 {
		q = 1
	}
	return q, true
}
