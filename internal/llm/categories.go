package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/olliezdai13/SmartFridge/constants"
	"github.com/olliezdai13/SmartFridge/internal/common"
)

// ParseCategories decodes a categorization reply for the given product batch.
// The reply must cover every product and nothing else; any extra key, missing
// key, or out-of-enum value fails the whole batch so a flaky reply never
// half-applies.
func ParseCategories(raw string, products []string) (map[string]constants.Category, error) {
	text := StripCodeFences(raw)
	if text == "" {
		return nil, common.ValidationError("model returned empty output", nil)
	}

	var m map[string]string
	if err := json.Unmarshal([]byte(text), &m); err != nil {
		return nil, common.ValidationError("categorization output is not a JSON object of strings", err)
	}

	want := make(map[string]struct{}, len(products))
	for _, p := range products {
		want[p] = struct{}{}
	}

	out := make(map[string]constants.Category, len(products))
	for name, value := range m {
		if _, ok := want[name]; !ok {
			return nil, common.ValidationError(fmt.Sprintf("unexpected product %q in categorization output", name), nil)
		}
		cat, ok := constants.Canonicalize(strings.TrimSpace(value))
		if !ok {
			return nil, common.ValidationError(fmt.Sprintf("product %q got unknown category %q", name, value), nil)
		}
		out[name] = cat
	}
	for _, p := range products {
		if _, ok := out[p]; !ok {
			return nil, common.ValidationError(fmt.Sprintf("product %q missing from categorization output", p), nil)
		}
	}
	return out, nil
}
