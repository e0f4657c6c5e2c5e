// Package inventory holds naming rules applied before products are matched,
// so "Green_Apples", "green apple" and "green-apples" land on one row.
package inventory

import "strings"

// NormalizeProductName canonicalizes a model-produced ingredient name:
// lowercase, separators to spaces, punctuation stripped, whitespace
// collapsed, and the last word singularized.
func NormalizeProductName(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.ReplaceAll(s, "_", " ")
	s = strings.ReplaceAll(s, "-", " ")

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == ' ' {
			b.WriteRune(r)
		}
	}
	s = b.String()

	words := strings.Fields(s)
	if len(words) == 0 {
		return ""
	}
	words[len(words)-1] = singularize(words[len(words)-1])
	return strings.Join(words, " ")
}

// singularize handles common English plurals; a heuristic, not a lexicon.
func singularize(w string) string {
	switch {
	case len(w) > 3 && strings.HasSuffix(w, "ies"):
		return w[:len(w)-3] + "y"
	case len(w) > 2 && (strings.HasSuffix(w, "ches") ||
		strings.HasSuffix(w, "shes") ||
		strings.HasSuffix(w, "xes") ||
		strings.HasSuffix(w, "ses") ||
		strings.HasSuffix(w, "zes")):
		return w[:len(w)-2]
	case len(w) > 1 && strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss"):
		return w[:len(w)-1]
	default:
		return w
	}
}
