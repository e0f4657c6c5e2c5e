package llm

import (
	"strings"

	"github.com/olliezdai13/SmartFridge/constants"
)

// DefaultSystemPrompt is used when a snapshot carries no custom prompt.
const DefaultSystemPrompt = `List all ingredients in this fridge in JSON format {"ingredient": #, ...} where # is the count of that ingredient. Use simple, singular, lowercase ingredient names. Return ONLY the JSON object, no other text.`

// BuildCategorizationPrompt asks the model to assign every product exactly one
// category from the fixed enum. The reply must be a JSON object keyed by the
// product names given, values drawn from the enum.
func BuildCategorizationPrompt(products []string) string {
	var b strings.Builder
	b.WriteString("You are a grocery categorizer. Assign each product below exactly one category from this enum: ")
	b.WriteString(strings.Join(constants.AsStringSlice(), ", "))
	b.WriteString(".\n")
	b.WriteString("Guidance: ")
	var guide []string
	for _, c := range constants.AsStringSlice() {
		if label, ok := constants.CategoryLabels[constants.Category(c)]; ok {
			guide = append(guide, c+" = "+label)
		}
	}
	b.WriteString(strings.Join(guide, "; "))
	b.WriteString(". If nothing fits, use 'other'.\n\n")
	b.WriteString("Products:\n")
	for _, p := range products {
		b.WriteString("- ")
		b.WriteString(p)
		b.WriteString("\n")
	}
	b.WriteString("\nReturn ONLY a JSON object mapping every product name above (exact spelling) to its category. No other text.")
	return b.String()
}
