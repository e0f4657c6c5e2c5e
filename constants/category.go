package constants

import (
	"strings"
)

// Category is the closed set of food groups a product can be assigned to.
type Category string

const (
	Fruits               Category = "fruits"
	Vegetables           Category = "vegetables"
	Grains               Category = "grains"
	ProteinFoods         Category = "protein_foods"
	DairyAndAlternatives Category = "dairy_and_alternatives"
	FatsAndOils          Category = "fats_and_oils"
	ProcessedItems       Category = "processed_items"
	OtherCategory        Category = "other"
)

var allCategories = []Category{
	Fruits,
	Vegetables,
	Grains,
	ProteinFoods,
	DairyAndAlternatives,
	FatsAndOils,
	ProcessedItems,
	OtherCategory,
}

// CategoryLabels gives a human-readable description per category, used when
// prompting the model so it maps groceries onto the enum consistently.
var CategoryLabels = map[Category]string{
	Fruits:               "Fruit, fresh or dried",
	Vegetables:           "Vegetables, salad and herbs",
	Grains:               "Cereals, breads, potatoes, pasta and rice",
	ProteinFoods:         "Meat, poultry, fish, eggs, beans and nuts",
	DairyAndAlternatives: "Milk, yogurt, cheese and plant-based alternatives",
	FatsAndOils:          "Fats, spreads and oils",
	ProcessedItems:       "Processed foods, snacks and drinks",
	OtherCategory:        "Anything that fits no other group",
}

func AsStringSlice() []string {
	result := make([]string, len(allCategories))
	for i, cat := range allCategories {
		result[i] = string(cat)
	}
	return result
}

// IsCategory reports whether the input is an exact enum member.
func IsCategory(input string) bool {
	for _, cat := range allCategories {
		if input == string(cat) {
			return true
		}
	}
	return false
}

// Canonicalize maps a label onto the enum, tolerating only case and word
// separator variations ("Protein Foods" -> protein_foods). Anything else,
// synonyms included, is rejected so the enum stays closed. The second return
// is false when no match exists and the caller got OtherCategory back.
func Canonicalize(input string) (Category, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	normalized = strings.ReplaceAll(normalized, " ", "_")
	normalized = strings.ReplaceAll(normalized, "-", "_")

	for _, cat := range allCategories {
		if normalized == string(cat) {
			return cat, true
		}
	}
	return OtherCategory, false
}
