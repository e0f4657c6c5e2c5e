package llm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultSystemPrompt(t *testing.T) {
	assert.Contains(t, DefaultSystemPrompt, "JSON")
	assert.Contains(t, DefaultSystemPrompt, "ingredient")
}

func TestBuildCategorizationPrompt(t *testing.T) {
	p := BuildCategorizationPrompt([]string{"milk", "green apple"})

	assert.Contains(t, p, "- milk\n")
	assert.Contains(t, p, "- green apple\n")
	// every enum member is offered
	for _, c := range []string{"fruits", "vegetables", "grains", "protein_foods",
		"dairy_and_alternatives", "fats_and_oils", "processed_items", "other"} {
		assert.True(t, strings.Contains(p, c), "prompt should mention %s", c)
	}
	assert.Contains(t, p, "ONLY a JSON object")
}
