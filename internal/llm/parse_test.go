package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olliezdai13/SmartFridge/internal/common"
)

func TestStripCodeFences(t *testing.T) {
	assert.Equal(t, `{"milk": 2}`, StripCodeFences("```json\n{\"milk\": 2}\n```"))
	assert.Equal(t, `{"milk": 2}`, StripCodeFences("```\n{\"milk\": 2}\n```"))
	assert.Equal(t, `{"milk": 2}`, StripCodeFences(`{"milk": 2}`))
	assert.Equal(t, "", StripCodeFences("```json\n```"))
}

func TestParseItems_CountMap(t *testing.T) {
	items, err := ParseItems(`{"milk": 2, "eggs": 12}`, nil)
	require.NoError(t, err)
	require.Len(t, items, 2)

	byName := map[string]int{}
	for _, it := range items {
		byName[it.Name] = it.Quantity
	}
	assert.Equal(t, 2, byName["milk"])
	assert.Equal(t, 12, byName["eggs"])
}

func TestParseItems_ObjectList(t *testing.T) {
	raw := `{"items":[{"name":"milk","quantity":2},{"name":"butter"}]}`
	items, err := ParseItems(raw, nil)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "milk", items[0].Name)
	assert.Equal(t, 2, items[0].Quantity)
	// missing quantity defaults to one
	assert.Equal(t, "butter", items[1].Name)
	assert.Equal(t, 1, items[1].Quantity)
}

func TestParseItems_BareArray(t *testing.T) {
	raw := `[{"name":"apple","quantity":3}]`
	items, err := ParseItems(raw, nil)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "apple", items[0].Name)
	assert.Equal(t, 3, items[0].Quantity)
}

func TestParseItems_FencedPayload(t *testing.T) {
	items, err := ParseItems("```json\n{\"milk\": 1}\n```", nil)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "milk", items[0].Name)
}

func TestParseItems_DropsUnusableKeepsRest(t *testing.T) {
	raw := `{"items":[{"name":"milk","quantity":2},{"name":"","quantity":5},{"name":"juice","quantity":"lots"}]}`
	items, err := ParseItems(raw, nil)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "milk", items[0].Name)
}

func TestParseItems_QuantityCoercion(t *testing.T) {
	items, err := ParseItems(`{"milk": 1.5, "eggs": "3", "rice": 0.4, "jam": 0, "oil": -2}`, nil)
	require.NoError(t, err)

	byName := map[string]int{}
	for _, it := range items {
		byName[it.Name] = it.Quantity
	}
	// half rounds up, numeric strings parse, non-positive floors to one
	assert.Equal(t, 2, byName["milk"])
	assert.Equal(t, 3, byName["eggs"])
	assert.Equal(t, 1, byName["rice"])
	assert.Equal(t, 1, byName["jam"])
	assert.Equal(t, 1, byName["oil"])
}

func TestParseItems_ZeroQuantityKept(t *testing.T) {
	items, err := ParseItems(`{"items":[{"name":"milk","quantity":0}]}`, nil)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "milk", items[0].Name)
	assert.Equal(t, 1, items[0].Quantity)
}

func TestParseItems_ItemsWithSiblingKeys(t *testing.T) {
	raw := `{"items":[{"name":"milk","quantity":2}],"note":"shelf was dark"}`
	items, err := ParseItems(raw, nil)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "milk", items[0].Name)
	assert.Equal(t, 2, items[0].Quantity)
}

func TestParseItems_NumericItemsKeyIsAnIngredient(t *testing.T) {
	items, err := ParseItems(`{"items": 3, "milk": 2}`, nil)
	require.NoError(t, err)
	byName := map[string]int{}
	for _, it := range items {
		byName[it.Name] = it.Quantity
	}
	assert.Equal(t, 3, byName["items"])
	assert.Equal(t, 2, byName["milk"])
}

func TestParseItems_NotJSON(t *testing.T) {
	_, err := ParseItems("I see milk and eggs in the fridge.", nil)
	require.Error(t, err)
	assert.True(t, common.IsValidation(err))
}

func TestParseItems_NoUsableItems(t *testing.T) {
	_, err := ParseItems(`{"": 2, "milk": "plenty"}`, nil)
	require.Error(t, err)
	assert.True(t, common.IsValidation(err))
}

func TestParseItems_EmptyOutput(t *testing.T) {
	_, err := ParseItems("   ", nil)
	require.Error(t, err)
	assert.True(t, common.IsValidation(err))
}

func TestParseItems_RawPayloadRetained(t *testing.T) {
	items, err := ParseItems(`{"items":[{"name":"milk","quantity":2}]}`, nil)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.JSONEq(t, `{"name":"milk","quantity":2}`, string(items[0].RawPayload))
}
