package records

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"baserow-bridge/internal/baserow"
)

func TestFilter_NestedValue(t *testing.T) {
	rows := []baserow.Row{
		{"id": json.Number("1"), "status": map[string]interface{}{"value": "x"}},
		{"id": json.Number("2"), "status": map[string]interface{}{"value": "y"}},
		{"id": json.Number("3"), "status": map[string]interface{}{"value": "x"}},
	}

	result := NewFilter("status", "x", MatchValue, nil).Apply(rows)
	require.Len(t, result.Rows, 2)
	assert.Equal(t, json.Number("1"), result.Rows[0].ID())
	assert.Equal(t, json.Number("3"), result.Rows[1].ID())
	assert.Equal(t, map[string]int{"x": 2, "y": 1}, result.Distribution)
}

func TestFilter_ScalarStatus(t *testing.T) {
	rows := []baserow.Row{
		{"id": 1, "field_23": "get monthly traffic"},
		{"id": 2, "field_23": "done"},
		{"id": 3, "field_23": "Get Monthly Traffic"},
	}

	result := NewFilter("field_23", "get monthly traffic", MatchValue, nil).Apply(rows)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, 1, result.Rows[0].ID())
}

func TestFilter_ByOptionID(t *testing.T) {
	rows := []baserow.Row{
		{"id": 1, "status": map[string]interface{}{"id": json.Number("3069"), "value": "a"}},
		{"id": 2, "status": map[string]interface{}{"id": json.Number("3070"), "value": "b"}},
		{"id": 3, "status": json.Number("3069")},
	}

	result := NewFilter("status", "3069", MatchID, nil).Apply(rows)
	require.Len(t, result.Rows, 2)
	assert.Equal(t, 1, result.Rows[0].ID())
	assert.Equal(t, 3, result.Rows[1].ID())
}

func TestFilter_MalformedStatusExcluded(t *testing.T) {
	rows := []baserow.Row{
		{"id": 1},
		{"id": 2, "status": nil},
		{"id": 3, "status": []interface{}{"x"}},
		{"id": 4, "status": map[string]interface{}{"color": "red"}},
		{"id": 5, "status": "x"},
	}

	filter := NewFilter("status", "x", MatchValue, nil)
	result := filter.Apply(rows)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, 5, result.Rows[0].ID())
	assert.Equal(t, 4, result.Distribution[NoStatus])

	assert.False(t, filter.Matches(rows[0]))
	assert.True(t, filter.Matches(rows[4]))
}

func TestFilter_EmptyInput(t *testing.T) {
	result := NewFilter("status", "x", MatchValue, nil).Apply(nil)
	assert.Empty(t, result.Rows)
	assert.Empty(t, result.Distribution)
}
