package records

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Match modes for StatusExtractor
const (
	MatchValue = "value"
	MatchID    = "id"
)

// StatusExtractor pulls a comparable scalar out of a status cell. A scalar
// cell is returned as is; an object cell (a single-select option) yields its
// Key entry. Lists, null and objects without Key yield ok == false.
type StatusExtractor struct {
	Key string
}

// NewStatusExtractor returns the extractor for a match mode. Unknown modes
// fall back to MatchValue.
func NewStatusExtractor(mode string) StatusExtractor {
	if strings.EqualFold(mode, MatchID) {
		return StatusExtractor{Key: MatchID}
	}
	return StatusExtractor{Key: MatchValue}
}

// Extract returns the scalar carried by cell.
func (e StatusExtractor) Extract(cell interface{}) (interface{}, bool) {
	switch v := cell.(type) {
	case nil:
		return nil, false
	case []interface{}:
		return nil, false
	case map[string]interface{}:
		inner, ok := v[e.Key]
		if !ok || !isScalar(inner) {
			return nil, false
		}
		return inner, true
	default:
		if !isScalar(v) {
			return nil, false
		}
		return v, true
	}
}

func isScalar(v interface{}) bool {
	switch v.(type) {
	case string, bool, json.Number, float64, float32, int, int64, int32, uint, uint64, uint32:
		return true
	default:
		return false
	}
}

// Canonical renders a scalar for comparison: strings as is, integral numbers
// without a fractional part, booleans as true/false.
func Canonical(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return strconv.FormatInt(i, 10)
		}
		if f, err := t.Float64(); err == nil {
			return formatFloat(f)
		}
		return t.String()
	case float64:
		return formatFloat(t)
	case float32:
		return formatFloat(float64(t))
	default:
		return fmt.Sprint(t)
	}
}

func formatFloat(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
