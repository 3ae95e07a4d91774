package editor

import (
	"fmt"

	"github.com/sekia-ai/edbridge/pkg/protocol"
)

func missing(field string) protocol.Response {
	return protocol.ErrorResponse(fmt.Sprintf("Missing '%s' parameter", field))
}

func invalid(field string) protocol.Response {
	return protocol.ErrorResponse(fmt.Sprintf("Invalid '%s' parameter", field))
}

func failf(format string, args ...any) protocol.Response {
	return protocol.ErrorResponse(fmt.Sprintf(format, args...))
}

func hasParam(params map[string]any, key string) bool {
	_, ok := params[key]
	return ok
}

// extractString returns a required string field. ok is false when the field
// is absent or not a string.
func extractString(params map[string]any, key string) (string, bool) {
	s, ok := params[key].(string)
	return s, ok
}

// optString returns def when key is absent. ok is false when the value is
// present with the wrong type.
func optString(params map[string]any, key, def string) (string, bool) {
	v, present := params[key]
	if !present {
		return def, true
	}
	s, ok := v.(string)
	return s, ok
}

func optBool(params map[string]any, key string, def bool) (bool, bool) {
	v, present := params[key]
	if !present {
		return def, true
	}
	b, ok := v.(bool)
	return b, ok
}

func optNumber(params map[string]any, key string, def float64) (float64, bool) {
	v, present := params[key]
	if !present {
		return def, true
	}
	return toFloat(v)
}

func optVector(params map[string]any, key string, def Vector) (Vector, bool) {
	v, present := params[key]
	if !present {
		return def, true
	}
	c, ok := triple(v)
	if !ok {
		return def, false
	}
	return Vector{X: c[0], Y: c[1], Z: c[2]}, true
}

func optRotator(params map[string]any, key string, def Rotator) (Rotator, bool) {
	v, present := params[key]
	if !present {
		return def, true
	}
	c, ok := triple(v)
	if !ok {
		return def, false
	}
	return Rotator{Pitch: c[0], Yaw: c[1], Roll: c[2]}, true
}

// triple reads a three-element numeric JSON array.
func triple(v any) ([3]float64, bool) {
	var out [3]float64
	switch arr := v.(type) {
	case []any:
		if len(arr) != 3 {
			return out, false
		}
		for i, e := range arr {
			f, ok := toFloat(e)
			if !ok {
				return out, false
			}
			out[i] = f
		}
		return out, true
	case []float64:
		if len(arr) != 3 {
			return out, false
		}
		copy(out[:], arr)
		return out, true
	default:
		return out, false
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
