package pricing

import (
	"encoding/json"
	"fmt"
	"strings"
)

// IsTruthy is the single predicate deciding whether a pack flag is enabled.
// Truthy values are boolean true, the strings "true" and "1", and the number 1.
// Strings are compared after trimming surrounding whitespace. Other fmt.Stringer values are
// judged by their string form. Everything else, including nil, is false.
func IsTruthy(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case *bool:
		return val != nil && *val
	case string:
		s := strings.TrimSpace(val)
		return s == "1" || s == "true"
	case *string:
		return val != nil && IsTruthy(*val)
	case json.Number:
		f, err := val.Float64()
		return err == nil && f == 1
	case float64:
		return val == 1
	case float32:
		return val == 1
	case int:
		return val == 1
	case int64:
		return val == 1
	case int32:
		return val == 1
	case uint:
		return val == 1
	case uint64:
		return val == 1
	case fmt.Stringer:
		return IsTruthy(val.String())
	default:
		return false
	}
}
