package sqlgen

import (
	"strconv"
	"strings"

	"github.com/askql-systems/askql/pkg/types"
)

// renderValue renders the right-hand side of a comparison: a variable
// reference verbatim, an array as a parenthesized comma list, or a scalar.
func renderValue(v types.FilterValue) (string, error) {
	switch v.Kind {
	case types.ValueVar:
		if v.Var == "" {
			return "", compileErrorf("variable reference has empty name")
		}
		return v.Var, nil
	case types.ValueArray:
		parts := make([]string, 0, len(v.Array))
		for _, item := range v.Array {
			s, err := renderScalar(item)
			if err != nil {
				return "", err
			}
			parts = append(parts, s)
		}
		return "(" + strings.Join(parts, ", ") + ")", nil
	default:
		return renderScalar(v.Literal)
	}
}

// renderScalar renders a single literal. Strings are single-quoted with
// internal quotes doubled; numbers, booleans, and NULL render unquoted.
func renderScalar(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "NULL", nil
	case bool:
		if t {
			return "TRUE", nil
		}
		return "FALSE", nil
	case string:
		return quoteString(t), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case map[string]any:
		if name, ok := t["var"].(string); ok && len(t) == 1 {
			return name, nil
		}
		return "", compileErrorf("unsupported literal shape %T", v)
	default:
		return "", compileErrorf("unsupported literal type %T", v)
	}
}

func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
