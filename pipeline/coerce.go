package pipeline

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/aluiziolira/phone-reviews/models"
)

// CoerceError reports a normalized value that does not fit its column kind.
type CoerceError struct {
	Value any
	Kind  string
}

func (e *CoerceError) Error() string {
	return fmt.Sprintf("cannot use %v (%T) as %s", e.Value, e.Value, e.Kind)
}

// dateLayouts are accepted after human dates were repaired by the parser.
var dateLayouts = []string{
	models.DateLayout,
	"2006-01-02 15:04:05",
	time.RFC3339,
	"1/2/2006",
	"01-02-06",
}

func toText(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case time.Time:
		return x.Format(models.DateLayout), nil
	case bool:
		return strconv.FormatBool(x), nil
	default:
		return "", &CoerceError{Value: v, Kind: "text"}
	}
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case int64:
		return float64(x), nil
	case string:
		f, err := strconv.ParseFloat(stripThousands(x), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, &CoerceError{Value: v, Kind: "real"}
		}
		return f, nil
	default:
		return 0, &CoerceError{Value: v, Kind: "real"}
	}
}

func toInt(v any) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case float64:
		if x != math.Trunc(x) {
			return 0, &CoerceError{Value: v, Kind: "integer"}
		}
		return int64(x), nil
	case string:
		s := stripThousands(x)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || f != math.Trunc(f) {
			return 0, &CoerceError{Value: v, Kind: "integer"}
		}
		return int64(f), nil
	default:
		return 0, &CoerceError{Value: v, Kind: "integer"}
	}
}

func toDate(v any) (time.Time, error) {
	switch x := v.(type) {
	case time.Time:
		return x, nil
	case string:
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, strings.TrimSpace(x)); err == nil {
				return t, nil
			}
		}
	}
	return time.Time{}, &CoerceError{Value: v, Kind: "date"}
}

func toBool(v any) (bool, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case int64:
		if x == 0 || x == 1 {
			return x == 1, nil
		}
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "true", "t", "yes", "y", "1":
			return true, nil
		case "false", "f", "no", "n", "0":
			return false, nil
		}
	}
	return false, &CoerceError{Value: v, Kind: "bool"}
}

func stripThousands(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), ",", "")
}
