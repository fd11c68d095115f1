package validator

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"fjacquet/statement-import/internal/currencyutils"
	"fjacquet/statement-import/internal/dateutils"

	"github.com/shopspring/decimal"
)

// lookup returns the first present key among aliases.
func lookup(m map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// toDecimal accepts JSON numbers, Go numeric types, decimals and formatted strings
// such as "R$ 1.234,56" or "-10.50".
func toDecimal(v any) (decimal.Decimal, error) {
	switch n := v.(type) {
	case decimal.Decimal:
		return n, nil
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return decimal.Zero, fmt.Errorf("not a finite number")
		}
		return decimal.NewFromFloat(n), nil
	case float32:
		return toDecimal(float64(n))
	case int:
		return decimal.NewFromInt(int64(n)), nil
	case int64:
		return decimal.NewFromInt(n), nil
	case int32:
		return decimal.NewFromInt(int64(n)), nil
	case json.Number:
		return decimal.NewFromString(n.String())
	case string:
		return currencyutils.ParseAmount(n)
	default:
		return decimal.Zero, fmt.Errorf("unsupported type %T", v)
	}
}

// toFloat accepts JSON numbers, Go numeric types and numeric strings.
func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, fmt.Errorf("not a finite number")
		}
		return n, nil
	case float32:
		return toFloat(float64(n))
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	case decimal.Decimal:
		f, _ := n.Float64()
		return f, nil
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(n))
		if err != nil {
			return 0, err
		}
		f, _ := d.Float64()
		return f, nil
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
}

// toInt accepts integral numbers only.
func toInt(v any) (int, error) {
	f, err := toFloat(v)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("not an integer")
	}
	return int(f), nil
}

// toTime accepts time.Time values and date strings in any common statement layout.
// withClock reports whether the value carries a time of day; time.Time values do.
func toTime(v any) (t time.Time, withClock bool, err error) {
	switch d := v.(type) {
	case time.Time:
		return d, true, nil
	case *time.Time:
		if d == nil {
			return time.Time{}, false, fmt.Errorf("nil date")
		}
		return *d, true, nil
	case string:
		parsed, layout, err := dateutils.ParseDate(d)
		if err != nil {
			return time.Time{}, false, err
		}
		return parsed, dateutils.LayoutHasClock(layout), nil
	default:
		return time.Time{}, false, fmt.Errorf("unsupported type %T", v)
	}
}

// asObject turns a raw candidate into a field map.
func asObject(raw any) (map[string]any, bool) {
	switch r := raw.(type) {
	case map[string]any:
		return r, true
	case map[string]string:
		m := make(map[string]any, len(r))
		for k, v := range r {
			m[k] = v
		}
		return m, true
	case json.RawMessage:
		return decodeObject(r)
	case []byte:
		return decodeObject(r)
	default:
		return nil, false
	}
}

func decodeObject(data []byte) (map[string]any, bool) {
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil || m == nil {
		return nil, false
	}
	return m, true
}
