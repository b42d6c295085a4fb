package dispatcher

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"NewsDesk/internal/domain/models"
	"NewsDesk/pkg/util"
)

// Provider payloads are untyped JSON. These helpers never panic on an
// unexpected shape; they degrade to empty values instead.

func isEmpty(v interface{}) bool {
	switch x := v.(type) {
	case nil:
		return true
	case []interface{}:
		return len(x) == 0
	case map[string]interface{}:
		return len(x) == 0
	case string:
		return x == ""
	}
	return false
}

func rows(v interface{}) []interface{} {
	switch x := v.(type) {
	case []interface{}:
		return x
	case map[string]interface{}:
		// {"symbol": ..., "historical": [...]} and similar envelopes
		for _, k := range []string{"historical", "data", "content"} {
			if r, ok := x[k].([]interface{}); ok {
				return r
			}
		}
		return []interface{}{x}
	}
	return nil
}

func limitRows(v interface{}, n int) interface{} {
	r, ok := v.([]interface{})
	if !ok || n <= 0 || len(r) <= n {
		return v
	}
	return r[:n]
}

// filterRows keeps rows whose "symbol" (or "ticker") is in syms. An empty
// syms keeps everything.
func filterRows(v interface{}, syms []string) interface{} {
	if len(syms) == 0 {
		return v
	}
	r, ok := v.([]interface{})
	if !ok {
		return v
	}
	set := make(map[string]struct{}, len(syms))
	for _, s := range syms {
		set[s] = struct{}{}
	}
	out := make([]interface{}, 0, len(r))
	tagged := false
	for _, row := range r {
		m, ok := row.(map[string]interface{})
		if !ok {
			continue
		}
		sym := strings.ToUpper(str(m, "symbol"))
		if sym == "" {
			sym = strings.ToUpper(str(m, "ticker"))
		}
		if sym != "" {
			tagged = true
		}
		if _, ok := set[sym]; ok {
			out = append(out, row)
		}
	}
	// rows that carry no symbol at all (economic calendar) are not filterable
	if !tagged {
		return v
	}
	return out
}

// since drops rows whose "date" is before cutoff. Rows without a parsable
// date are kept.
func since(v interface{}, cutoff time.Time) interface{} {
	r, ok := v.([]interface{})
	if !ok {
		return v
	}
	out := make([]interface{}, 0, len(r))
	for _, row := range r {
		m, ok := row.(map[string]interface{})
		if !ok {
			continue
		}
		if t, ok := util.ParseTime(str(m, "date")); ok && t.Before(cutoff) {
			continue
		}
		out = append(out, row)
	}
	return out
}

func str(m map[string]interface{}, key string) string {
	switch x := m[key].(type) {
	case string:
		return x
	case nil:
		return ""
	default:
		return fmt.Sprint(x)
	}
}

func num(m map[string]interface{}, key string) float64 {
	switch x := m[key].(type) {
	case float64:
		return x
	case int:
		return float64(x)
	case string:
		f, _ := strconv.ParseFloat(x, 64)
		return f
	}
	return 0
}

// candles converts provider OHLCV rows. Rows with no close are skipped.
func candles(symbol string, v interface{}) []models.Candle {
	r := rows(v)
	out := make([]models.Candle, 0, len(r))
	for _, row := range r {
		m, ok := row.(map[string]interface{})
		if !ok {
			continue
		}
		t, ok := util.ParseTime(str(m, "date"))
		if !ok {
			continue
		}
		c := models.Candle{
			Time:   t,
			Symbol: symbol,
			Open:   num(m, "open"),
			High:   num(m, "high"),
			Low:    num(m, "low"),
			Close:  num(m, "close"),
			Volume: num(m, "volume"),
		}
		if c.Close <= 0 {
			continue
		}
		out = append(out, c)
	}
	return out
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func orDefaultStr(v, def string) string {
	if v != "" {
		return v
	}
	return def
}
