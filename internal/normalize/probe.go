package normalize

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/ButyrinIA/feedsync/internal/models"
)

// Record приводит произвольное значение к map[string]any.
// Строки и []byte разбираются как JSON, структуры проходят через json.Marshal.
// Все, что не является объектом, превращается в пустую запись.
func Record(raw any) map[string]any {
	switch v := raw.(type) {
	case nil:
		return map[string]any{}
	case map[string]any:
		return v
	case json.RawMessage:
		return decodeRecord(v)
	case []byte:
		return decodeRecord(v)
	case string:
		return decodeRecord([]byte(v))
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return map[string]any{}
	}
	return decodeRecord(data)
}

func decodeRecord(data []byte) map[string]any {
	parsed, ok := decodeJSON(data)
	if !ok {
		return map[string]any{}
	}
	rec, ok := parsed.(map[string]any)
	if !ok {
		return map[string]any{}
	}
	return rec
}

func decodeJSON(data []byte) (any, bool) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, false
	}
	if dec.More() {
		return nil, false
	}
	return out, true
}

// present проверяет, что значение есть и не пустое.
func present(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(t) != ""
	}
	return true
}

// firstValue возвращает первое непустое значение по списку ключей.
func firstValue(rec map[string]any, keys []string) (any, bool) {
	for _, k := range keys {
		if v, ok := rec[k]; ok && present(v) {
			return v, true
		}
	}
	return nil, false
}

// String ищет первое строковое значение по ключам. Числа форматируются.
func String(rec map[string]any, keys []string) (string, bool) {
	for _, k := range keys {
		v, ok := rec[k]
		if !ok || !present(v) {
			continue
		}
		if s, ok := toString(v); ok {
			return s, true
		}
	}
	return "", false
}

// Int ищет первое целое значение по ключам. Массивы считаются по длине,
// отрицательные значения зажимаются к нулю.
func Int(rec map[string]any, keys []string) (int, bool) {
	for _, k := range keys {
		v, ok := rec[k]
		if !ok || !present(v) {
			continue
		}
		if n, ok := toInt(v); ok {
			if n < 0 {
				n = 0
			}
			return n, true
		}
	}
	return 0, false
}

// Bool ищет первый булев флаг по ключам.
func Bool(rec map[string]any, keys []string) (bool, bool) {
	for _, k := range keys {
		v, ok := rec[k]
		if !ok || !present(v) {
			continue
		}
		if b, ok := toBool(v); ok {
			return b, true
		}
	}
	return false, false
}

// ID ищет идентификатор по ключам.
func ID(rec map[string]any, keys []string) (models.ID, bool) {
	s, ok := String(rec, keys)
	if !ok {
		return "", false
	}
	return models.ID(strings.TrimSpace(s)), true
}

func toString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return "", false
		}
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32), true
	case int:
		return strconv.Itoa(t), true
	case int32:
		return strconv.FormatInt(int64(t), 10), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case uint:
		return strconv.FormatUint(uint64(t), 10), true
	case uint32:
		return strconv.FormatUint(uint64(t), 10), true
	case uint64:
		return strconv.FormatUint(t, 10), true
	case models.ID:
		return string(t), true
	}
	return "", false
}

func toInt(v any) (int, bool) {
	n, ok := toInt64(v)
	if !ok {
		return 0, false
	}
	if n > math.MaxInt32 {
		return math.MaxInt32, true
	}
	if n < math.MinInt32 {
		return math.MinInt32, true
	}
	return int(n), true
}

func toInt64(v any) (int64, bool) {
	switch t := v.(type) {
	case int:
		return int64(t), true
	case int32:
		return int64(t), true
	case int64:
		return t, true
	case uint:
		return int64(t), true
	case uint32:
		return int64(t), true
	case uint64:
		if t > math.MaxInt64 {
			return math.MaxInt64, true
		}
		return int64(t), true
	case float64:
		return floatToInt64(t)
	case float32:
		return floatToInt64(float64(t))
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n, true
		}
		if f, err := t.Float64(); err == nil {
			return floatToInt64(f)
		}
	case string:
		s := strings.TrimSpace(t)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return floatToInt64(f)
		}
	case []any:
		return int64(len(t)), true
	}
	return 0, false
}

func floatToInt64(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	if f >= math.MaxInt64 {
		return math.MaxInt64, true
	}
	if f <= math.MinInt64 {
		return math.MinInt64, true
	}
	return int64(f), true
}

func toBool(v any) (bool, bool) {
	switch t := v.(type) {
	case bool:
		return t, true
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "1", "yes":
			return true, true
		case "false", "0", "no":
			return false, true
		}
	case json.Number, float64, float32, int, int32, int64, uint, uint32, uint64:
		n, ok := toInt(t)
		return n != 0, ok
	}
	return false, false
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func toTime(v any) (time.Time, bool) {
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), true
			}
		}
	}
	n, ok := toInt64(v)
	if !ok || n <= 0 {
		return time.Time{}, false
	}
	// миллисекунды против секунд
	if n > 1e12 {
		return time.UnixMilli(n).UTC(), true
	}
	return time.Unix(n, 0).UTC(), true
}
