package normalize

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// глубина повторного разбора JSON внутри строковых полей
const maxMediaDepth = 3

// максимальный индекс в объекте, развалившемся на символы
const maxCharSplitIndex = 4096

// mediaOf проходит mediaKeys и возвращает список URL первого пригодного поля.
func mediaOf(rec map[string]any) []string {
	for _, k := range mediaKeys {
		v, ok := rec[k]
		if !ok || !present(v) {
			continue
		}
		if urls := mediaFrom(v, 0); len(urls) > 0 {
			return urls
		}
	}
	return []string{}
}

func mediaFrom(v any, depth int) []string {
	if depth > maxMediaDepth {
		return nil
	}

	switch t := v.(type) {
	case string:
		return mediaFromString(t, depth)
	case []any:
		var out []string
		for _, item := range t {
			out = append(out, mediaFrom(item, depth+1)...)
		}
		return out
	case []string:
		var out []string
		for _, item := range t {
			out = append(out, mediaFromString(item, depth+1)...)
		}
		return out
	case map[string]any:
		if s, ok := reassembleCharSplit(t); ok {
			if validURL(s) {
				return []string{s}
			}
			return nil
		}
		if s, ok := String(t, mediaURLKeys); ok {
			return mediaFromString(s, depth+1)
		}
	}
	return nil
}

func mediaFromString(s string, depth int) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	parsed, ok := decodeJSON([]byte(s))
	if !ok {
		return []string{s}
	}
	switch p := parsed.(type) {
	case string:
		return mediaFromString(p, depth+1)
	case []any, map[string]any:
		return mediaFrom(p, depth+1)
	}
	// число или bool в виде строки URL-ом не является, но и терять его не стоит
	return []string{s}
}

// reassembleCharSplit собирает строку из объекта вида {"0":"h","1":"t",...},
// который иногда приходит от сервера вместо обычной строки.
func reassembleCharSplit(m map[string]any) (string, bool) {
	if len(m) == 0 {
		return "", false
	}

	type part struct {
		idx int
		ch  string
	}
	parts := make([]part, 0, len(m))
	for k, v := range m {
		idx, err := strconv.Atoi(k)
		if err != nil || idx < 0 || idx > maxCharSplitIndex {
			return "", false
		}
		ch, ok := v.(string)
		if !ok || len([]rune(ch)) != 1 {
			return "", false
		}
		parts = append(parts, part{idx: idx, ch: ch})
	}

	sort.Slice(parts, func(i, j int) bool { return parts[i].idx < parts[j].idx })

	var b strings.Builder
	for _, p := range parts {
		b.WriteString(p.ch)
	}
	return b.String(), true
}

func validURL(s string) bool {
	if strings.HasPrefix(s, "/") && !strings.HasPrefix(s, "//") {
		return true
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
