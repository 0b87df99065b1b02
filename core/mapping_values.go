package core

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// stringValue renders a submitted or stored value as text. Lists are joined
// with ", ".
func stringValue(value any) (string, bool) {
	switch typed := value.(type) {
	case nil:
		return "", false
	case string:
		return typed, true
	case []string:
		return strings.Join(stringSlice(typed), ", "), true
	case []any:
		return strings.Join(stringSlice(typed), ", "), true
	case bool:
		return strconv.FormatBool(typed), true
	case int:
		return strconv.Itoa(typed), true
	case int32:
		return strconv.FormatInt(int64(typed), 10), true
	case int64:
		return strconv.FormatInt(typed, 10), true
	case uint:
		return strconv.FormatUint(uint64(typed), 10), true
	case uint64:
		return strconv.FormatUint(typed, 10), true
	case float32:
		return strconv.FormatFloat(float64(typed), 'f', -1, 32), true
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64), true
	case json.Number:
		return typed.String(), true
	case fmt.Stringer:
		return typed.String(), true
	default:
		return fmt.Sprint(value), true
	}
}

// stringSlice normalizes a list value into trimmed, non-empty strings.
func stringSlice(value any) []string {
	switch typed := value.(type) {
	case nil:
		return nil
	case []string:
		out := make([]string, 0, len(typed))
		for _, item := range typed {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		return out
	case []any:
		out := make([]string, 0, len(typed))
		for _, item := range typed {
			text, ok := stringValue(item)
			if !ok {
				continue
			}
			if trimmed := strings.TrimSpace(text); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		return out
	default:
		text, ok := stringValue(value)
		if !ok || strings.TrimSpace(text) == "" {
			return nil
		}
		return []string{strings.TrimSpace(text)}
	}
}

// truthy accepts true, "true", "1", 1, "on" and "yes" as checked values.
func truthy(value any) bool {
	switch typed := value.(type) {
	case bool:
		return typed
	case int:
		return typed == 1
	case int64:
		return typed == 1
	case float64:
		return typed == 1
	case json.Number:
		return typed.String() == "1"
	case string:
		switch strings.ToLower(strings.TrimSpace(typed)) {
		case "true", "1", "on", "yes":
			return true
		default:
			return false
		}
	case []string:
		return len(typed) > 0 && truthy(typed[0])
	case []any:
		return len(typed) > 0 && truthy(typed[0])
	default:
		return false
	}
}

func truncateRunes(value string, limit int) string {
	if limit <= 0 {
		return value
	}
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit])
}
