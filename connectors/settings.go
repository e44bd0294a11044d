package connectors

import (
	"fmt"
	"strings"
)

// Connector settings arrive as a free-form scalar tree decoded from
// configuration, so every read goes through these helpers and tolerates
// missing or oddly typed values.

func stringSetting(settings map[string]any, key string) string {
	if len(settings) == 0 {
		return ""
	}
	value, ok := settings[key]
	if !ok || value == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(value))
}

func stringSliceSetting(settings map[string]any, key string) []string {
	if len(settings) == 0 {
		return nil
	}
	value, ok := settings[key]
	if !ok || value == nil {
		return nil
	}
	switch typed := value.(type) {
	case []string:
		return trimAll(typed)
	case []any:
		out := make([]string, 0, len(typed))
		for _, entry := range typed {
			if entry == nil {
				continue
			}
			out = append(out, fmt.Sprint(entry))
		}
		return trimAll(out)
	case string:
		return trimAll(strings.Split(typed, ","))
	default:
		return nil
	}
}

func stringMapSetting(settings map[string]any, key string) map[string]string {
	if len(settings) == 0 {
		return nil
	}
	value, ok := settings[key]
	if !ok || value == nil {
		return nil
	}
	switch typed := value.(type) {
	case map[string]string:
		out := make(map[string]string, len(typed))
		for k, v := range typed {
			out[strings.TrimSpace(k)] = strings.TrimSpace(v)
		}
		return out
	case map[string]any:
		out := make(map[string]string, len(typed))
		for k, v := range typed {
			if v == nil {
				continue
			}
			out[strings.TrimSpace(k)] = strings.TrimSpace(fmt.Sprint(v))
		}
		return out
	default:
		return nil
	}
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
