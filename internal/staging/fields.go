package staging

import (
	"strings"
	"time"
)

// arrayFields are stored as arrays in the staging store but arrive from the
// review UI as comma-separated text.
var arrayFields = map[string]bool{
	"source_urls":        true,
	"source_page_ids":    true,
	"active_ingredients": true,
}

// NormalizeProductFields prepares a partial update payload for the staging
// store: comma-separated text becomes arrays for the known array fields,
// empty strings become nulls, and updated_at is bumped.
func NormalizeProductFields(fields map[string]interface{}) map[string]interface{} {
	payload := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		if arrayFields[k] {
			payload[k] = toArray(v)
			continue
		}
		if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
			payload[k] = nil
			continue
		}
		payload[k] = v
	}
	payload["updated_at"] = time.Now().UTC().Format(time.RFC3339)
	return payload
}

func toArray(v interface{}) interface{} {
	switch val := v.(type) {
	case nil:
		return nil
	case []string:
		return val
	case []interface{}:
		return val
	case string:
		parts := []string{}
		for _, p := range strings.Split(val, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		return parts
	default:
		return v
	}
}
