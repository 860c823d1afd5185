package compliance

import (
	"strings"
	"time"
)

var directIdentifiers = map[string]struct{}{
	"name":        {},
	"firstName":   {},
	"lastName":    {},
	"fullName":    {},
	"email":       {},
	"phone":       {},
	"phoneNumber": {},
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02",
}

// Anonymize returns a copy of record with direct identifiers removed and any
// date-valued fields generalized to year-month granularity. The input map is
// not modified.
func Anonymize(record map[string]any) map[string]any {
	out := make(map[string]any, len(record))
	for key, value := range record {
		if _, direct := directIdentifiers[key]; direct {
			continue
		}
		if isDateField(key) {
			if generalized, ok := generalizeDate(value); ok {
				out[key] = generalized
				continue
			}
		}
		out[key] = value
	}
	return out
}

func isDateField(key string) bool {
	lower := strings.ToLower(key)
	return strings.Contains(lower, "date") || strings.Contains(lower, "birth") ||
		strings.HasSuffix(lower, "at")
}

func generalizeDate(value any) (string, bool) {
	switch v := value.(type) {
	case time.Time:
		return v.Format("2006-01"), true
	case string:
		for _, layout := range dateLayouts {
			if parsed, err := time.Parse(layout, v); err == nil {
				return parsed.Format("2006-01"), true
			}
		}
	}
	return "", false
}
