package stores

import (
	"strings"
	"time"

	"github.com/oarkflow/date"
)

const timeLayout = time.RFC3339Nano

func parseFlexibleTime(s string) (time.Time, error) {
	if t, err := time.Parse(timeLayout, s); err == nil {
		return t, nil
	}
	return date.Parse(s)
}

// scanTime converts what the driver returns for a timestamp column.
func scanTime(raw any) time.Time {
	switch v := raw.(type) {
	case time.Time:
		return v
	case string:
		if t, err := parseFlexibleTime(v); err == nil {
			return t
		}
	case []byte:
		if t, err := parseFlexibleTime(string(v)); err == nil {
			return t
		}
	}
	return time.Time{}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func sqlNullTimeOrNil(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return formatTime(t)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
