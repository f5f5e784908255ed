package utils

import (
	"encoding/json"
	"fmt"
	"time"
)

// ParseFlexibleTime parses the date formats found in invoice records.
func ParseFlexibleTime(timeStr string) (time.Time, error) {
	formats := []string{
		time.RFC3339,
		time.RFC3339Nano,
		"2006-01-02T15:04:05Z",
		"2006-01-02 15:04:05",
		"2006-01-02",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, timeStr); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse time: %s", timeStr)
}

// DueLabel describes a due date relative to now: "overdue", "due today" or
// "due in N days". Unparseable dates yield "".
func DueLabel(due string, now time.Time) string {
	t, err := ParseFlexibleTime(due)
	if err != nil {
		return ""
	}

	y1, m1, d1 := t.Date()
	y2, m2, d2 := now.Date()
	days := int(time.Date(y1, m1, d1, 0, 0, 0, 0, time.UTC).Sub(time.Date(y2, m2, d2, 0, 0, 0, 0, time.UTC)).Hours() / 24)

	switch {
	case days < 0:
		return "overdue"
	case days == 0:
		return "due today"
	case days == 1:
		return "due in 1 day"
	default:
		return fmt.Sprintf("due in %d days", days)
	}
}

// NormalizeJSON formats JSON with consistent indentation
func NormalizeJSON(data interface{}) ([]byte, error) {
	return json.MarshalIndent(data, "", "  ")
}
