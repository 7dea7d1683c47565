package records

import (
	"strings"
	"time"
)

// DateLayout is the calendar-date layout used on the wire and in exports.
const DateLayout = "2006-01-02"

// ParseDate accepts a calendar date or an RFC3339 timestamp. A timestamp keeps the
// calendar day of its own offset. Blank input yields the zero time and ok=false.
func ParseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(DateLayout, raw); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return CalendarDay(t), true
	}
	return time.Time{}, false
}

// CalendarDay truncates t to midnight UTC of the day t falls on in its own location.
func CalendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FormatDate renders t as a calendar date, or "" for the zero time.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}
