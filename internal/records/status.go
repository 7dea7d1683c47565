package records

import (
	"encoding/json"
	"strings"
)

// Status is the processing state of a case or dependent record.
type Status string

const (
	StatusFulfilled   Status = "fulfilled"
	StatusUnfulfilled Status = "unfulfilled"
	StatusSuspended   Status = "suspended"
	StatusInProgress  Status = "in_progress"
)

var statusLabels = map[Status]string{
	StatusFulfilled:   "مستوفي",
	StatusUnfulfilled: "غير مستوفي",
	StatusSuspended:   "موقوف",
	StatusInProgress:  "تحت الإجراء",
}

// Statuses returns the fixed status set in display order.
func Statuses() []Status {
	return []Status{StatusFulfilled, StatusUnfulfilled, StatusSuspended, StatusInProgress}
}

// Label returns the Arabic label.
func (s Status) Label() string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

// Valid reports whether s belongs to the fixed set.
func (s Status) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

// Normalize maps a status outside the fixed set to StatusInProgress.
func (s Status) Normalize() Status {
	if s.Valid() {
		return s
	}
	return StatusInProgress
}

// ParseStatus accepts a status code or its Arabic label.
func ParseStatus(raw string) (Status, bool) {
	raw = strings.TrimSpace(raw)
	for status, label := range statusLabels {
		if raw == label || strings.EqualFold(raw, string(status)) {
			return status, true
		}
	}
	return "", false
}

// UnmarshalJSON accepts codes or labels. Unrecognised values are kept verbatim so
// validation can reject them.
func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if parsed, ok := ParseStatus(raw); ok {
		*s = parsed
		return nil
	}
	*s = Status(raw)
	return nil
}
