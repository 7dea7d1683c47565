package reporting

import (
	"time"

	"github.com/caseledger/caseledger/internal/records"
)

// Window restricts case records by their category-specific date. Nil bounds are open.
// Both bounds are inclusive and compared on calendar days.
type Window struct {
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
}

// ParseWindow builds a Window from operator input. An unparsable bound is dropped, as
// is an end bound falling before the start bound.
func ParseWindow(start, end string) Window {
	var w Window
	if t, ok := records.ParseDate(start); ok {
		w.Start = &t
	}
	if t, ok := records.ParseDate(end); ok {
		w.End = &t
	}
	if w.Start != nil && w.End != nil && day(*w.End).Before(day(*w.Start)) {
		w.End = nil
	}
	return w
}

// Unbounded reports whether w imposes no restriction.
func (w Window) Unbounded() bool {
	return w.Start == nil && w.End == nil
}

// Contains reports whether t falls inside w. The zero time is always inside.
func (w Window) Contains(t time.Time) bool {
	if t.IsZero() {
		return true
	}
	d := day(t)
	if w.Start != nil && d.Before(day(*w.Start)) {
		return false
	}
	if w.End != nil && d.After(day(*w.End)) {
		return false
	}
	return true
}

// ApplyWindow filters fallen cases by event date and disability cases by last payment
// date. Dependents and offices pass through untouched.
func ApplyWindow(snap records.Snapshot, w Window) records.Snapshot {
	if w.Unbounded() {
		return snap
	}
	out := records.Snapshot{
		Offices:    snap.Offices,
		Fallen:     make([]records.FallenPerson, 0, len(snap.Fallen)),
		Disability: make([]records.DisabilityCase, 0, len(snap.Disability)),
		Dependents: snap.Dependents,
	}
	for _, f := range snap.Fallen {
		if w.Contains(f.EventDate) {
			out.Fallen = append(out.Fallen, f)
		}
	}
	for _, d := range snap.Disability {
		if w.Contains(d.LastPaymentDate) {
			out.Disability = append(out.Disability, d)
		}
	}
	return out
}

func day(t time.Time) time.Time {
	return records.CalendarDay(t)
}
