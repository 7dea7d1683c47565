package records

import (
	"slices"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// SortField names a column inquiry listings can be ordered by.
type SortField string

const (
	SortNone       SortField = ""
	SortName       SortField = "name"
	SortNationalID SortField = "national_id"
	SortStatus     SortField = "status"
	SortGrant      SortField = "grant"
)

// Query narrows an inquiry listing. Zero fields impose no restriction.
type Query struct {
	Text         string
	Status       Status
	Relationship string
	SortBy       SortField
	Descending   bool
}

// Listable is the record view inquiry queries operate on.
type Listable interface {
	Name() string
	Identifier() string
	CaseStatus() Status
	Grant() decimal.Decimal
}

// Apply returns the items matching q, ordered as q requests. The input is not modified
// and, without a sort field, relative order is preserved.
func Apply[T Listable](items []T, q Query) []T {
	needle := fold(q.Text)
	relationship := fold(q.Relationship)
	out := make([]T, 0, len(items))
	for _, item := range items {
		if q.Status != "" && item.CaseStatus() != q.Status {
			continue
		}
		if relationship != "" || needle != "" {
			dep, isDep := any(item).(Dependent)
			if relationship != "" && (!isDep || fold(dep.Relationship) != relationship) {
				continue
			}
			if needle != "" && !matches(item, dep, isDep, needle) {
				continue
			}
		}
		out = append(out, item)
	}
	sortListing(out, q.SortBy, q.Descending)
	return out
}

func matches(item Listable, dep Dependent, isDep bool, needle string) bool {
	if strings.Contains(fold(item.Name()), needle) || strings.Contains(fold(item.Identifier()), needle) {
		return true
	}
	return isDep && strings.Contains(fold(dep.CaseName), needle)
}

func sortListing[T Listable](items []T, field SortField, desc bool) {
	var cmp func(a, b T) int
	switch field {
	case SortName:
		col := collate.New(language.Arabic)
		cmp = func(a, b T) int { return col.CompareString(a.Name(), b.Name()) }
	case SortNationalID:
		cmp = func(a, b T) int { return strings.Compare(a.Identifier(), b.Identifier()) }
	case SortStatus:
		cmp = func(a, b T) int { return statusRank(a.CaseStatus()) - statusRank(b.CaseStatus()) }
	case SortGrant:
		cmp = func(a, b T) int { return a.Grant().Cmp(b.Grant()) }
	default:
		return
	}
	if desc {
		asc := cmp
		cmp = func(a, b T) int { return asc(b, a) }
	}
	slices.SortStableFunc(items, cmp)
}

func statusRank(s Status) int {
	if i := slices.Index(Statuses(), s); i >= 0 {
		return i
	}
	return len(Statuses())
}

// fold normalises text for matching: NFC composition then Unicode case folding.
func fold(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return cases.Fold().String(norm.NFC.String(s))
}

// ParseSortField maps a query-string value onto a SortField.
func ParseSortField(raw string) SortField {
	switch f := SortField(strings.ToLower(strings.TrimSpace(raw))); f {
	case SortName, SortNationalID, SortStatus, SortGrant:
		return f
	}
	return SortNone
}
