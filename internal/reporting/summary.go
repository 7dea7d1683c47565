// Package reporting derives statistics and row views from scope-filtered snapshots.
package reporting

import (
	"github.com/shopspring/decimal"

	"github.com/caseledger/caseledger/internal/access"
	"github.com/caseledger/caseledger/internal/records"
)

// OfficeStat counts the records of one office per category.
type OfficeStat struct {
	Office     string `json:"office"`
	Fallen     int    `json:"fallen"`
	Disability int    `json:"disability"`
	Dependents int    `json:"dependents"`
}

// Summary is the aggregate view of a snapshot.
type Summary struct {
	Counts          map[access.Category]int                    `json:"counts"`
	StatusHistogram map[access.Category]map[records.Status]int `json:"status_histogram"`
	OfficeBreakdown []OfficeStat                               `json:"office_breakdown"`
	TotalBenefits   decimal.Decimal                            `json:"total_benefits"`
	GrantTotals     map[access.Category]decimal.Decimal        `json:"grant_totals"`
}

// SummaryOptions tunes Summarize.
type SummaryOptions struct {
	// IncludeOffices enables the per-office breakdown.
	IncludeOffices bool
}

// NewSummary returns a Summary with every count, histogram bucket and total at zero.
func NewSummary() Summary {
	s := Summary{
		Counts:          make(map[access.Category]int),
		StatusHistogram: make(map[access.Category]map[records.Status]int),
		OfficeBreakdown: []OfficeStat{},
		TotalBenefits:   decimal.Zero,
		GrantTotals:     make(map[access.Category]decimal.Decimal),
	}
	for _, cat := range records.RecordCategories() {
		s.Counts[cat] = 0
		s.GrantTotals[cat] = decimal.Zero
		hist := make(map[records.Status]int, len(records.Statuses()))
		for _, st := range records.Statuses() {
			hist[st] = 0
		}
		s.StatusHistogram[cat] = hist
	}
	return s
}

// Summarize reduces snap. A status outside the fixed set is bucketed as in progress,
// so every category's histogram sums to its count.
func Summarize(snap records.Snapshot, opts SummaryOptions) Summary {
	s := NewSummary()
	for _, c := range snap.Cases() {
		s.add(c.Category(), c.CaseStatus(), c.Grant())
	}
	for _, d := range snap.Dependents {
		s.add(access.CategoryDependent, d.Status, d.LastGrantAmount)
		s.TotalBenefits = s.TotalBenefits.Add(d.LastGrantAmount)
	}
	if opts.IncludeOffices {
		s.OfficeBreakdown = officeBreakdown(snap)
	}
	return s
}

func (s *Summary) add(cat access.Category, status records.Status, grant decimal.Decimal) {
	s.Counts[cat]++
	s.StatusHistogram[cat][status.Normalize()]++
	s.GrantTotals[cat] = s.GrantTotals[cat].Add(grant)
}

func officeBreakdown(snap records.Snapshot) []OfficeStat {
	out := make([]OfficeStat, 0, len(snap.Offices))
	index := make(map[string]int, len(snap.Offices))
	slot := func(name string) *OfficeStat {
		i, ok := index[name]
		if !ok {
			i = len(out)
			index[name] = i
			out = append(out, OfficeStat{Office: name})
		}
		return &out[i]
	}
	for _, o := range snap.Offices {
		slot(o.Name)
	}

	caseOffice := make(map[string]string, len(snap.Fallen)+len(snap.Disability))
	for _, f := range snap.Fallen {
		slot(f.Office).Fallen++
		caseOffice[records.KeyOf(f)] = f.Office
	}
	for _, d := range snap.Disability {
		slot(d.Office).Disability++
		caseOffice[records.KeyOf(d)] = d.Office
	}
	for _, d := range snap.Dependents {
		if office, ok := caseOffice[d.CaseRef()]; ok {
			slot(office).Dependents++
		}
	}
	return out
}
