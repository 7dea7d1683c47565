package reporting

import (
	"github.com/shopspring/decimal"

	"github.com/caseledger/caseledger/internal/access"
	"github.com/caseledger/caseledger/internal/records"
)

// DetailRow is one line of the detailed view: a case, or a dependent nested under it.
type DetailRow struct {
	Kind         access.Category `json:"kind"`
	ID           string          `json:"id"`
	FullName     string          `json:"full_name"`
	NationalID   string          `json:"national_id"`
	Relationship string          `json:"relationship,omitempty"`
	CaseName     string          `json:"case_name,omitempty"`
	Office       string          `json:"office"`
	Status       records.Status  `json:"status"`
	Grant        decimal.Decimal `json:"grant"`
}

// SummaryRow is the row-oriented projection of a case used by the summary table.
type SummaryRow struct {
	FullName   string          `json:"full_name"`
	Kind       access.Category `json:"kind"`
	NationalID string          `json:"national_id"`
	Status     records.Status  `json:"status"`
	Office     string          `json:"office"`
}

// Detail flattens snap: fallen cases then disability cases in input order, each one
// immediately followed by its dependents in dependent input order. Dependents whose
// case is absent from snap produce no row.
func Detail(snap records.Snapshot) []DetailRow {
	byCase := snap.DependentsByCase()
	rows := make([]DetailRow, 0, len(snap.Fallen)+len(snap.Disability)+len(snap.Dependents))
	for _, c := range snap.Cases() {
		rows = append(rows, DetailRow{
			Kind:       c.Category(),
			ID:         c.RecordID(),
			FullName:   c.Name(),
			NationalID: c.Identifier(),
			Office:     c.AffiliatedOffice(),
			Status:     c.CaseStatus(),
			Grant:      c.Grant(),
		})
		for _, d := range byCase[records.KeyOf(c)] {
			rows = append(rows, DetailRow{
				Kind:         access.CategoryDependent,
				ID:           d.ID,
				FullName:     d.FullName,
				NationalID:   d.NationalID,
				Relationship: d.Relationship,
				CaseName:     c.Name(),
				Office:       c.AffiliatedOffice(),
				Status:       d.Status,
				Grant:        d.LastGrantAmount,
			})
		}
	}
	return rows
}

// SummaryRows projects the cases of snap, fallen then disability.
func SummaryRows(snap records.Snapshot) []SummaryRow {
	cases := snap.Cases()
	rows := make([]SummaryRow, 0, len(cases))
	for _, c := range cases {
		rows = append(rows, SummaryRow{
			FullName:   c.Name(),
			Kind:       c.Category(),
			NationalID: c.Identifier(),
			Status:     c.CaseStatus(),
			Office:     c.AffiliatedOffice(),
		})
	}
	return rows
}
