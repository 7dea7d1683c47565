// Package records holds the case entities tracked per office and the contract of the
// record store that owns them.
package records

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/caseledger/caseledger/internal/access"
)

// Office is the tenancy boundary records are affiliated with.
type Office struct {
	ID                     string   `json:"id"`
	Name                   string   `json:"name" validate:"required"`
	Location               string   `json:"location"`
	ContactPerson          string   `json:"contact_person"`
	Phone                  string   `json:"phone"`
	RequiredDocsFallen     []string `json:"required_docs_fallen,omitempty"`
	RequiredDocsDisability []string `json:"required_docs_disability,omitempty"`
}

// FallenPerson is a case record for a fallen person.
type FallenPerson struct {
	ID              string          `json:"id"`
	FullName        string          `json:"full_name" validate:"required"`
	NationalID      string          `json:"national_id" validate:"required"`
	EventDate       time.Time       `json:"event_date,omitzero"`
	Rank            string          `json:"rank"`
	Office          string          `json:"office"`
	Status          Status          `json:"status" validate:"required,record_status"`
	LastGrantAmount decimal.Decimal `json:"last_grant_amount"`
	Barcode         string          `json:"barcode,omitempty"`
}

// DisabilityCase is a case record for an injured person.
type DisabilityCase struct {
	ID                   string          `json:"id"`
	FullName             string          `json:"full_name" validate:"required"`
	NationalID           string          `json:"national_id" validate:"required"`
	InjuryType           string          `json:"injury_type"`
	DisabilityPercentage int             `json:"disability_percentage" validate:"gte=0,lte=100"`
	Office               string          `json:"office"`
	LastPaymentDate      time.Time       `json:"last_payment_date,omitzero"`
	BeneficiaryCount     int             `json:"beneficiary_count" validate:"gte=0"`
	Status               Status          `json:"status" validate:"required,record_status"`
	LastGrantAmount      decimal.Decimal `json:"last_grant_amount"`
	Barcode              string          `json:"barcode,omitempty"`
}

// Dependent is a person entitled to benefits through a case record. CaseCategory and
// CaseID form the stable reference (an empty category means a fallen-person case);
// CaseName is kept for display only.
type Dependent struct {
	ID              string          `json:"id"`
	FullName        string          `json:"full_name" validate:"required"`
	NationalID      string          `json:"national_id" validate:"required"`
	Relationship    string          `json:"relationship"`
	CaseCategory    access.Category `json:"case_category,omitempty" validate:"omitempty,oneof=fallen disability"`
	CaseID          string          `json:"case_id" validate:"required"`
	CaseName        string          `json:"case_name,omitempty"`
	BenefitAmount   decimal.Decimal `json:"benefit_amount"`
	LastGrantAmount decimal.Decimal `json:"last_grant_amount"`
	Status          Status          `json:"status" validate:"required,record_status"`
	Barcode         string          `json:"barcode,omitempty"`
}

// Case is the view shared by fallen-person and disability records.
type Case interface {
	RecordID() string
	Name() string
	Identifier() string
	AffiliatedOffice() string
	CaseStatus() Status
	Grant() decimal.Decimal
	Category() access.Category
}

func (f FallenPerson) RecordID() string { return f.ID }
func (f FallenPerson) Name() string { return f.FullName }
func (f FallenPerson) Identifier() string { return f.NationalID }
func (f FallenPerson) AffiliatedOffice() string { return f.Office }
func (f FallenPerson) CaseStatus() Status { return f.Status }
func (f FallenPerson) Grant() decimal.Decimal { return f.LastGrantAmount }
func (f FallenPerson) Category() access.Category { return access.CategoryFallen }
func (d DisabilityCase) RecordID() string { return d.ID }
func (d DisabilityCase) Name() string { return d.FullName }
func (d DisabilityCase) Identifier() string { return d.NationalID }
func (d DisabilityCase) AffiliatedOffice() string { return d.Office }
func (d DisabilityCase) CaseStatus() Status { return d.Status }
func (d DisabilityCase) Grant() decimal.Decimal { return d.LastGrantAmount }
func (d DisabilityCase) Category() access.Category { return access.CategoryDisability }
func (d Dependent) Name() string { return d.FullName }
func (d Dependent) Identifier() string { return d.NationalID }
func (d Dependent) CaseStatus() Status { return d.Status }
func (d Dependent) Grant() decimal.Decimal { return d.LastGrantAmount }

// CaseKey identifies a case across categories.
func CaseKey(cat access.Category, id string) string {
	return string(cat) + ":" + id
}

// KeyOf returns the CaseKey of c.
func KeyOf(c Case) string {
	return CaseKey(c.Category(), c.RecordID())
}

// CaseRef returns the CaseKey of the case d belongs to, or "" when unlinked.
func (d Dependent) CaseRef() string {
	if d.CaseID == "" {
		return ""
	}
	cat := d.CaseCategory
	if cat == "" {
		cat = access.CategoryFallen
	}
	return CaseKey(cat, d.CaseID)
}

var categoryLabels = map[access.Category]string{
	access.CategoryFallen:     "شهيد",
	access.CategoryDisability: "مبتور",
	access.CategoryDependent:  "مستفيد",
}

// CategoryLabel returns the Arabic label used in listings and exports.
func CategoryLabel(cat access.Category) string {
	if l, ok := categoryLabels[cat]; ok {
		return l
	}
	return string(cat)
}

// RecordCategories lists the categories that hold records.
func RecordCategories() []access.Category {
	return []access.Category{access.CategoryFallen, access.CategoryDisability, access.CategoryDependent}
}
