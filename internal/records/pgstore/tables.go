package pgstore

import (
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/caseledger/caseledger/internal/access"
	"github.com/caseledger/caseledger/internal/records"
)

const (
	officeList = `SELECT id, name, location, contact_person, phone, required_docs_fallen, required_docs_disability
FROM offices ORDER BY name`
	officeInsert = `INSERT INTO offices (id, name, location, contact_person, phone, required_docs_fallen, required_docs_disability)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	officeUpdate = `UPDATE offices SET name = $2, location = $3, contact_person = $4, phone = $5,
required_docs_fallen = $6, required_docs_disability = $7 WHERE id = $1`
)

func scanOffice(rows pgx.Rows) (records.Office, error) {
	var o records.Office
	err := rows.Scan(&o.ID, &o.Name, &o.Location, &o.ContactPerson, &o.Phone, &o.RequiredDocsFallen, &o.RequiredDocsDisability)
	return o, err
}

func officeArgs(o records.Office) []any {
	return []any{o.ID, o.Name, o.Location, o.ContactPerson, o.Phone, nonNil(o.RequiredDocsFallen), nonNil(o.RequiredDocsDisability)}
}

var fallenDef = tableDef[records.FallenPerson]{
	list: `SELECT id, full_name, national_id, event_date, rank, office, status, last_grant_amount::text, barcode
FROM fallen ORDER BY created_at, id`,
	insert: `INSERT INTO fallen (id, full_name, national_id, event_date, rank, office, status, last_grant_amount, barcode)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8::numeric, $9)`,
	update: `UPDATE fallen SET full_name = $2, national_id = $3, event_date = $4, rank = $5, office = $6, status = $7,
last_grant_amount = $8::numeric, barcode = $9 WHERE id = $1`,
	remove: `DELETE FROM fallen WHERE id = $1`,
	scan: func(rows pgx.Rows) (records.FallenPerson, error) {
		var (
			f     records.FallenPerson
			event *time.Time
			grant string
		)
		if err := rows.Scan(&f.ID, &f.FullName, &f.NationalID, &event, &f.Rank, &f.Office, &f.Status, &grant, &f.Barcode); err != nil {
			return f, err
		}
		f.EventDate = dateOf(event)
		var err error
		f.LastGrantAmount, err = amount(grant)
		return f, err
	},
	args: func(f records.FallenPerson) []any {
		return []any{f.ID, f.FullName, f.NationalID, nullDate(f.EventDate), f.Rank, f.Office, string(f.Status), f.LastGrantAmount.String(), f.Barcode}
	},
	setID: func(f records.FallenPerson, id string) records.FallenPerson { f.ID = id; return f },
}

var disabilityDef = tableDef[records.DisabilityCase]{
	list: `SELECT id, full_name, national_id, injury_type, disability_percentage, office, last_payment_date,
beneficiary_count, status, last_grant_amount::text, barcode FROM disability ORDER BY created_at, id`,
	insert: `INSERT INTO disability (id, full_name, national_id, injury_type, disability_percentage, office, last_payment_date,
beneficiary_count, status, last_grant_amount, barcode) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::numeric, $11)`,
	update: `UPDATE disability SET full_name = $2, national_id = $3, injury_type = $4, disability_percentage = $5, office = $6,
last_payment_date = $7, beneficiary_count = $8, status = $9, last_grant_amount = $10::numeric, barcode = $11 WHERE id = $1`,
	remove: `DELETE FROM disability WHERE id = $1`,
	scan: func(rows pgx.Rows) (records.DisabilityCase, error) {
		var (
			d       records.DisabilityCase
			payment *time.Time
			grant   string
		)
		if err := rows.Scan(&d.ID, &d.FullName, &d.NationalID, &d.InjuryType, &d.DisabilityPercentage, &d.Office, &payment,
			&d.BeneficiaryCount, &d.Status, &grant, &d.Barcode); err != nil {
			return d, err
		}
		d.LastPaymentDate = dateOf(payment)
		var err error
		d.LastGrantAmount, err = amount(grant)
		return d, err
	},
	args: func(d records.DisabilityCase) []any {
		return []any{d.ID, d.FullName, d.NationalID, d.InjuryType, d.DisabilityPercentage, d.Office, nullDate(d.LastPaymentDate),
			d.BeneficiaryCount, string(d.Status), d.LastGrantAmount.String(), d.Barcode}
	},
	setID: func(d records.DisabilityCase, id string) records.DisabilityCase { d.ID = id; return d },
}

var dependentDef = tableDef[records.Dependent]{
	list: `SELECT id, full_name, national_id, relationship, case_category, case_id, case_name, benefit_amount::text,
last_grant_amount::text, status, barcode FROM dependents ORDER BY created_at, id`,
	insert: `INSERT INTO dependents (id, full_name, national_id, relationship, case_category, case_id, case_name, benefit_amount,
last_grant_amount, status, barcode) VALUES ($1, $2, $3, $4, $5, $6, $7, $8::numeric, $9::numeric, $10, $11)`,
	update: `UPDATE dependents SET full_name = $2, national_id = $3, relationship = $4, case_category = $5, case_id = $6,
case_name = $7, benefit_amount = $8::numeric, last_grant_amount = $9::numeric, status = $10, barcode = $11 WHERE id = $1`,
	remove: `DELETE FROM dependents WHERE id = $1`,
	scan: func(rows pgx.Rows) (records.Dependent, error) {
		var (
			d              records.Dependent
			benefit, grant string
		)
		if err := rows.Scan(&d.ID, &d.FullName, &d.NationalID, &d.Relationship, &d.CaseCategory, &d.CaseID, &d.CaseName,
			&benefit, &grant, &d.Status, &d.Barcode); err != nil {
			return d, err
		}
		var err error
		if d.BenefitAmount, err = amount(benefit); err != nil {
			return d, err
		}
		d.LastGrantAmount, err = amount(grant)
		return d, err
	},
	args: func(d records.Dependent) []any {
		return []any{d.ID, d.FullName, d.NationalID, d.Relationship, string(d.CaseCategory), d.CaseID, d.CaseName,
			d.BenefitAmount.String(), d.LastGrantAmount.String(), string(d.Status), d.Barcode}
	},
	setID: func(d records.Dependent, id string) records.Dependent { d.ID = id; return d },
}

var actorDef = tableDef[access.Actor]{
	list: `SELECT id, name, username, role, access_scope, office_id, office_name, status, capabilities
FROM actors ORDER BY created_at, id`,
	insert: `INSERT INTO actors (id, name, username, role, access_scope, office_id, office_name, status, capabilities)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
	update: `UPDATE actors SET name = $2, username = $3, role = $4, access_scope = $5, office_id = $6, office_name = $7,
status = $8, capabilities = $9 WHERE id = $1`,
	remove: `DELETE FROM actors WHERE id = $1`,
	scan: func(rows pgx.Rows) (access.Actor, error) {
		var (
			a                   access.Actor
			role, scope, status string
			capabilities        []byte
		)
		if err := rows.Scan(&a.ID, &a.Name, &a.Username, &role, &scope, &a.OfficeID, &a.OfficeName, &status, &capabilities); err != nil {
			return a, err
		}
		a.Role = access.ParseRole(role)
		a.Scope = access.ParseScope(scope)
		a.Status = access.ParseStatus(status)
		if len(capabilities) > 0 {
			if err := json.Unmarshal(capabilities, &a.Capabilities); err != nil {
				return a, err
			}
		}
		return a, nil
	},
	args: func(a access.Actor) []any {
		capabilities, _ := json.Marshal(a.Capabilities)
		return []any{a.ID, a.Name, a.Username, string(a.Role), string(a.Scope), a.OfficeID, a.OfficeName, string(a.Status), capabilities}
	},
	setID: func(a access.Actor, id string) access.Actor { a.ID = id; return a },
}

func nonNil(docs []string) []string {
	if docs == nil {
		return []string{}
	}
	return docs
}
