// Package scope enforces office-level tenancy over record collections.
package scope

import (
	"github.com/caseledger/caseledger/internal/access"
	"github.com/caseledger/caseledger/internal/records"
)

// Affiliated is any record carrying the name of its office.
type Affiliated interface {
	AffiliatedOffice() string
}

// BypassesTenancy reports whether actor sees every office. Administrators bypass
// tenancy regardless of their recorded scope.
func BypassesTenancy(actor access.Actor) bool {
	return actor.Scope == access.ScopeAllOffices || actor.Role == access.RoleAdmin
}

// CanTouch reports whether a record affiliated with office is visible to actor. An
// office-bound actor without an office sees nothing.
func CanTouch(actor access.Actor, office string) bool {
	if BypassesTenancy(actor) {
		return true
	}
	return actor.OfficeName != "" && office == actor.OfficeName
}

// Cases returns the records of items visible to actor, in input order. The result is
// always a fresh slice.
func Cases[T Affiliated](actor access.Actor, items []T) []T {
	if BypassesTenancy(actor) {
		return append([]T(nil), items...)
	}
	out := make([]T, 0, len(items))
	for _, item := range items {
		if CanTouch(actor, item.AffiliatedOffice()) {
			out = append(out, item)
		}
	}
	return out
}

// Visible collects the case keys of already filtered cases.
func Visible(cases ...records.Case) map[string]struct{} {
	keys := make(map[string]struct{}, len(cases))
	for _, c := range cases {
		keys[records.KeyOf(c)] = struct{}{}
	}
	return keys
}

// Dependents keeps the dependents whose case is in visible. visible must come from the
// case-level filter for the same actor.
func Dependents(actor access.Actor, visible map[string]struct{}, deps []records.Dependent) []records.Dependent {
	if BypassesTenancy(actor) {
		return append([]records.Dependent(nil), deps...)
	}
	out := make([]records.Dependent, 0, len(deps))
	for _, d := range deps {
		if _, ok := visible[d.CaseRef()]; ok {
			out = append(out, d)
		}
	}
	return out
}

// Filter applies tenancy to a whole snapshot: offices and cases first, then the
// dependents of the surviving cases.
func Filter(actor access.Actor, snap records.Snapshot) records.Snapshot {
	fallen := Cases(actor, snap.Fallen)
	disability := Cases(actor, snap.Disability)
	visible := Visible(records.Snapshot{Fallen: fallen, Disability: disability}.Cases()...)
	return records.Snapshot{
		Offices:    Offices(actor, snap.Offices),
		Fallen:     fallen,
		Disability: disability,
		Dependents: Dependents(actor, visible, snap.Dependents),
	}
}

// Offices returns the offices actor may see: all of them, or only their own.
func Offices(actor access.Actor, offices []records.Office) []records.Office {
	if BypassesTenancy(actor) {
		return append([]records.Office(nil), offices...)
	}
	out := make([]records.Office, 0, 1)
	for _, o := range offices {
		if CanTouch(actor, o.Name) {
			out = append(out, o)
		}
	}
	return out
}
