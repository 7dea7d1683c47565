package access

import "strings"

// Role labels an actor for display. Authorization never derives from it.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleEntry   Role = "entry"
	RoleInquiry Role = "inquiry"
)

var roleLabels = map[Role]string{
	RoleAdmin:   "مدير النظام",
	RoleManager: "مدير مكتب",
	RoleEntry:   "مدخل بيانات",
	RoleInquiry: "مستعلم",
}

// Label returns the Arabic display label.
func (r Role) Label() string {
	if l, ok := roleLabels[r]; ok {
		return l
	}
	return string(r)
}

// ParseRole accepts a role code or its display label. Unknown values map to RoleInquiry.
func ParseRole(raw string) Role {
	raw = strings.TrimSpace(raw)
	for role, label := range roleLabels {
		if strings.EqualFold(raw, string(role)) || raw == label {
			return role
		}
	}
	return RoleInquiry
}

// Scope is the tenancy boundary applied to an actor's visibility.
type Scope string

const (
	ScopeOfficeOnly Scope = "office_only"
	ScopeAllOffices Scope = "all_offices"
)

// ParseScope fails closed: anything but "all_offices" is office_only.
func ParseScope(raw string) Scope {
	if strings.TrimSpace(strings.ToLower(raw)) == string(ScopeAllOffices) {
		return ScopeAllOffices
	}
	return ScopeOfficeOnly
}

// Status is the account state of an actor.
type Status string

const (
	StatusActive   Status = "active"
	StatusDisabled Status = "disabled"
)

// ParseStatus accepts codes or the Arabic labels used by the record store.
func ParseStatus(raw string) Status {
	switch strings.TrimSpace(raw) {
	case string(StatusDisabled), "معطل":
		return StatusDisabled
	default:
		return StatusActive
	}
}

// Actor is an authenticated user together with their grants.
type Actor struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Username     string `json:"username"`
	Role         Role   `json:"role"`
	Scope        Scope  `json:"access_scope"`
	OfficeID     string `json:"office_id"`
	OfficeName   string `json:"office_name"`
	Status       Status `json:"status"`
	Capabilities Matrix `json:"capabilities"`
}

// WithCapabilities returns a copy of the actor carrying m.
func (a Actor) WithCapabilities(m Matrix) Actor {
	a.Capabilities = m
	return a
}
