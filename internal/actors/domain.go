// Package actors administers the accounts that act on records: their capability
// grants and account status.
package actors

import "github.com/caseledger/caseledger/internal/access"

// NewActor is the payload for provisioning an account.
type NewActor struct {
	Name         string   `json:"name" validate:"required"`
	Username     string   `json:"username" validate:"required,min=3"`
	Role         string   `json:"role" validate:"required"`
	Scope        string   `json:"access_scope"`
	OfficeID     string   `json:"office_id"`
	OfficeName   string   `json:"office_name"`
	Capabilities []string `json:"capabilities"`
}

// ToggleInput names the capability to flip, as "category.action".
type ToggleInput struct {
	Capability string `json:"capability" validate:"required"`
}

// StatusInput carries the requested account status.
type StatusInput struct {
	Status string `json:"status" validate:"required"`
}

// View is an actor as returned by the admin endpoints.
type View struct {
	access.Actor
	RoleLabel string   `json:"role_label"`
	Granted   []string `json:"granted"`
}

func viewOf(a access.Actor) View {
	granted := a.Capabilities.Granted()
	names := make([]string, 0, len(granted))
	for _, c := range granted {
		names = append(names, c.String())
	}
	return View{Actor: a, RoleLabel: a.Role.Label(), Granted: names}
}
