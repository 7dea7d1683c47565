package auth

import (
	"github.com/caseledger/caseledger/internal/access"
)

// Credential is one entry of the credential directory.
type Credential struct {
	Username     string
	Name         string
	PasswordHash string
	Role         access.Role
	Scope        access.Scope
	OfficeID     string
	OfficeName   string
	Status       access.Status
	Capabilities access.Matrix
}

// Actor returns the profile a credential grants before any stored override.
func (c Credential) Actor() access.Actor {
	return access.Actor{
		ID:           c.Username,
		Name:         c.Name,
		Username:     c.Username,
		Role:         c.Role,
		Scope:        c.Scope,
		OfficeID:     c.OfficeID,
		OfficeName:   c.OfficeName,
		Status:       c.Status,
		Capabilities: c.Capabilities,
	}
}
