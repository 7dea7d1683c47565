package auth

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"github.com/caseledger/caseledger/internal/access"
	"github.com/caseledger/caseledger/internal/shared"
)

// Repository looks up credentials by username.
type Repository interface {
	FindByUsername(ctx context.Context, username string) (*Credential, error)
}

// Directory is a static, read-only credential table.
type Directory struct {
	entries map[string]Credential
}

// NewDirectory indexes creds by lower-cased username.
func NewDirectory(creds ...Credential) *Directory {
	d := &Directory{entries: make(map[string]Credential, len(creds))}
	for _, c := range creds {
		d.entries[strings.ToLower(c.Username)] = c
	}
	return d
}

// FindByUsername returns the credential for username.
func (d *Directory) FindByUsername(_ context.Context, username string) (*Credential, error) {
	c, ok := d.entries[strings.ToLower(strings.TrimSpace(username))]
	if !ok {
		return nil, shared.ErrInvalidCredentials
	}
	return &c, nil
}

// Usernames lists the directory entries in sorted order.
func (d *Directory) Usernames() []string {
	out := make([]string, 0, len(d.entries))
	for _, c := range d.entries {
		out = append(out, c.Username)
	}
	slices.Sort(out)
	return out
}

type directoryFile struct {
	Users []directoryEntry `yaml:"users"`
}

type directoryEntry struct {
	Username     string   `yaml:"username"`
	Name         string   `yaml:"name"`
	PasswordHash string   `yaml:"password_hash"`
	Role         string   `yaml:"role"`
	Scope        string   `yaml:"access_scope"`
	OfficeID     string   `yaml:"office_id"`
	OfficeName   string   `yaml:"office_name"`
	Status       string   `yaml:"status"`
	Capabilities []string `yaml:"capabilities"`
}

// LoadDirectory reads a YAML credential file. Entries without a capability list get
// the preset of their role.
func LoadDirectory(path string) (*Directory, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("auth: read directory: %w", err)
	}
	return ParseDirectory(raw)
}

// ParseDirectory decodes the YAML credential format.
func ParseDirectory(raw []byte) (*Directory, error) {
	var file directoryFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("auth: parse directory: %w", err)
	}
	creds := make([]Credential, 0, len(file.Users))
	for i, e := range file.Users {
		if e.Username == "" || e.PasswordHash == "" {
			return nil, fmt.Errorf("auth: directory entry %d: username and password_hash are required", i)
		}
		if _, err := bcrypt.Cost([]byte(e.PasswordHash)); err != nil {
			return nil, fmt.Errorf("auth: directory entry %q: %w", e.Username, err)
		}
		role := access.ParseRole(e.Role)
		matrix := access.Preset(role)
		if e.Capabilities != nil {
			matrix = access.Matrix{}
			for _, raw := range e.Capabilities {
				c, ok := access.ParseCapability(raw)
				if !ok {
					return nil, fmt.Errorf("auth: directory entry %q: unknown capability %q", e.Username, raw)
				}
				matrix = matrix.Grant(c)
			}
		}
		creds = append(creds, Credential{
			Username:     e.Username,
			Name:         e.Name,
			PasswordHash: e.PasswordHash,
			Role:         role,
			Scope:        access.ParseScope(e.Scope),
			OfficeID:     e.OfficeID,
			OfficeName:   e.OfficeName,
			Status:       access.ParseStatus(e.Status),
			Capabilities: matrix,
		})
	}
	return NewDirectory(creds...), nil
}

// DemoOffice is the office the built-in demo accounts belong to.
const DemoOffice = "مكتب طرابلس"

// DemoDirectory builds the built-in admin, manager, entry and inquiry accounts, all
// sharing password.
func DemoDirectory(password string) (*Directory, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("auth: hash demo password: %w", err)
	}
	demo := []struct {
		username, name string
		role           access.Role
		scope          access.Scope
		office         string
	}{
		{"admin", "مدير النظام", access.RoleAdmin, access.ScopeAllOffices, ""},
		{"manager", "مدير المكتب", access.RoleManager, access.ScopeOfficeOnly, DemoOffice},
		{"entry", "مدخل البيانات", access.RoleEntry, access.ScopeOfficeOnly, DemoOffice},
		{"inquiry", "موظف الاستعلام", access.RoleInquiry, access.ScopeOfficeOnly, DemoOffice},
	}
	creds := make([]Credential, 0, len(demo))
	for _, d := range demo {
		creds = append(creds, Credential{
			Username:     d.username,
			Name:         d.name,
			PasswordHash: string(hash),
			Role:         d.role,
			Scope:        d.scope,
			OfficeName:   d.office,
			Status:       access.StatusActive,
			Capabilities: access.Preset(d.role),
		})
	}
	return NewDirectory(creds...), nil
}
