package access

import (
	"encoding/json"
	"strings"
)

// Category names a group of guarded actions.
type Category string

// Action names a single guarded operation within a category.
type Action string

const (
	CategoryFallen     Category = "fallen"
	CategoryDisability Category = "disability"
	CategoryDependent  Category = "dependent"
	CategoryReports    Category = "reports"
	CategoryAdmin      Category = "admin"
)

const (
	ActionView          Action = "view"
	ActionEdit          Action = "edit"
	ActionDelete        Action = "delete"
	ActionExport        Action = "export"
	ActionManageActors  Action = "manage_actors"
	ActionManageOffices Action = "manage_offices"
)

// Capability is a single (category, action) pair.
type Capability struct {
	Category Category `json:"category"`
	Action   Action   `json:"action"`
}

// String renders the capability as "category.action".
func (c Capability) String() string {
	return string(c.Category) + "." + string(c.Action)
}

var catalogue = []Capability{
	{CategoryFallen, ActionView},
	{CategoryFallen, ActionEdit},
	{CategoryFallen, ActionDelete},
	{CategoryDisability, ActionView},
	{CategoryDisability, ActionEdit},
	{CategoryDisability, ActionDelete},
	{CategoryDependent, ActionView},
	{CategoryDependent, ActionEdit},
	{CategoryDependent, ActionDelete},
	{CategoryReports, ActionView},
	{CategoryReports, ActionExport},
	{CategoryAdmin, ActionManageActors},
	{CategoryAdmin, ActionManageOffices},
}

var bitIndex = func() map[Capability]uint {
	idx := make(map[Capability]uint, len(catalogue))
	for i, c := range catalogue {
		idx[c] = uint(i)
	}
	return idx
}()

// Catalogue returns every valid capability in a stable order.
func Catalogue() []Capability {
	out := make([]Capability, len(catalogue))
	copy(out, catalogue)
	return out
}

// Categories returns the categories in catalogue order.
func Categories() []Category {
	return []Category{CategoryFallen, CategoryDisability, CategoryDependent, CategoryReports, CategoryAdmin}
}

// ActionsFor lists the actions that exist for a category.
func ActionsFor(cat Category) []Action {
	var actions []Action
	for _, c := range catalogue {
		if c.Category == cat {
			actions = append(actions, c.Action)
		}
	}
	return actions
}

// Known reports whether the pair is part of the catalogue.
func Known(cat Category, act Action) bool {
	_, ok := bitIndex[Capability{cat, act}]
	return ok
}

// ParseCapability parses "category.action".
func ParseCapability(raw string) (Capability, bool) {
	cat, act, found := strings.Cut(strings.TrimSpace(strings.ToLower(raw)), ".")
	if !found {
		return Capability{}, false
	}
	c := Capability{Category(cat), Action(act)}
	if !Known(c.Category, c.Action) {
		return Capability{}, false
	}
	return c, true
}

// Matrix is an immutable capability grant table. The zero value denies everything.
type Matrix struct {
	bits uint16
}

// Allows reports whether the pair is granted. Unknown pairs are never granted.
func (m Matrix) Allows(cat Category, act Action) bool {
	i, ok := bitIndex[Capability{cat, act}]
	if !ok {
		return false
	}
	return m.bits&(1<<i) != 0
}

// With returns a copy of m with the pair set to granted. Unknown pairs leave m as is.
func (m Matrix) With(cat Category, act Action, granted bool) Matrix {
	i, ok := bitIndex[Capability{cat, act}]
	if !ok {
		return m
	}
	if granted {
		m.bits |= 1 << i
	} else {
		m.bits &^= 1 << i
	}
	return m
}

// Toggle returns a copy of m with the pair flipped.
func (m Matrix) Toggle(cat Category, act Action) Matrix {
	return m.With(cat, act, !m.Allows(cat, act))
}

// Grant returns a copy of m with every listed capability granted.
func (m Matrix) Grant(caps ...Capability) Matrix {
	for _, c := range caps {
		m = m.With(c.Category, c.Action, true)
	}
	return m
}

// Granted lists the granted capabilities in catalogue order.
func (m Matrix) Granted() []Capability {
	var out []Capability
	for _, c := range catalogue {
		if m.Allows(c.Category, c.Action) {
			out = append(out, c)
		}
	}
	return out
}

// legacy key names used by the remote record store.
var (
	legacyCategory = map[string]Category{
		"martyrs":       CategoryFallen,
		"amputees":      CategoryDisability,
		"beneficiaries": CategoryDependent,
		"settings":      CategoryAdmin,
	}
	legacyAction = map[string]Action{
		"manageUsers":   ActionManageActors,
		"manageOffices": ActionManageOffices,
	}
)

// MarshalJSON renders the fully populated nested form.
func (m Matrix) MarshalJSON() ([]byte, error) {
	out := make(map[Category]map[Action]bool, len(Categories()))
	for _, c := range catalogue {
		if out[c.Category] == nil {
			out[c.Category] = make(map[Action]bool)
		}
		out[c.Category][c.Action] = m.Allows(c.Category, c.Action)
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts the nested form with either current or legacy key names.
// Missing entries decode as denied.
func (m *Matrix) UnmarshalJSON(data []byte) error {
	var raw map[string]map[string]bool
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var out Matrix
	for catKey, actions := range raw {
		cat, ok := legacyCategory[catKey]
		if !ok {
			cat = Category(catKey)
		}
		for actKey, granted := range actions {
			act, ok := legacyAction[actKey]
			if !ok {
				act = Action(actKey)
			}
			out = out.With(cat, act, granted)
		}
	}
	*m = out
	return nil
}

// IsAllowed answers whether the actor may perform act on cat. It is decided solely
// from the actor's matrix; the role is never consulted. Disabled actors are denied.
func IsAllowed(actor Actor, cat Category, act Action) bool {
	if actor.Status == StatusDisabled {
		return false
	}
	return actor.Capabilities.Allows(cat, act)
}
