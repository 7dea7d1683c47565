package access

// Preset returns the grants an actor of the given role starts with when provisioned.
func Preset(role Role) Matrix {
	var m Matrix
	switch role {
	case RoleAdmin:
		return m.Grant(catalogue...)
	case RoleManager:
		return recordGrants(m, ActionView, ActionEdit).Grant(
			Capability{CategoryReports, ActionView},
			Capability{CategoryReports, ActionExport},
		)
	case RoleEntry:
		return recordGrants(m, ActionView, ActionEdit).Grant(Capability{CategoryReports, ActionView})
	default:
		return DefaultGrant()
	}
}

// DefaultGrant is applied to new actors created without an explicit matrix.
func DefaultGrant() Matrix {
	var m Matrix
	return recordGrants(m, ActionView).Grant(Capability{CategoryReports, ActionView})
}

func recordGrants(m Matrix, actions ...Action) Matrix {
	for _, cat := range []Category{CategoryFallen, CategoryDisability, CategoryDependent} {
		for _, act := range actions {
			m = m.With(cat, act, true)
		}
	}
	return m
}
