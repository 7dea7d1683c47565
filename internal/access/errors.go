package access

import "errors"

// ErrDenied is matched by every DeniedError.
var ErrDenied = errors.New("access: capability denied")

// DeniedError reports the capability an actor lacked.
type DeniedError struct {
	Capability Capability
}

func (e *DeniedError) Error() string {
	return "access: " + e.Capability.String() + " denied"
}

// Is makes errors.Is(err, ErrDenied) hold.
func (e *DeniedError) Is(target error) bool {
	return target == ErrDenied
}

var denialNotices = map[Action]string{
	ActionView:          "ليس لديك صلاحية العرض",
	ActionEdit:          "ليس لديك صلاحية التعديل",
	ActionDelete:        "ليس لديك صلاحية الحذف",
	ActionExport:        "ليس لديك صلاحية التصدير",
	ActionManageActors:  "ليس لديك صلاحية إدارة المستخدمين",
	ActionManageOffices: "ليس لديك صلاحية إدارة المكاتب",
}

// Notice is the user-facing Arabic message for the denial.
func (e *DeniedError) Notice() string {
	if n, ok := denialNotices[e.Capability.Action]; ok {
		return n
	}
	return "ليس لديك صلاحية"
}

// Require returns a *DeniedError unless IsAllowed holds.
func Require(actor Actor, cat Category, act Action) error {
	if IsAllowed(actor, cat, act) {
		return nil
	}
	return &DeniedError{Capability: Capability{Category: cat, Action: act}}
}
