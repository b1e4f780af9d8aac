package access

import "fmt"

// PLWDRef is the part of a PLWD the policy needs.
type PLWDRef struct {
	ID          string
	CaretakerID string
}

// Subject is everything the policy looks at for one (user, plwd) pair.
type Subject struct {
	UserID string
	Role   Role
	PLWD   PLWDRef
	Grants []string
}

type Capabilities struct {
	CanAccessLocation   bool `json:"canAccessLocation"`
	CanManageLocation   bool `json:"canManageLocation"`
	CanAccessCalendar   bool `json:"canAccessCalendar"`
	CanManageCalendar   bool `json:"canManageCalendar"`
	CanAccessCarecircle bool `json:"canAccessCarecircle"`
	CanManageCarecircle bool `json:"canManageCarecircle"`
}

// Capability names a single flag of Capabilities.
type Capability int

const (
	AccessLocation Capability = iota
	ManageLocation
	AccessCalendar
	ManageCalendar
	AccessCarecircle
	ManageCarecircle
)

func (c Capability) String() string {
	switch c {
	case AccessLocation:
		return "canAccessLocation"
	case ManageLocation:
		return "canManageLocation"
	case AccessCalendar:
		return "canAccessCalendar"
	case ManageCalendar:
		return "canManageCalendar"
	case AccessCarecircle:
		return "canAccessCarecircle"
	case ManageCarecircle:
		return "canManageCarecircle"
	}
	return fmt.Sprintf("capability(%d)", int(c))
}

func (c Capabilities) Allows(capability Capability) bool {
	switch capability {
	case AccessLocation:
		return c.CanAccessLocation
	case ManageLocation:
		return c.CanManageLocation
	case AccessCalendar:
		return c.CanAccessCalendar
	case ManageCalendar:
		return c.CanManageCalendar
	case AccessCarecircle:
		return c.CanAccessCarecircle
	case ManageCarecircle:
		return c.CanManageCarecircle
	}
	return false
}

// Full grants every capability.
func Full() Capabilities {
	return Capabilities{
		CanAccessLocation:   true,
		CanManageLocation:   true,
		CanAccessCalendar:   true,
		CanManageCalendar:   true,
		CanAccessCarecircle: true,
		CanManageCarecircle: true,
	}
}

// Basis records which rule produced a decision.
type Basis int

const (
	BasisGrants Basis = iota
	BasisAdmin
	BasisOwner
)

func (b Basis) String() string {
	switch b {
	case BasisAdmin:
		return "admin"
	case BasisOwner:
		return "owner"
	case BasisGrants:
		return "grants"
	}
	return fmt.Sprintf("basis(%d)", int(b))
}

// Decision is the full result of evaluating a subject.
type Decision struct {
	Capabilities Capabilities
	Basis        Basis
	Grants       GrantSet
}

// Decide applies the rules in order: admin, owner, grants.
func Decide(s Subject) Decision {
	grants := ParseGrants(s.Grants)
	switch {
	case s.Role == RoleAdmin:
		return Decision{Capabilities: Full(), Basis: BasisAdmin, Grants: grants}
	case s.UserID != "" && s.UserID == s.PLWD.CaretakerID:
		return Decision{Capabilities: Full(), Basis: BasisOwner, Grants: grants}
	}
	return Decision{Capabilities: FromGrants(grants), Basis: BasisGrants, Grants: grants}
}

// Evaluate returns the capabilities of a subject.
func Evaluate(s Subject) Capabilities {
	return Decide(s).Capabilities
}

// FromGrants derives capabilities from grants alone, without bypass rules.
func FromGrants(g GrantSet) Capabilities {
	return Capabilities{
		CanAccessLocation:   g.Location.canView(),
		CanManageLocation:   g.Location.canManage(),
		CanAccessCalendar:   g.Calendar.canView(),
		CanManageCalendar:   g.Calendar.canManage(),
		CanAccessCarecircle: g.Carecircle.canView(),
		CanManageCarecircle: g.Carecircle.canManage(),
	}
}
