package access

import (
	"fmt"
	"strings"
)

// Role is the global role of a user. It is independent of any carecircle.
type Role string

const (
	RoleAdmin            Role = "admin"
	RolePrimaryCaretaker Role = "primary_caretaker"
	RoleUser             Role = "user"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RolePrimaryCaretaker, RoleUser:
		return true
	}
	return false
}

func ParseRole(s string) (Role, error) {
	r := Role(strings.TrimSpace(s))
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// Namespace groups grant tokens. A grant set holds at most one level per namespace.
type Namespace int

const (
	NamespaceLocation Namespace = iota
	NamespaceCalendar
	NamespaceCarecircle
)

func (n Namespace) String() string {
	switch n {
	case NamespaceLocation:
		return "locations"
	case NamespaceCalendar:
		return "calendar"
	case NamespaceCarecircle:
		return "carecircle"
	}
	return fmt.Sprintf("namespace(%d)", int(n))
}

const (
	TokenLocationWhenAssigned = "when-assigned:locations"
	TokenLocationAlways       = "always:locations"
	TokenCalendarNever        = "never:calendar"
	TokenCalendarRead         = "read:calendar"
	TokenCalendarManage       = "manage:calendar"
	TokenCarecircleNever      = "never:carecircle"
	TokenCarecircleRead       = "read:carecircle"
	TokenCarecircleManage     = "manage:carecircle"
)

// LocationGrant levels are ordered: a higher level implies every lower one.
type LocationGrant int

const (
	LocationNone LocationGrant = iota
	LocationWhenAssigned
	LocationAlways
)

func (g LocationGrant) Token() string {
	switch g {
	case LocationWhenAssigned:
		return TokenLocationWhenAssigned
	case LocationAlways:
		return TokenLocationAlways
	case LocationNone:
		return ""
	}
	return ""
}

func (g LocationGrant) canView() bool {
	switch g {
	case LocationWhenAssigned, LocationAlways:
		return true
	case LocationNone:
		return false
	}
	return false
}

func (g LocationGrant) canManage() bool {
	switch g {
	case LocationAlways:
		return true
	case LocationNone, LocationWhenAssigned:
		return false
	}
	return false
}

type CalendarGrant int

const (
	CalendarNever CalendarGrant = iota
	CalendarRead
	CalendarManage
)

func (g CalendarGrant) Token() string {
	switch g {
	case CalendarNever:
		return TokenCalendarNever
	case CalendarRead:
		return TokenCalendarRead
	case CalendarManage:
		return TokenCalendarManage
	}
	return TokenCalendarNever
}

func (g CalendarGrant) canView() bool {
	switch g {
	case CalendarRead, CalendarManage:
		return true
	case CalendarNever:
		return false
	}
	return false
}

func (g CalendarGrant) canManage() bool {
	switch g {
	case CalendarManage:
		return true
	case CalendarNever, CalendarRead:
		return false
	}
	return false
}

type CarecircleGrant int

const (
	CarecircleNever CarecircleGrant = iota
	CarecircleRead
	CarecircleManage
)

func (g CarecircleGrant) Token() string {
	switch g {
	case CarecircleNever:
		return TokenCarecircleNever
	case CarecircleRead:
		return TokenCarecircleRead
	case CarecircleManage:
		return TokenCarecircleManage
	}
	return TokenCarecircleNever
}

func (g CarecircleGrant) canView() bool {
	switch g {
	case CarecircleRead, CarecircleManage:
		return true
	case CarecircleNever:
		return false
	}
	return false
}

func (g CarecircleGrant) canManage() bool {
	switch g {
	case CarecircleManage:
		return true
	case CarecircleNever, CarecircleRead:
		return false
	}
	return false
}

// GrantSet is the parsed form of a membership's grant list.
type GrantSet struct {
	Location   LocationGrant
	Calendar   CalendarGrant
	Carecircle CarecircleGrant

	// Unknown holds tokens that matched no namespace. They grant nothing.
	Unknown []string

	seen      [3]int
	conflicts []Namespace
}

// ParseGrants never fails: unknown tokens are collected and several tokens in
// one namespace keep the highest level, which is what containment checks on
// the raw list would yield.
func ParseGrants(tokens []string) GrantSet {
	var g GrantSet
	for _, raw := range tokens {
		token := strings.TrimSpace(raw)
		switch token {
		case TokenLocationWhenAssigned:
			g.location(LocationWhenAssigned)
		case TokenLocationAlways:
			g.location(LocationAlways)
		case TokenCalendarNever:
			g.calendar(CalendarNever)
		case TokenCalendarRead:
			g.calendar(CalendarRead)
		case TokenCalendarManage:
			g.calendar(CalendarManage)
		case TokenCarecircleNever:
			g.carecircle(CarecircleNever)
		case TokenCarecircleRead:
			g.carecircle(CarecircleRead)
		case TokenCarecircleManage:
			g.carecircle(CarecircleManage)
		default:
			g.Unknown = append(g.Unknown, raw)
		}
	}
	return g
}

func (g *GrantSet) mark(ns Namespace) {
	g.seen[ns]++
	if g.seen[ns] == 2 {
		g.conflicts = append(g.conflicts, ns)
	}
}

func (g *GrantSet) location(level LocationGrant) {
	g.mark(NamespaceLocation)
	if level > g.Location {
		g.Location = level
	}
}

func (g *GrantSet) calendar(level CalendarGrant) {
	g.mark(NamespaceCalendar)
	if level > g.Calendar {
		g.Calendar = level
	}
}

func (g *GrantSet) carecircle(level CarecircleGrant) {
	g.mark(NamespaceCarecircle)
	if level > g.Carecircle {
		g.Carecircle = level
	}
}

// Conflicts lists namespaces that received more than one token.
func (g GrantSet) Conflicts() []Namespace {
	return g.conflicts
}

// Has reports whether the namespace received at least one token.
func (g GrantSet) Has(ns Namespace) bool {
	return g.seen[ns] > 0
}

// Tokens renders the set in positional order: location, calendar, carecircle.
// A set without a location grant renders two tokens.
func (g GrantSet) Tokens() []string {
	out := make([]string, 0, 3)
	if t := g.Location.Token(); t != "" {
		out = append(out, t)
	}
	return append(out, g.Calendar.Token(), g.Carecircle.Token())
}

// GrantError is returned by Normalize for lists that must not be stored.
type GrantError struct {
	Unknown   []string
	Conflicts []Namespace
}

func (e *GrantError) Error() string {
	var parts []string
	if len(e.Unknown) > 0 {
		parts = append(parts, fmt.Sprintf("unknown grants: %s", strings.Join(e.Unknown, ", ")))
	}
	for _, ns := range e.Conflicts {
		parts = append(parts, fmt.Sprintf("more than one grant for %s", ns))
	}
	return strings.Join(parts, "; ")
}

// Normalize validates a grant list for storage and returns its canonical
// three-slot form. Namespaces that are absent take the default level.
func Normalize(tokens []string) ([]string, error) {
	g := ParseGrants(tokens)
	if len(g.Unknown) > 0 || len(g.conflicts) > 0 {
		return nil, &GrantError{Unknown: g.Unknown, Conflicts: g.conflicts}
	}
	if !g.Has(NamespaceLocation) {
		g.Location = LocationWhenAssigned
	}
	return g.Tokens(), nil
}
