/*
Package visibility decides whose records a user may see.

PURPOSE:
  Every listing and aggregate over owned records (leads, deals, accounts,
  contacts, the dashboard) is narrowed to a set of owners. The set is derived
  from the reporting hierarchy once per request and applied to the query at a
  single integration point, ApplyScope.

RULES:
  - Unrestricted access level: no owner filter at all (Scope.IsUnrestricted).
  - Anyone else: themselves plus their DIRECT reports, i.e. users whose
    manager employee code equals the user's own employee code. Reports of
    reports are not included.
  - A user whose manager code is their own code is top of the hierarchy; the
    self-loop never makes them their own report.
  - A user whose manager code resolves to nobody sees only their own records.

WHY A TAGGED SCOPE:
  An empty owner list never means "everything". Callers must test
  IsUnrestricted explicitly.
*/
package visibility

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// =============================================================================
// ACCESS LEVEL
// =============================================================================

// AccessLevel is ordered: Standard < Admin < Unrestricted.
type AccessLevel int

const (
	Standard AccessLevel = iota
	Admin
	Unrestricted
)

// ParseAccessLevel accepts the stored role names, including the legacy
// "user" and "super_admin" spellings.
func ParseAccessLevel(s string) (AccessLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "standard", "user":
		return Standard, nil
	case "admin":
		return Admin, nil
	case "unrestricted", "super_admin":
		return Unrestricted, nil
	default:
		return Standard, fmt.Errorf("unknown access level %q", s)
	}
}

func (a AccessLevel) String() string {
	switch a {
	case Admin:
		return "admin"
	case Unrestricted:
		return "unrestricted"
	default:
		return "standard"
	}
}

// AtLeast reports whether a grants at least the rights of min.
func (a AccessLevel) AtLeast(min AccessLevel) bool { return a >= min }

// =============================================================================
// ORG USER & DIRECTORY
// =============================================================================

// OrgUser is a person who can own records.
type OrgUser struct {
	ID             string
	EmpCode        string
	ManagerEmpCode string
	Access         AccessLevel
}

// IsTopOfHierarchy is true when the user manages themselves.
func (u OrgUser) IsTopOfHierarchy() bool { return u.ManagerEmpCode == u.EmpCode }

// Directory looks users up by employee code.
type Directory interface {
	ByEmpCode(code string) (OrgUser, bool)
	ReportsOf(managerEmpCode string) []OrgUser
}

// Users is an in-memory Directory over a fetched user collection.
type Users []OrgUser

func (us Users) ByEmpCode(code string) (OrgUser, bool) {
	for _, u := range us {
		if u.EmpCode == code {
			return u, true
		}
	}
	return OrgUser{}, false
}

func (us Users) ReportsOf(managerEmpCode string) []OrgUser {
	var out []OrgUser
	for _, u := range us {
		if u.ManagerEmpCode == managerEmpCode {
			out = append(out, u)
		}
	}
	return out
}

// =============================================================================
// SCOPE
// =============================================================================

// Scope is either unrestricted or an explicit owner set.
type Scope struct {
	unrestricted bool
	owners       []string
}

// AllOwners is the scope that applies no owner filter.
func AllOwners() Scope { return Scope{unrestricted: true} }

// Owners builds a restricted scope. Duplicates are dropped; the result is
// sorted so equal scopes compare equal.
func Owners(ids ...string) Scope {
	seen := make(map[string]bool, len(ids))
	owners := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		owners = append(owners, id)
	}
	sort.Strings(owners)
	return Scope{owners: owners}
}

func (s Scope) IsUnrestricted() bool { return s.unrestricted }

// Owners returns a copy of the owner set. It is nil for an unrestricted scope.
func (s Scope) Owners() []string {
	if s.unrestricted {
		return nil
	}
	return append([]string(nil), s.owners...)
}

// Includes reports whether records owned by id are visible.
func (s Scope) Includes(id string) bool {
	if s.unrestricted {
		return true
	}
	for _, o := range s.owners {
		if o == id {
			return true
		}
	}
	return false
}

func (s Scope) String() string {
	if s.unrestricted {
		return "unrestricted"
	}
	return "owners(" + strings.Join(s.owners, ",") + ")"
}

// =============================================================================
// RESOLUTION
// =============================================================================

// ErrMissingHierarchyLink marks a manager code that resolves to nobody.
var ErrMissingHierarchyLink = errors.New("manager employee code does not resolve to a user")

type MissingHierarchyLinkError struct {
	UserID         string
	ManagerEmpCode string
}

func (e *MissingHierarchyLinkError) Error() string {
	return fmt.Sprintf("user %s: manager employee code %q does not resolve to a user", e.UserID, e.ManagerEmpCode)
}

func (e *MissingHierarchyLinkError) Unwrap() error { return ErrMissingHierarchyLink }

// CheckHierarchy returns a *MissingHierarchyLinkError when user's manager
// code is neither their own nor any known user's.
func CheckHierarchy(user OrgUser, dir Directory) error {
	if user.IsTopOfHierarchy() {
		return nil
	}
	if _, ok := dir.ByEmpCode(user.ManagerEmpCode); ok {
		return nil
	}
	return &MissingHierarchyLinkError{UserID: user.ID, ManagerEmpCode: user.ManagerEmpCode}
}

// ResolveOwnerScope computes whose records user may see. It never fails: a
// broken manager link narrows the scope to the user alone.
func ResolveOwnerScope(user OrgUser, dir Directory) Scope {
	if user.Access == Unrestricted {
		return AllOwners()
	}
	if CheckHierarchy(user, dir) != nil {
		return Owners(user.ID)
	}

	ids := []string{user.ID}
	for _, r := range dir.ReportsOf(user.EmpCode) {
		if r.ID == user.ID {
			continue
		}
		ids = append(ids, r.ID)
	}
	return Owners(ids...)
}

// =============================================================================
// QUERY INTEGRATION
// =============================================================================

// Scopable is a query that can be narrowed to a set of owners. WithOwners
// returns a new query and must intersect with any owner filter already set.
type Scopable[Q any] interface {
	WithOwners(owners []string) Q
}

// ApplyScope returns q unchanged for an unrestricted scope, otherwise q
// narrowed to the scope's owners.
func ApplyScope[Q Scopable[Q]](q Q, s Scope) Q {
	if s.IsUnrestricted() {
		return q
	}
	return q.WithOwners(s.Owners())
}
