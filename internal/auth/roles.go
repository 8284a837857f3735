package auth

import "fmt"

// ProjectRole is the access level a grant confers on a project. Roles form
// a strict total order: read < write < admin.
type ProjectRole uint8

const (
	RoleRead ProjectRole = iota + 1
	RoleWrite
	RoleAdmin
)

var projectRoleNames = map[ProjectRole]string{
	RoleRead:  "read",
	RoleWrite: "write",
	RoleAdmin: "admin",
}

func (r ProjectRole) String() string {
	if name, ok := projectRoleNames[r]; ok {
		return name
	}
	return fmt.Sprintf("ProjectRole(%d)", uint8(r))
}

// Valid reports whether r is a member of the closed role set.
func (r ProjectRole) Valid() bool {
	_, ok := projectRoleNames[r]
	return ok
}

// AtLeast reports whether r satisfies the required level under the
// read < write < admin order.
func (r ProjectRole) AtLeast(required ProjectRole) bool {
	return r >= required
}

// ParseProjectRole maps a stored role string onto the enum. Unknown strings
// are rejected at the storage boundary rather than coerced.
func ParseProjectRole(s string) (ProjectRole, error) {
	switch s {
	case "read":
		return RoleRead, nil
	case "write":
		return RoleWrite, nil
	case "admin":
		return RoleAdmin, nil
	default:
		return 0, fmt.Errorf("%w: unknown project role %q", ErrInvalidInput, s)
	}
}

// MarshalText encodes the role by name so project→role maps serialize to
// the wire form used in JWT claims.
func (r ProjectRole) MarshalText() ([]byte, error) {
	name, ok := projectRoleNames[r]
	if !ok {
		return nil, fmt.Errorf("invalid project role %d", uint8(r))
	}
	return []byte(name), nil
}

func (r *ProjectRole) UnmarshalText(text []byte) error {
	parsed, err := ParseProjectRole(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// OrgRole is a user's membership role within an organization. Owners get
// admin access to every project reachable through the organization; members
// pass through the stated grant role unchanged.
type OrgRole string

const (
	OrgRoleOwner  OrgRole = "owner"
	OrgRoleMember OrgRole = "member"
)

// ParseOrgRole validates an organization membership role string.
func ParseOrgRole(s string) (OrgRole, error) {
	switch OrgRole(s) {
	case OrgRoleOwner, OrgRoleMember:
		return OrgRole(s), nil
	default:
		return "", fmt.Errorf("%w: unknown organization role %q", ErrInvalidInput, s)
	}
}

// TeamRole is a user's membership role within a team. It currently has no
// effect on project access; maintainers differ from members only for team
// administration.
type TeamRole string

const (
	TeamRoleMaintainer TeamRole = "maintainer"
	TeamRoleMember     TeamRole = "member"
)

// ParseTeamRole validates a team membership role string.
func ParseTeamRole(s string) (TeamRole, error) {
	switch TeamRole(s) {
	case TeamRoleMaintainer, TeamRoleMember:
		return TeamRole(s), nil
	default:
		return "", fmt.Errorf("%w: unknown team role %q", ErrInvalidInput, s)
	}
}
