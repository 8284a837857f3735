package auth

import "time"

// User is a principal. PasswordHash is empty for federated-only accounts;
// ExternalUID is empty for local-only accounts.
type User struct {
	ID           string    `json:"id"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	ExternalUID  string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// FullName joins first and last name for display.
func (u *User) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// Organization is a named group owning teams, user memberships and project
// grants.
type Organization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Team belongs to exactly one organization.
type Team struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Name           string    `json:"name"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Project is the resource being protected.
type Project struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OrganizationUser records a user's membership in an organization. At most
// one record exists per (organization, user); the role is overwritten, not
// accumulated.
type OrganizationUser struct {
	OrganizationID string  `json:"organization_id"`
	UserID         string  `json:"user_id"`
	Role           OrgRole `json:"role"`
}

// TeamUser records a user's membership in a team.
type TeamUser struct {
	TeamID string   `json:"team_id"`
	UserID string   `json:"user_id"`
	Role   TeamRole `json:"role"`
}

// OrganizationProject grants an organization a role on a project.
type OrganizationProject struct {
	OrganizationID string      `json:"organization_id"`
	ProjectID      string      `json:"project_id"`
	Role           ProjectRole `json:"role"`
}

// TeamProject grants a team a role on a project.
type TeamProject struct {
	TeamID    string      `json:"team_id"`
	ProjectID string      `json:"project_id"`
	Role      ProjectRole `json:"role"`
}

// UserProject grants a user a role on a project directly.
type UserProject struct {
	UserID    string      `json:"user_id"`
	ProjectID string      `json:"project_id"`
	Role      ProjectRole `json:"role"`
}

// RefreshToken is a persisted long-lived opaque credential. A user may hold
// several at once (one per device). Tokens expire naturally; there is no
// explicit revocation in the current design.
type RefreshToken struct {
	Value     string    `json:"-"`
	UserID    string    `json:"-"`
	ExpiresAt time.Time `json:"-"`
	CreatedAt time.Time `json:"-"`
}
