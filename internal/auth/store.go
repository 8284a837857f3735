package auth

import "context"

// Store describes persistence operations required by the auth subsystem.
// The association graph is exposed as explicit lookups returning ordered
// slices; there are no live back-references between entities.
type Store interface {
	Users(ctx context.Context) UserStore
	Organizations(ctx context.Context) OrganizationStore
	Teams(ctx context.Context) TeamStore
	Projects(ctx context.Context) ProjectStore
	Grants(ctx context.Context) GrantStore
	RefreshTokens(ctx context.Context) RefreshTokenStore
}

// UserStore manages users.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	Find(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByExternalUID(ctx context.Context, uid string) (*User, error)
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
	LinkExternalUID(ctx context.Context, userID, uid string) error
}

// OrganizationStore manages organizations.
type OrganizationStore interface {
	Create(ctx context.Context, org *Organization) error
	Find(ctx context.Context, id string) (*Organization, error)
	List(ctx context.Context) ([]*Organization, error)
}

// TeamStore manages teams.
type TeamStore interface {
	Create(ctx context.Context, team *Team) error
	Find(ctx context.Context, id string) (*Team, error)
	ListByOrganization(ctx context.Context, orgID string) ([]*Team, error)
}

// ProjectStore manages projects. Delete cascades to every grant record
// referencing the project.
type ProjectStore interface {
	Create(ctx context.Context, p *Project) error
	Find(ctx context.Context, id string) (*Project, error)
	List(ctx context.Context) ([]*Project, error)
	Rename(ctx context.Context, id, name string) error
	Delete(ctx context.Context, id string) error
}

// GrantStore manages membership and grant records. Set operations overwrite
// the role for an existing (principal, target) pair.
type GrantStore interface {
	SetOrganizationMember(ctx context.Context, m OrganizationUser) error
	OrganizationMemberships(ctx context.Context, userID string) ([]OrganizationUser, error)

	SetTeamMember(ctx context.Context, m TeamUser) error
	TeamMemberships(ctx context.Context, userID string) ([]TeamUser, error)

	SetOrganizationProject(ctx context.Context, g OrganizationProject) error
	OrganizationProjects(ctx context.Context, orgID string) ([]OrganizationProject, error)

	SetTeamProject(ctx context.Context, g TeamProject) error
	TeamProjects(ctx context.Context, teamID string) ([]TeamProject, error)

	SetUserProject(ctx context.Context, g UserProject) error
	UserProjects(ctx context.Context, userID string) ([]UserProject, error)
}

// RefreshTokenStore manages refresh token lifecycle. Create must fail on a
// duplicate token value; uniqueness is enforced at the storage layer so a
// commit failure cannot leave a duplicate-value token behind.
type RefreshTokenStore interface {
	Create(ctx context.Context, tok *RefreshToken) error
	FindByValue(ctx context.Context, value string) (*RefreshToken, error)
}
