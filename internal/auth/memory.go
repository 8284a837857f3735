package auth

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-process Store used by unit tests and the
// development mode. All operations are guarded by one mutex; the service
// itself is request-parallel but each store call is independent.
type MemoryStore struct {
	mu sync.RWMutex

	users    map[string]*User
	orgs     map[string]*Organization
	teams    map[string]*Team
	projects map[string]*Project

	orgUsers    map[string]map[string]OrgRole     // org id -> user id -> role
	teamUsers   map[string]map[string]TeamRole    // team id -> user id -> role
	orgGrants   map[string]map[string]ProjectRole // org id -> project id -> role
	teamGrants  map[string]map[string]ProjectRole // team id -> project id -> role
	userGrants  map[string]map[string]ProjectRole // user id -> project id -> role
	refreshToks map[string]*RefreshToken          // token value -> record
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:       make(map[string]*User),
		orgs:        make(map[string]*Organization),
		teams:       make(map[string]*Team),
		projects:    make(map[string]*Project),
		orgUsers:    make(map[string]map[string]OrgRole),
		teamUsers:   make(map[string]map[string]TeamRole),
		orgGrants:   make(map[string]map[string]ProjectRole),
		teamGrants:  make(map[string]map[string]ProjectRole),
		userGrants:  make(map[string]map[string]ProjectRole),
		refreshToks: make(map[string]*RefreshToken),
	}
}

func (s *MemoryStore) Users(context.Context) UserStore                 { return memUsers{s} }
func (s *MemoryStore) Organizations(context.Context) OrganizationStore { return memOrgs{s} }
func (s *MemoryStore) Teams(context.Context) TeamStore                 { return memTeams{s} }
func (s *MemoryStore) Projects(context.Context) ProjectStore           { return memProjects{s} }
func (s *MemoryStore) Grants(context.Context) GrantStore               { return memGrants{s} }
func (s *MemoryStore) RefreshTokens(context.Context) RefreshTokenStore { return memTokens{s} }

// Users ---------------------------------------------------------------------

type memUsers struct{ s *MemoryStore }

func (m memUsers) Create(_ context.Context, u *User) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, existing := range m.s.users {
		if existing.Email == u.Email {
			return ErrAlreadyExists
		}
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	u.UpdatedAt = u.CreatedAt
	clone := *u
	m.s.users[u.ID] = &clone
	return nil
}

func (m memUsers) Find(_ context.Context, id string) (*User, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	u, ok := m.s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *u
	return &clone, nil
}

func (m memUsers) FindByEmail(_ context.Context, email string) (*User, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	for _, u := range m.s.users {
		if u.Email == email {
			clone := *u
			return &clone, nil
		}
	}
	return nil, ErrNotFound
}

func (m memUsers) FindByExternalUID(_ context.Context, uid string) (*User, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	for _, u := range m.s.users {
		if u.ExternalUID != "" && u.ExternalUID == uid {
			clone := *u
			return &clone, nil
		}
	}
	return nil, ErrNotFound
}

func (m memUsers) UpdatePassword(_ context.Context, userID, passwordHash string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	u, ok := m.s.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (m memUsers) LinkExternalUID(_ context.Context, userID, uid string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	u, ok := m.s.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.ExternalUID = uid
	u.UpdatedAt = time.Now().UTC()
	return nil
}

// Organizations -------------------------------------------------------------

type memOrgs struct{ s *MemoryStore }

func (m memOrgs) Create(_ context.Context, org *Organization) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if org.CreatedAt.IsZero() {
		org.CreatedAt = time.Now().UTC()
	}
	org.UpdatedAt = org.CreatedAt
	clone := *org
	m.s.orgs[org.ID] = &clone
	return nil
}

func (m memOrgs) Find(_ context.Context, id string) (*Organization, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	org, ok := m.s.orgs[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *org
	return &clone, nil
}

func (m memOrgs) List(_ context.Context) ([]*Organization, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	res := make([]*Organization, 0, len(m.s.orgs))
	for _, org := range m.s.orgs {
		clone := *org
		res = append(res, &clone)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

// Teams ---------------------------------------------------------------------

type memTeams struct{ s *MemoryStore }

func (m memTeams) Create(_ context.Context, team *Team) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.orgs[team.OrganizationID]; !ok {
		return ErrNotFound
	}
	if team.CreatedAt.IsZero() {
		team.CreatedAt = time.Now().UTC()
	}
	team.UpdatedAt = team.CreatedAt
	clone := *team
	m.s.teams[team.ID] = &clone
	return nil
}

func (m memTeams) Find(_ context.Context, id string) (*Team, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	team, ok := m.s.teams[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *team
	return &clone, nil
}

func (m memTeams) ListByOrganization(_ context.Context, orgID string) ([]*Team, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	var res []*Team
	for _, team := range m.s.teams {
		if team.OrganizationID == orgID {
			clone := *team
			res = append(res, &clone)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

// Projects ------------------------------------------------------------------

type memProjects struct{ s *MemoryStore }

func (m memProjects) Create(_ context.Context, p *Project) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	p.UpdatedAt = p.CreatedAt
	clone := *p
	m.s.projects[p.ID] = &clone
	return nil
}

func (m memProjects) Find(_ context.Context, id string) (*Project, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	p, ok := m.s.projects[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *p
	return &clone, nil
}

func (m memProjects) List(_ context.Context) ([]*Project, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	res := make([]*Project, 0, len(m.s.projects))
	for _, p := range m.s.projects {
		clone := *p
		res = append(res, &clone)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

func (m memProjects) Rename(_ context.Context, id, name string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	p, ok := m.s.projects[id]
	if !ok {
		return ErrNotFound
	}
	p.Name = name
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (m memProjects) Delete(_ context.Context, id string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.projects[id]; !ok {
		return ErrNotFound
	}
	delete(m.s.projects, id)
	// Cascade: drop every grant referencing the project.
	for _, grants := range m.s.orgGrants {
		delete(grants, id)
	}
	for _, grants := range m.s.teamGrants {
		delete(grants, id)
	}
	for _, grants := range m.s.userGrants {
		delete(grants, id)
	}
	return nil
}

// Grants --------------------------------------------------------------------

type memGrants struct{ s *MemoryStore }

func (m memGrants) SetOrganizationMember(_ context.Context, rec OrganizationUser) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.orgs[rec.OrganizationID]; !ok {
		return ErrNotFound
	}
	members, ok := m.s.orgUsers[rec.OrganizationID]
	if !ok {
		members = make(map[string]OrgRole)
		m.s.orgUsers[rec.OrganizationID] = members
	}
	members[rec.UserID] = rec.Role
	return nil
}

func (m memGrants) OrganizationMemberships(_ context.Context, userID string) ([]OrganizationUser, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	var res []OrganizationUser
	for orgID, members := range m.s.orgUsers {
		if role, ok := members[userID]; ok {
			res = append(res, OrganizationUser{OrganizationID: orgID, UserID: userID, Role: role})
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].OrganizationID < res[j].OrganizationID })
	return res, nil
}

func (m memGrants) SetTeamMember(_ context.Context, rec TeamUser) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.teams[rec.TeamID]; !ok {
		return ErrNotFound
	}
	members, ok := m.s.teamUsers[rec.TeamID]
	if !ok {
		members = make(map[string]TeamRole)
		m.s.teamUsers[rec.TeamID] = members
	}
	members[rec.UserID] = rec.Role
	return nil
}

func (m memGrants) TeamMemberships(_ context.Context, userID string) ([]TeamUser, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	var res []TeamUser
	for teamID, members := range m.s.teamUsers {
		if role, ok := members[userID]; ok {
			res = append(res, TeamUser{TeamID: teamID, UserID: userID, Role: role})
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].TeamID < res[j].TeamID })
	return res, nil
}

func (m memGrants) SetOrganizationProject(_ context.Context, g OrganizationProject) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.orgs[g.OrganizationID]; !ok {
		return ErrNotFound
	}
	if _, ok := m.s.projects[g.ProjectID]; !ok {
		return ErrNotFound
	}
	grants, ok := m.s.orgGrants[g.OrganizationID]
	if !ok {
		grants = make(map[string]ProjectRole)
		m.s.orgGrants[g.OrganizationID] = grants
	}
	grants[g.ProjectID] = g.Role
	return nil
}

func (m memGrants) OrganizationProjects(_ context.Context, orgID string) ([]OrganizationProject, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	var res []OrganizationProject
	for projectID, role := range m.s.orgGrants[orgID] {
		res = append(res, OrganizationProject{OrganizationID: orgID, ProjectID: projectID, Role: role})
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ProjectID < res[j].ProjectID })
	return res, nil
}

func (m memGrants) SetTeamProject(_ context.Context, g TeamProject) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.teams[g.TeamID]; !ok {
		return ErrNotFound
	}
	if _, ok := m.s.projects[g.ProjectID]; !ok {
		return ErrNotFound
	}
	grants, ok := m.s.teamGrants[g.TeamID]
	if !ok {
		grants = make(map[string]ProjectRole)
		m.s.teamGrants[g.TeamID] = grants
	}
	grants[g.ProjectID] = g.Role
	return nil
}

func (m memGrants) TeamProjects(_ context.Context, teamID string) ([]TeamProject, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	var res []TeamProject
	for projectID, role := range m.s.teamGrants[teamID] {
		res = append(res, TeamProject{TeamID: teamID, ProjectID: projectID, Role: role})
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ProjectID < res[j].ProjectID })
	return res, nil
}

func (m memGrants) SetUserProject(_ context.Context, g UserProject) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.users[g.UserID]; !ok {
		return ErrNotFound
	}
	if _, ok := m.s.projects[g.ProjectID]; !ok {
		return ErrNotFound
	}
	grants, ok := m.s.userGrants[g.UserID]
	if !ok {
		grants = make(map[string]ProjectRole)
		m.s.userGrants[g.UserID] = grants
	}
	grants[g.ProjectID] = g.Role
	return nil
}

func (m memGrants) UserProjects(_ context.Context, userID string) ([]UserProject, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	var res []UserProject
	for projectID, role := range m.s.userGrants[userID] {
		res = append(res, UserProject{UserID: userID, ProjectID: projectID, Role: role})
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ProjectID < res[j].ProjectID })
	return res, nil
}

// Refresh tokens ------------------------------------------------------------

type memTokens struct{ s *MemoryStore }

func (m memTokens) Create(_ context.Context, tok *RefreshToken) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.refreshToks[tok.Value]; ok {
		return ErrAlreadyExists
	}
	if tok.CreatedAt.IsZero() {
		tok.CreatedAt = time.Now().UTC()
	}
	clone := *tok
	m.s.refreshToks[tok.Value] = &clone
	return nil
}

func (m memTokens) FindByValue(_ context.Context, value string) (*RefreshToken, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	tok, ok := m.s.refreshToks[value]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *tok
	return &clone, nil
}
