package auth

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"strainforge.org/internal/ids"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Users(context.Context) UserStore                 { return &pgUsers{db: s.db} }
func (s *PGStore) Organizations(context.Context) OrganizationStore { return &pgOrgs{db: s.db} }
func (s *PGStore) Teams(context.Context) TeamStore                 { return &pgTeams{db: s.db} }
func (s *PGStore) Projects(context.Context) ProjectStore           { return &pgProjects{db: s.db} }
func (s *PGStore) Grants(context.Context) GrantStore               { return &pgGrants{db: s.db} }
func (s *PGStore) RefreshTokens(context.Context) RefreshTokenStore { return &pgTokens{db: s.db} }

// User store ---------------------------------------------------------------

type pgUsers struct{ db *sql.DB }

func (s *pgUsers) Create(ctx context.Context, u *User) error {
	if u.ID == "" {
		u.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into users(id, first_name, last_name, email, password_hash, external_uid)
		 values($1,$2,$3,$4,nullif($5,''),nullif($6,''))`,
		u.ID, u.FirstName, u.LastName, u.Email, u.PasswordHash, u.ExternalUID,
	)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	return err
}

const userColumns = `id, first_name, last_name, email,
	coalesce(password_hash, ''), coalesce(external_uid, ''), created_at, updated_at`

func scanUser(row *sql.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email,
		&u.PasswordHash, &u.ExternalUID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (s *pgUsers) Find(ctx context.Context, id string) (*User, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where id=$1`, id))
}

func (s *pgUsers) FindByEmail(ctx context.Context, email string) (*User, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where email=$1`, email))
}

func (s *pgUsers) FindByExternalUID(ctx context.Context, uid string) (*User, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where external_uid=$1`, uid))
}

func (s *pgUsers) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	res, err := s.db.ExecContext(ctx,
		`update users set password_hash=$2, updated_at=now() where id=$1`, userID, passwordHash)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *pgUsers) LinkExternalUID(ctx context.Context, userID, uid string) error {
	res, err := s.db.ExecContext(ctx,
		`update users set external_uid=$2, updated_at=now() where id=$1`, userID, uid)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// Organization store -------------------------------------------------------

type pgOrgs struct{ db *sql.DB }

func (s *pgOrgs) Create(ctx context.Context, org *Organization) error {
	if org.ID == "" {
		org.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into organizations(id, name) values($1,$2)`, org.ID, org.Name)
	return err
}

func (s *pgOrgs) Find(ctx context.Context, id string) (*Organization, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, name, created_at, updated_at from organizations where id=$1`, id)
	var org Organization
	if err := row.Scan(&org.ID, &org.Name, &org.CreatedAt, &org.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &org, nil
}

func (s *pgOrgs) List(ctx context.Context) ([]*Organization, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, name, created_at, updated_at from organizations order by created_at asc`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*Organization
	for rows.Next() {
		var org Organization
		if err := rows.Scan(&org.ID, &org.Name, &org.CreatedAt, &org.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, &org)
	}
	return res, rows.Err()
}

// Team store ---------------------------------------------------------------

type pgTeams struct{ db *sql.DB }

func (s *pgTeams) Create(ctx context.Context, team *Team) error {
	if team.ID == "" {
		team.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into teams(id, organization_id, name) values($1,$2,$3)`,
		team.ID, team.OrganizationID, team.Name)
	return err
}

func (s *pgTeams) Find(ctx context.Context, id string) (*Team, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, organization_id, name, created_at, updated_at from teams where id=$1`, id)
	var team Team
	if err := row.Scan(&team.ID, &team.OrganizationID, &team.Name, &team.CreatedAt, &team.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &team, nil
}

func (s *pgTeams) ListByOrganization(ctx context.Context, orgID string) ([]*Team, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, organization_id, name, created_at, updated_at from teams
		 where organization_id=$1 order by created_at`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*Team
	for rows.Next() {
		var team Team
		if err := rows.Scan(&team.ID, &team.OrganizationID, &team.Name, &team.CreatedAt, &team.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, &team)
	}
	return res, rows.Err()
}

// Project store ------------------------------------------------------------

type pgProjects struct{ db *sql.DB }

func (s *pgProjects) Create(ctx context.Context, p *Project) error {
	if p.ID == "" {
		p.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into projects(id, name) values($1,$2)`, p.ID, p.Name)
	return err
}

func (s *pgProjects) Find(ctx context.Context, id string) (*Project, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, name, created_at, updated_at from projects where id=$1`, id)
	var p Project
	if err := row.Scan(&p.ID, &p.Name, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *pgProjects) List(ctx context.Context) ([]*Project, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, name, created_at, updated_at from projects order by created_at asc`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*Project
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.Name, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, &p)
	}
	return res, rows.Err()
}

func (s *pgProjects) Rename(ctx context.Context, id, name string) error {
	res, err := s.db.ExecContext(ctx,
		`update projects set name=$2, updated_at=now() where id=$1`, id, name)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// Delete removes the project; grant rows are dropped by the foreign keys'
// on delete cascade.
func (s *pgProjects) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from projects where id=$1`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// Grant store --------------------------------------------------------------

type pgGrants struct{ db *sql.DB }

func (s *pgGrants) SetOrganizationMember(ctx context.Context, m OrganizationUser) error {
	_, err := s.db.ExecContext(ctx,
		`insert into organization_users(organization_id, user_id, role) values($1,$2,$3)
		 on conflict (organization_id, user_id) do update set role=excluded.role`,
		m.OrganizationID, m.UserID, string(m.Role))
	return err
}

func (s *pgGrants) OrganizationMemberships(ctx context.Context, userID string) ([]OrganizationUser, error) {
	rows, err := s.db.QueryContext(ctx,
		`select organization_id, user_id, role from organization_users
		 where user_id=$1 order by organization_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []OrganizationUser
	for rows.Next() {
		var (
			rec  OrganizationUser
			role string
		)
		if err := rows.Scan(&rec.OrganizationID, &rec.UserID, &role); err != nil {
			return nil, err
		}
		if rec.Role, err = ParseOrgRole(role); err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

func (s *pgGrants) SetTeamMember(ctx context.Context, m TeamUser) error {
	_, err := s.db.ExecContext(ctx,
		`insert into team_users(team_id, user_id, role) values($1,$2,$3)
		 on conflict (team_id, user_id) do update set role=excluded.role`,
		m.TeamID, m.UserID, string(m.Role))
	return err
}

func (s *pgGrants) TeamMemberships(ctx context.Context, userID string) ([]TeamUser, error) {
	rows, err := s.db.QueryContext(ctx,
		`select team_id, user_id, role from team_users where user_id=$1 order by team_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []TeamUser
	for rows.Next() {
		var (
			rec  TeamUser
			role string
		)
		if err := rows.Scan(&rec.TeamID, &rec.UserID, &role); err != nil {
			return nil, err
		}
		if rec.Role, err = ParseTeamRole(role); err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

func (s *pgGrants) SetOrganizationProject(ctx context.Context, g OrganizationProject) error {
	_, err := s.db.ExecContext(ctx,
		`insert into organization_projects(organization_id, project_id, role) values($1,$2,$3)
		 on conflict (organization_id, project_id) do update set role=excluded.role`,
		g.OrganizationID, g.ProjectID, g.Role.String())
	return err
}

func (s *pgGrants) OrganizationProjects(ctx context.Context, orgID string) ([]OrganizationProject, error) {
	rows, err := s.db.QueryContext(ctx,
		`select organization_id, project_id, role from organization_projects
		 where organization_id=$1 order by project_id`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []OrganizationProject
	for rows.Next() {
		var (
			rec  OrganizationProject
			role string
		)
		if err := rows.Scan(&rec.OrganizationID, &rec.ProjectID, &role); err != nil {
			return nil, err
		}
		if rec.Role, err = ParseProjectRole(role); err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

func (s *pgGrants) SetTeamProject(ctx context.Context, g TeamProject) error {
	_, err := s.db.ExecContext(ctx,
		`insert into team_projects(team_id, project_id, role) values($1,$2,$3)
		 on conflict (team_id, project_id) do update set role=excluded.role`,
		g.TeamID, g.ProjectID, g.Role.String())
	return err
}

func (s *pgGrants) TeamProjects(ctx context.Context, teamID string) ([]TeamProject, error) {
	rows, err := s.db.QueryContext(ctx,
		`select team_id, project_id, role from team_projects
		 where team_id=$1 order by project_id`, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []TeamProject
	for rows.Next() {
		var (
			rec  TeamProject
			role string
		)
		if err := rows.Scan(&rec.TeamID, &rec.ProjectID, &role); err != nil {
			return nil, err
		}
		if rec.Role, err = ParseProjectRole(role); err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

func (s *pgGrants) SetUserProject(ctx context.Context, g UserProject) error {
	_, err := s.db.ExecContext(ctx,
		`insert into user_projects(user_id, project_id, role) values($1,$2,$3)
		 on conflict (user_id, project_id) do update set role=excluded.role`,
		g.UserID, g.ProjectID, g.Role.String())
	return err
}

func (s *pgGrants) UserProjects(ctx context.Context, userID string) ([]UserProject, error) {
	rows, err := s.db.QueryContext(ctx,
		`select user_id, project_id, role from user_projects
		 where user_id=$1 order by project_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []UserProject
	for rows.Next() {
		var (
			rec  UserProject
			role string
		)
		if err := rows.Scan(&rec.UserID, &rec.ProjectID, &role); err != nil {
			return nil, err
		}
		if rec.Role, err = ParseProjectRole(role); err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

// Refresh token store ------------------------------------------------------

type pgTokens struct{ db *sql.DB }

// Create relies on the primary key over the token value: a duplicate value
// fails the insert instead of silently coexisting.
func (s *pgTokens) Create(ctx context.Context, tok *RefreshToken) error {
	_, err := s.db.ExecContext(ctx,
		`insert into refresh_tokens(value, user_id, expires_at) values($1,$2,$3)`,
		tok.Value, tok.UserID, tok.ExpiresAt)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	return err
}

func (s *pgTokens) FindByValue(ctx context.Context, value string) (*RefreshToken, error) {
	row := s.db.QueryRowContext(ctx,
		`select value, user_id, expires_at, created_at from refresh_tokens where value=$1`, value)
	var tok RefreshToken
	if err := row.Scan(&tok.Value, &tok.UserID, &tok.ExpiresAt, &tok.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &tok, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
