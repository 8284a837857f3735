package auth

import (
	"context"
	"fmt"
)

// AccessMap holds the maximum role a principal can reach for each project.
type AccessMap map[string]ProjectRole

// grant records a candidate role; keep-highest resolves conflicts.
func (m AccessMap) grant(projectID string, role ProjectRole) {
	if current, ok := m[projectID]; ok && current >= role {
		return
	}
	m[projectID] = role
}

// ClaimResolver computes a principal's project access from the ownership
// graph. It holds no state beyond the store and resolves fresh on every
// call: tokens must reflect the database at signing time, never a cache.
type ClaimResolver struct {
	store Store
}

// NewClaimResolver constructs a resolver over the given store.
func NewClaimResolver(store Store) *ClaimResolver {
	return &ClaimResolver{store: store}
}

// Resolve walks every membership path of the user and reduces candidate
// roles to the maximum per project:
//
//  1. organization owner: admin on all projects granted to the
//     organization or to any of its teams, regardless of the stated role;
//  2. organization member: the stated role of each organization grant;
//  3. team member (maintainer or member alike): the stated role of each
//     team grant;
//  4. direct user grant: the stated role.
func (r *ClaimResolver) Resolve(ctx context.Context, userID string) (AccessMap, error) {
	grants := r.store.Grants(ctx)
	teams := r.store.Teams(ctx)

	access := make(AccessMap)

	orgMemberships, err := grants.OrganizationMemberships(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("resolve organization memberships: %w", err)
	}
	for _, m := range orgMemberships {
		orgGrants, err := grants.OrganizationProjects(ctx, m.OrganizationID)
		if err != nil {
			return nil, fmt.Errorf("resolve organization grants: %w", err)
		}
		owner := m.Role == OrgRoleOwner
		for _, g := range orgGrants {
			if owner {
				access.grant(g.ProjectID, RoleAdmin)
			} else {
				access.grant(g.ProjectID, g.Role)
			}
		}
		if !owner {
			continue
		}
		// Owners bypass team-level grants entirely.
		orgTeams, err := teams.ListByOrganization(ctx, m.OrganizationID)
		if err != nil {
			return nil, fmt.Errorf("resolve organization teams: %w", err)
		}
		for _, team := range orgTeams {
			teamGrants, err := grants.TeamProjects(ctx, team.ID)
			if err != nil {
				return nil, fmt.Errorf("resolve team grants: %w", err)
			}
			for _, g := range teamGrants {
				access.grant(g.ProjectID, RoleAdmin)
			}
		}
	}

	teamMemberships, err := grants.TeamMemberships(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("resolve team memberships: %w", err)
	}
	for _, m := range teamMemberships {
		teamGrants, err := grants.TeamProjects(ctx, m.TeamID)
		if err != nil {
			return nil, fmt.Errorf("resolve team grants: %w", err)
		}
		for _, g := range teamGrants {
			access.grant(g.ProjectID, g.Role)
		}
	}

	userGrants, err := grants.UserProjects(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("resolve user grants: %w", err)
	}
	for _, g := range userGrants {
		access.grant(g.ProjectID, g.Role)
	}

	return access, nil
}
