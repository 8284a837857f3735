package auth

import (
	"errors"
	"strings"
	"testing"
)

func TestRequireAuthenticated(t *testing.T) {
	if err := RequireAuthenticated(Unauthenticated()); !errors.Is(err, ErrAuthenticationRequired) {
		t.Fatalf("expected ErrAuthenticationRequired, got %v", err)
	}
	rc := RequestClaims{Authenticated: true, UserID: "u1", Projects: AccessMap{}}
	if err := RequireAuthenticated(rc); err != nil {
		t.Fatalf("expected nil for authenticated request, got %v", err)
	}
}

func TestRequireAccess(t *testing.T) {
	rc := RequestClaims{
		Authenticated: true,
		UserID:        "u1",
		Projects:      AccessMap{"p1": RoleWrite},
	}

	cases := []struct {
		name      string
		projectID string
		required  ProjectRole
		wantErr   error
		reason    string
	}{
		{"sufficient exact", "p1", RoleWrite, nil, ""},
		{"sufficient higher", "p1", RoleRead, nil, ""},
		{"insufficient", "p1", RoleAdmin, ErrForbidden, "requires access level"},
		{"no grant", "p2", RoleRead, ErrForbidden, "no access"},
		{"public read", "", RoleRead, nil, ""},
		{"public write blocked", "", RoleWrite, ErrForbidden, "public data cannot be modified"},
		{"public admin blocked", "", RoleAdmin, ErrForbidden, "public data cannot be modified"},
		{"invalid level", "p1", ProjectRole(9), ErrInvalidInput, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := RequireAccess(rc, tc.projectID, tc.required)
			if tc.wantErr == nil {
				if err != nil {
					t.Fatalf("expected success, got %v", err)
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
			if tc.reason != "" && !strings.Contains(err.Error(), tc.reason) {
				t.Fatalf("expected reason containing %q, got %q", tc.reason, err.Error())
			}
		})
	}
}

func TestRequireAccessInsufficientNamesBothLevels(t *testing.T) {
	rc := RequestClaims{Authenticated: true, Projects: AccessMap{"p1": RoleRead}}
	err := RequireAccess(rc, "p1", RoleAdmin)
	if err == nil {
		t.Fatal("expected forbidden error")
	}
	msg := err.Error()
	if !strings.Contains(msg, `"admin"`) || !strings.Contains(msg, `"read"`) {
		t.Fatalf("expected message to name required and actual levels, got %q", msg)
	}
}

func TestRequireAccessUnauthenticatedPublicRead(t *testing.T) {
	// Public reads require no authentication at all.
	if err := RequireAccess(Unauthenticated(), "", RoleRead); err != nil {
		t.Fatalf("expected public read to succeed, got %v", err)
	}
	if err := RequireAccess(Unauthenticated(), "p1", RoleRead); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden for project read without claims, got %v", err)
	}
}
