package httpapi

import (
	"net/http"
	"strings"

	"strainforge.org/internal/auth"
	"strainforge.org/internal/ids"
)

type projectRequest struct {
	Name string `json:"name"`
}

type projectResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role,omitempty"`
}

func (a *API) handleProjectsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listProjects(w, r)
	case http.MethodPost:
		a.createProject(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleProjectResource(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/projects/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		a.getProject(w, r, id)
	case http.MethodPut:
		a.renameProject(w, r, id)
	case http.MethodDelete:
		a.deleteProject(w, r, id)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

// listProjects returns only the projects the caller's claims grant access
// to, with the caller's effective role on each.
func (a *API) listProjects(w http.ResponseWriter, r *http.Request) {
	rc := auth.RequestClaimsFromContext(r.Context())
	if err := auth.RequireAuthenticated(rc); err != nil {
		handleAuthError(w, r, err)
		return
	}

	projects, err := a.store.Projects(r.Context()).List(r.Context())
	if err != nil {
		handleAuthError(w, r, err)
		return
	}

	res := make([]projectResponse, 0)
	for _, p := range projects {
		role, ok := rc.Projects[p.ID]
		if !ok {
			continue
		}
		res = append(res, projectResponse{ID: p.ID, Name: p.Name, Role: role.String()})
	}
	writeJSON(w, http.StatusOK, res)
}

// createProject creates a project and grants the creator admin on it. The
// caller must re-authenticate (or refresh) before the grant shows up in
// their bearer token.
func (a *API) createProject(w http.ResponseWriter, r *http.Request) {
	rc := auth.RequestClaimsFromContext(r.Context())
	if err := auth.RequireAuthenticated(rc); err != nil {
		handleAuthError(w, r, err)
		return
	}

	var req projectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		writeError(w, r, http.StatusBadRequest, "name is required")
		return
	}

	project := &auth.Project{ID: ids.New(), Name: name}
	if err := a.store.Projects(r.Context()).Create(r.Context(), project); err != nil {
		handleAuthError(w, r, err)
		return
	}
	grant := auth.UserProject{UserID: rc.UserID, ProjectID: project.ID, Role: auth.RoleAdmin}
	if err := a.store.Grants(r.Context()).SetUserProject(r.Context(), grant); err != nil {
		handleAuthError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, projectResponse{
		ID:   project.ID,
		Name: project.Name,
		Role: auth.RoleAdmin.String(),
	})
}

func (a *API) getProject(w http.ResponseWriter, r *http.Request, id string) {
	rc := auth.RequestClaimsFromContext(r.Context())
	if err := auth.RequireAccess(rc, id, auth.RoleRead); err != nil {
		handleAuthError(w, r, err)
		return
	}

	project, err := a.store.Projects(r.Context()).Find(r.Context(), id)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, projectResponse{
		ID:   project.ID,
		Name: project.Name,
		Role: rc.Projects[id].String(),
	})
}

func (a *API) renameProject(w http.ResponseWriter, r *http.Request, id string) {
	rc := auth.RequestClaimsFromContext(r.Context())
	if err := auth.RequireAccess(rc, id, auth.RoleWrite); err != nil {
		handleAuthError(w, r, err)
		return
	}

	var req projectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		writeError(w, r, http.StatusBadRequest, "name is required")
		return
	}

	if err := a.store.Projects(r.Context()).Rename(r.Context(), id, name); err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, projectResponse{
		ID:   id,
		Name: name,
		Role: rc.Projects[id].String(),
	})
}

func (a *API) deleteProject(w http.ResponseWriter, r *http.Request, id string) {
	rc := auth.RequestClaimsFromContext(r.Context())
	if err := auth.RequireAccess(rc, id, auth.RoleAdmin); err != nil {
		handleAuthError(w, r, err)
		return
	}

	if err := a.store.Projects(r.Context()).Delete(r.Context(), id); err != nil {
		handleAuthError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
