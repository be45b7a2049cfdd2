package controllers

import (
	"net/http"

	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/api/responses"
	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/api/validators"
	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/internal/roles"
	pkgerrors "github.com/Dwilson82/Cloud-Event-Monitor-IS4880/pkg/errors"
	"github.com/Dwilson82/Cloud-Event-Monitor-IS4880/pkg/logger"
)

type assignRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=admin publisher viewer"`
}

// AssignRole grants a role to the username in the path, replacing any previous
// assignment.
func AssignRole(svc roles.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "roles service unavailable"))
			return
		}

		username, err := pathParam(r, "username")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload assignRoleRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		assignment, err := svc.AssignRole(r.Context(), username, payload.Role)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, assignment)
	}
}

// GetRole returns the assignment held by one username.
func GetRole(svc roles.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "roles service unavailable"))
			return
		}

		username, err := pathParam(r, "username")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		assignment, err := svc.GetRole(r.Context(), username)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, assignment)
	}
}

// ListRoles returns every assignment in the registry.
func ListRoles(svc roles.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "roles service unavailable"))
			return
		}

		assignments, err := svc.ListRoles(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, assignments)
	}
}

// RemoveRole deletes the assignment for one username. Unknown usernames answer
// not found so a typo never looks like a successful revocation.
func RemoveRole(svc roles.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "roles service unavailable"))
			return
		}

		username, err := pathParam(r, "username")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.RemoveRole(r.Context(), username); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"removed": true, "username": username})
	}
}
