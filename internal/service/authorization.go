package service

import (
	"strings"

	"github.com/google/uuid"

	"github.com/noah-isme/classroom-api/internal/authz"
	appErrors "github.com/noah-isme/classroom-api/pkg/errors"
)

// authorize maps a policy decision onto the API error taxonomy: anonymous
// callers get 401, authenticated callers lacking the role get 403.
func authorize(actor authz.Actor, resource authz.Resource, action authz.Action) error {
	if authz.Authorize(actor, resource, action).Allowed() {
		return nil
	}
	if !actor.Authenticated() {
		return appErrors.ErrUnauthorized
	}
	return appErrors.ErrForbidden
}

// validID reports whether id is a canonical UUID. Anything else would be
// rejected by the uuid columns.
func validID(id string) bool {
	parsed, err := uuid.Parse(id)
	return err == nil && parsed.String() == strings.ToLower(id)
}

// requireID turns a malformed path id into the same 404 a missing row gets.
func requireID(id, resource string) error {
	if validID(id) {
		return nil
	}
	return appErrors.Clone(appErrors.ErrNotFound, resource+" not found")
}
