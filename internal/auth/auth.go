// Package auth defines the request principal and the permission oracle
// annotation operations consult.
package auth

import (
	"github.com/annotateapp/annotate-server/internal/domain"
)

// Principal identifies a caller. A zero UserID means the request is
// anonymous; ConsumerKey identifies the API consumer the request came
// through.
type Principal struct {
	UserID      string
	ConsumerKey string
}

// Anonymous reports whether the principal carries no user identity.
func (p Principal) Anonymous() bool {
	return p.UserID == ""
}

// Authorizer answers whether a principal may perform an action on an
// annotation.
type Authorizer interface {
	HasPermission(principal Principal, action string, annotation *domain.Annotation) bool
}

// PermissionsAuthorizer grants access from the annotation's own
// permission lists: the author always passes, the world group opens an
// action to everyone, and otherwise the principal must be listed.
type PermissionsAuthorizer struct{}

// NewAuthorizer returns the default permissions-based oracle.
func NewAuthorizer() *PermissionsAuthorizer {
	return &PermissionsAuthorizer{}
}

// HasPermission implements Authorizer.
func (*PermissionsAuthorizer) HasPermission(principal Principal, action string, annotation *domain.Annotation) bool {
	return annotation.AllowsAction(principal.UserID, action)
}
