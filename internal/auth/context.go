package auth

import (
	"context"
	"fmt"

	"github.com/stroyteh/kanban-service/internal/domain"
)

// UserContext holds the authenticated caller
type UserContext struct {
	// UserID is the ERP user id; nil for service callers
	UserID         *int64
	Username       string
	Roles          []domain.Role
	ErpPermissions map[string]interface{}
	IsService      bool
}

type contextKey string

const userContextKey contextKey = "userContext"

// WithUserContext adds user context to the context
func WithUserContext(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// FromContext extracts user context from the context
func FromContext(ctx context.Context) (*UserContext, bool) {
	user, ok := ctx.Value(userContextKey).(*UserContext)
	return user, ok
}

// ServiceUser is the identity of a caller holding the shared service token
func ServiceUser() *UserContext {
	roles := make([]domain.Role, len(domain.AllRoles))
	copy(roles, domain.AllRoles)
	return &UserContext{Username: "service", Roles: roles, IsService: true}
}

// HasRole checks if user has a specific role
func (u *UserContext) HasRole(role domain.Role) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasAnyRole reports whether the user satisfies a route predicate.
// admin and kanban_admin satisfy every predicate.
func (u *UserContext) HasAnyRole(roles ...domain.Role) bool {
	if u.IsService || u.HasRole(domain.RoleAdmin) || u.HasRole(domain.RoleKanbanAdmin) {
		return true
	}
	for _, role := range roles {
		if u.HasRole(role) {
			return true
		}
	}
	return false
}

// Actor returns the identity recorded on events and moves
func (u *UserContext) Actor() domain.Actor {
	if u == nil {
		return domain.SystemActor("anonymous")
	}
	name := u.Username
	if name == "" && u.UserID != nil {
		name = fmt.Sprintf("user:%d", *u.UserID)
	}
	return domain.Actor{UserID: u.UserID, Username: name}
}

// ActorFromContext returns the actor of the authenticated caller
func ActorFromContext(ctx context.Context) domain.Actor {
	user, _ := FromContext(ctx)
	return user.Actor()
}

// RolesAsStrings returns roles as a slice of strings
func (u *UserContext) RolesAsStrings() []string {
	result := make([]string, len(u.Roles))
	for i, role := range u.Roles {
		result[i] = string(role)
	}
	return result
}
