package commands

import (
	"context"
	"fmt"
)

// AccessController evaluates the permission and staff-only gates.
type AccessController struct {
	Categories CategoryProvider
}

// MissingPermissions returns the tokens from required that actor does not hold.
func (a AccessController) MissingPermissions(ctx context.Context, actor Actor, required []Permission) ([]Permission, error) {
	if len(required) == 0 {
		return nil, nil
	}
	var held PermissionSet
	if actor.Access != nil {
		perms, err := actor.Access.Permissions(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: permissions: %w", ErrAccessCheck, err)
		}
		held = perms
	}
	return held.Missing(required), nil
}

// IsStaff reports whether actor holds any role registered on a category of guildID.
func (a AccessController) IsStaff(ctx context.Context, guildID string, actor Actor) (bool, error) {
	if a.Categories == nil || actor.Access == nil {
		return false, nil
	}
	categories, err := a.Categories.ListCategories(ctx, guildID)
	if err != nil {
		return false, fmt.Errorf("%w: categories: %w", ErrAccessCheck, err)
	}
	staff := make(map[string]struct{})
	for _, c := range categories {
		for _, r := range c.Roles {
			staff[r] = struct{}{}
		}
	}
	if len(staff) == 0 {
		return false, nil
	}
	roles, err := actor.Access.Roles(ctx)
	if err != nil {
		return false, fmt.Errorf("%w: roles: %w", ErrAccessCheck, err)
	}
	for _, r := range roles {
		if _, ok := staff[r]; ok {
			return true, nil
		}
	}
	return false, nil
}
