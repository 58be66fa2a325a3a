package domain

import "time"

// UsersGroup is a named collection of users. Groups nest through a single
// optional parent; ancestor relationships are materialized in a closure table
// so membership tests never walk the graph at read time.
type UsersGroup struct {
	ID        string
	Name      string
	ParentID  *string
	CreatedAt time.Time
}

// EntitiesGroup is a named collection of secured entities, with the same
// nesting model as UsersGroup.
type EntitiesGroup struct {
	ID        string
	Name      string
	ParentID  *string
	CreatedAt time.Time
}

// CreateGroupRequest holds parameters for creating a users group or an
// entities group.
type CreateGroupRequest struct {
	Name       string
	ParentName string // optional; when set the new group is created as a child
}

// Validate checks that the request is well-formed.
func (r *CreateGroupRequest) Validate() error {
	if r.Name == "" {
		return ErrValidation("group name is required")
	}
	return nil
}

// GroupNames projects a slice of users groups to their names, preserving
// order.
func GroupNames(groups []UsersGroup) []string {
	names := make([]string, len(groups))
	for i, g := range groups {
		names[i] = g.Name
	}
	return names
}

// EntitiesGroupNames projects a slice of entities groups to their names,
// preserving order.
func EntitiesGroupNames(groups []EntitiesGroup) []string {
	names := make([]string, len(groups))
	for i, g := range groups {
		names[i] = g.Name
	}
	return names
}
