// Package declarative loads authorization policy from YAML and applies it to
// the store idempotently. A policy file declares operations, group trees,
// memberships, and permissions; applying the same file twice leaves the store
// unchanged.
package declarative

// SupportedAPIVersion is the only apiVersion accepted by the loader.
const SupportedAPIVersion = "authzkit/v1"

// KindNamePolicy is the expected kind field of a policy document.
const KindNamePolicy = "Policy"

// PolicyDoc is the YAML envelope of a policy file.
type PolicyDoc struct {
	APIVersion string     `yaml:"apiVersion"`
	Kind       string     `yaml:"kind"`
	Spec       PolicySpec `yaml:"spec"`
}

// PolicySpec declares the desired authorization state.
type PolicySpec struct {
	Operations     []string         `yaml:"operations,omitempty"`
	UsersGroups    []GroupSpec      `yaml:"users_groups,omitempty"`
	EntitiesGroups []GroupSpec      `yaml:"entities_groups,omitempty"`
	Memberships    []MembershipSpec `yaml:"memberships,omitempty"`
	Permissions    []PermissionSpec `yaml:"permissions,omitempty"`
}

// GroupSpec declares one group; parent must be declared earlier in the list
// or already exist in the store.
type GroupSpec struct {
	Name   string `yaml:"name"`
	Parent string `yaml:"parent,omitempty"`
}

// MembershipSpec puts one user into one users group.
type MembershipSpec struct {
	User  string `yaml:"user"`
	Group string `yaml:"group"`
}

// PermissionSpec declares one permission. Exactly one of user/group names the
// subject; at most one of entity/entities_group names the target (neither
// means everything). entity targets also need entity_type so the reference
// can be created lazily.
type PermissionSpec struct {
	Operation     string `yaml:"operation"`
	Allow         bool   `yaml:"allow"`
	Level         int    `yaml:"level,omitempty"`
	User          string `yaml:"user,omitempty"`
	Group         string `yaml:"group,omitempty"`
	Entity        string `yaml:"entity,omitempty"` // security key (UUID)
	EntityType    string `yaml:"entity_type,omitempty"`
	EntitiesGroup string `yaml:"entities_group,omitempty"`
}
