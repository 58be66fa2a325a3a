package domain

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// DefaultPermissionLevel is the tie-break weight used when none is given.
const DefaultPermissionLevel = 1

// SubjectKind discriminates the "who" of a permission.
type SubjectKind int

const (
	SubjectUser SubjectKind = iota
	SubjectGroup
)

// Subject is the tagged who-variant of a permission: a user identifier or a
// users group. Exactly one is set by construction.
type Subject struct {
	kind   SubjectKind
	userID string
	group  *UsersGroup
}

// UserSubject builds a subject referencing a user by its opaque identifier.
func UserSubject(userID string) Subject {
	return Subject{kind: SubjectUser, userID: userID}
}

// GroupSubject builds a subject referencing a users group.
func GroupSubject(group *UsersGroup) Subject {
	return Subject{kind: SubjectGroup, group: group}
}

// Kind reports which variant the subject holds.
func (s Subject) Kind() SubjectKind { return s.kind }

// UserID returns the user identifier; empty unless Kind is SubjectUser.
func (s Subject) UserID() string { return s.userID }

// Group returns the users group; nil unless Kind is SubjectGroup.
func (s Subject) Group() *UsersGroup { return s.group }

// Validate checks that the subject variant is internally consistent.
func (s Subject) Validate() error {
	switch s.kind {
	case SubjectUser:
		if s.userID == "" {
			return ErrValidation("permission subject user identifier is required")
		}
	case SubjectGroup:
		if s.group == nil {
			return ErrValidation("permission subject group is required")
		}
	default:
		return ErrValidation("unknown permission subject kind")
	}
	return nil
}

// TargetKind discriminates the "what" of a permission.
type TargetKind int

const (
	TargetEverything TargetKind = iota
	TargetEntity
	TargetGroup
)

// Target is the tagged what-variant of a permission: a single entity by
// security key, an entities group, or everything (global scope).
type Target struct {
	kind  TargetKind
	key   uuid.UUID
	group *EntitiesGroup
}

// EverythingTarget builds the global target.
func EverythingTarget() Target {
	return Target{kind: TargetEverything}
}

// EntityTarget builds a target referencing one entity by security key.
func EntityTarget(key uuid.UUID) Target {
	return Target{kind: TargetEntity, key: key}
}

// GroupTarget builds a target referencing an entities group.
func GroupTarget(group *EntitiesGroup) Target {
	return Target{kind: TargetGroup, group: group}
}

// Kind reports which variant the target holds.
func (t Target) Kind() TargetKind { return t.kind }

// EntityKey returns the entity security key; zero unless Kind is TargetEntity.
func (t Target) EntityKey() uuid.UUID { return t.key }

// Group returns the entities group; nil unless Kind is TargetGroup.
func (t Target) Group() *EntitiesGroup { return t.group }

// Validate checks that the target variant is internally consistent.
func (t Target) Validate() error {
	switch t.kind {
	case TargetEverything:
	case TargetEntity:
		if t.key == uuid.Nil {
			return ErrValidation("permission target entity key is required")
		}
	case TargetGroup:
		if t.group == nil {
			return ErrValidation("permission target group is required")
		}
	default:
		return ErrValidation("unknown permission target kind")
	}
	return nil
}

// Permission is the atomic authorization fact: an Allow or Deny of an
// operation for a subject on a target, weighted by level.
type Permission struct {
	ID        string
	Operation string
	Allow     bool
	Level     int
	Subject   Subject
	Target    Target
	CreatedAt time.Time
}

// Validate checks the permission invariants before persisting.
func (p *Permission) Validate() error {
	if err := ValidateOperationName(p.Operation); err != nil {
		return err
	}
	if err := p.Subject.Validate(); err != nil {
		return err
	}
	return p.Target.Validate()
}

// RankPermissions orders candidates by level descending, Deny before Allow at
// equal level. The first element of a ranked non-empty slice decides the
// authorization outcome.
func RankPermissions(perms []Permission) {
	sort.SliceStable(perms, func(i, j int) bool {
		if perms[i].Level != perms[j].Level {
			return perms[i].Level > perms[j].Level
		}
		return !perms[i].Allow && perms[j].Allow
	})
}
