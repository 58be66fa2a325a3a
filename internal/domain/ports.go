package domain

import (
	"context"

	"github.com/google/uuid"
)

// OperationRepository persists the operation hierarchy. Create ensures every
// ancestor path segment exists and links parent pointers in one transaction.
type OperationRepository interface {
	Create(ctx context.Context, name string) (*Operation, error)
	GetByName(ctx context.Context, name string) (*Operation, error)
	List(ctx context.Context) ([]Operation, error)
	Children(ctx context.Context, name string) ([]Operation, error)
	// Delete removes an operation and its permissions. It fails with
	// InvalidStateError while the operation has children and NotFoundError
	// when the name is unknown.
	Delete(ctx context.Context, name string) error
}

// UsersGroupRepository persists users groups, their direct memberships, and
// the materialized ancestor closure.
type UsersGroupRepository interface {
	Create(ctx context.Context, name string) (*UsersGroup, error)
	// CreateChild creates childName under parentName and extends the closure:
	// the child's ancestor set is the parent's ancestor set plus the parent.
	CreateChild(ctx context.Context, parentName, childName string) (*UsersGroup, error)
	GetByName(ctx context.Context, name string) (*UsersGroup, error)
	GetByID(ctx context.Context, id string) (*UsersGroup, error)
	List(ctx context.Context) ([]UsersGroup, error)
	DirectChildren(ctx context.Context, name string) ([]UsersGroup, error)
	AllChildren(ctx context.Context, name string) ([]UsersGroup, error)
	AllParents(ctx context.Context, name string) ([]UsersGroup, error)
	// Delete removes the group, its memberships, its closure rows, and every
	// permission referencing it. Fails with InvalidStateError while the group
	// has direct children and NotFoundError when the name is unknown.
	Delete(ctx context.Context, name string) error
	AddMember(ctx context.Context, groupName, userID string) error
	RemoveMember(ctx context.Context, groupName, userID string) error
	DirectGroupsFor(ctx context.Context, userID string) ([]UsersGroup, error)
	// AssociatedGroupsFor returns the user's direct groups plus every
	// ancestor of a direct group, ordered by name, in a single query.
	AssociatedGroupsFor(ctx context.Context, userID string) ([]UsersGroup, error)
}

// EntitiesGroupRepository is the entity-side mirror of UsersGroupRepository;
// members are entity references resolved by security key.
type EntitiesGroupRepository interface {
	Create(ctx context.Context, name string) (*EntitiesGroup, error)
	CreateChild(ctx context.Context, parentName, childName string) (*EntitiesGroup, error)
	GetByName(ctx context.Context, name string) (*EntitiesGroup, error)
	List(ctx context.Context) ([]EntitiesGroup, error)
	DirectChildren(ctx context.Context, name string) ([]EntitiesGroup, error)
	AllChildren(ctx context.Context, name string) ([]EntitiesGroup, error)
	AllParents(ctx context.Context, name string) ([]EntitiesGroup, error)
	Delete(ctx context.Context, name string) error
	AddMember(ctx context.Context, groupName string, entityReferenceID string) error
	RemoveMember(ctx context.Context, groupName string, entityReferenceID string) error
	DirectGroupsForEntity(ctx context.Context, key uuid.UUID) ([]EntitiesGroup, error)
	AssociatedGroupsForEntity(ctx context.Context, key uuid.UUID) ([]EntitiesGroup, error)
	// MemberKeys returns the security keys of the group's members and of the
	// members of every descendant group.
	MemberKeys(ctx context.Context, groupID string) ([]uuid.UUID, error)
}

// EntityRepository deduplicates entity references and types by natural key.
type EntityRepository interface {
	GetOrCreateType(ctx context.Context, name string) (*EntityType, error)
	GetOrCreateReference(ctx context.Context, key uuid.UUID, typeName string) (*EntityReference, error)
	GetReference(ctx context.Context, key uuid.UUID) (*EntityReference, error)
	// TypeNameFor returns the entity type name recorded for the reference
	// behind key.
	TypeNameFor(ctx context.Context, key uuid.UUID) (string, error)
}

// CandidateQuery scopes permission candidate gathering for one decision.
type CandidateQuery struct {
	// OperationNames is the checked operation plus its ancestors.
	OperationNames []string
	// UserID and GroupIDs describe the subject: the user plus its associated
	// users-group ids (transitive).
	UserID   string
	GroupIDs []string
	// Target is nil for a pure operation check, in which case only
	// global-target permissions are candidates.
	Target *TargetMatch
}

// TargetMatch describes the checked entity: its security key and the ids of
// its associated entities groups (transitive).
type TargetMatch struct {
	EntityKey uuid.UUID
	GroupIDs  []string
}

// PredicateQuery scopes the SQL predicate emitted for bulk query filtering.
type PredicateQuery struct {
	// OperationNames is the checked operation plus its ancestors.
	OperationNames []string
	// UserID plus GroupIDs scope the subject to a full user; an empty UserID
	// with a single GroupIDs entry scopes it to exactly that group.
	UserID   string
	GroupIDs []string
	// KeyColumn is the caller-side column expression holding entity security
	// keys, qualified as needed (e.g. "a.security_key").
	KeyColumn string
}

// PermissionRepository persists permissions and answers the read side of the
// resolution algorithm.
type PermissionRepository interface {
	Save(ctx context.Context, p *Permission) (*Permission, error)
	Delete(ctx context.Context, id string) error
	// FindCandidates returns the applicable permissions ranked by level
	// descending, Deny before Allow at equal level.
	FindCandidates(ctx context.Context, q CandidateQuery) ([]Permission, error)
	// ListForSubject returns every permission whose subject is the user or
	// one of the given groups, regardless of operation or target, ranked.
	// An empty userID restricts the match to the groups alone.
	ListForSubject(ctx context.Context, userID string, groupIDs []string) ([]Permission, error)
	// AllowedEntitiesPredicate builds a boolean SQL clause over KeyColumn that
	// holds exactly for rows whose best-ranked candidate permission allows the
	// operation. No candidates means deny.
	AllowedEntitiesPredicate(q PredicateQuery) (clause string, args []any)
}
