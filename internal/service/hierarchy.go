// Package service implements the group hierarchy manager, the permissions
// resolution engine, the permission builder, and the query filter builder on
// top of the domain repository interfaces.
package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"authzkit/internal/domain"
)

// HierarchyService maintains users-group and entities-group hierarchies and
// answers membership queries. It owns all structural mutation of group
// closures; the resolution engine only reads them.
type HierarchyService struct {
	usersGroups    domain.UsersGroupRepository
	entitiesGroups domain.EntitiesGroupRepository
	entities       domain.EntityRepository
}

// NewHierarchyService creates a new HierarchyService backed by the given
// repositories.
func NewHierarchyService(
	usersGroups domain.UsersGroupRepository,
	entitiesGroups domain.EntitiesGroupRepository,
	entities domain.EntityRepository,
) *HierarchyService {
	return &HierarchyService{
		usersGroups:    usersGroups,
		entitiesGroups: entitiesGroups,
		entities:       entities,
	}
}

// CreateUsersGroup creates a root-level users group.
func (s *HierarchyService) CreateUsersGroup(ctx context.Context, name string) (*domain.UsersGroup, error) {
	return s.usersGroups.Create(ctx, name)
}

// CreateChildUsersGroup creates childName under parentName. The child's
// ancestor set becomes the parent's ancestor set plus the parent itself.
func (s *HierarchyService) CreateChildUsersGroup(ctx context.Context, parentName, childName string) (*domain.UsersGroup, error) {
	return s.usersGroups.CreateChild(ctx, parentName, childName)
}

// RemoveUsersGroup deletes the named group together with its memberships,
// closure rows, and every permission referencing it. Removing a missing
// group is a no-op; removing a group with direct children fails with
// InvalidStateError.
func (s *HierarchyService) RemoveUsersGroup(ctx context.Context, name string) error {
	err := s.usersGroups.Delete(ctx, name)
	if errors.As(err, new(*domain.NotFoundError)) {
		return nil
	}
	return err
}

// AssociateUserWith adds the user to the named group. Membership is a set:
// associating twice has no additional effect.
func (s *HierarchyService) AssociateUserWith(ctx context.Context, user domain.User, groupName string) error {
	return s.usersGroups.AddMember(ctx, groupName, user.SecurityInfo().Identifier)
}

// DetachUserFromGroup removes the user from the named group. Fails with
// NotFoundError when the group does not exist.
func (s *HierarchyService) DetachUserFromGroup(ctx context.Context, user domain.User, groupName string) error {
	return s.usersGroups.RemoveMember(ctx, groupName, user.SecurityInfo().Identifier)
}

// GetAssociatedGroupsFor returns the user's direct groups plus every ancestor
// of a direct group, deduplicated and ordered by name.
func (s *HierarchyService) GetAssociatedGroupsFor(ctx context.Context, user domain.User) ([]domain.UsersGroup, error) {
	return s.usersGroups.AssociatedGroupsFor(ctx, user.SecurityInfo().Identifier)
}

// GetAncestryAssociation returns the shortest chain of groups connecting the
// user to targetGroupName, ordered from the user's direct group up to the
// target, inclusive. A direct member gets the single-element chain [target];
// a user not associated with the target gets an empty chain. When several
// equal-length chains exist the first one found wins; no particular order is
// guaranteed beyond "a valid shortest path".
func (s *HierarchyService) GetAncestryAssociation(ctx context.Context, user domain.User, targetGroupName string) ([]domain.UsersGroup, error) {
	userID := user.SecurityInfo().Identifier

	direct, err := s.usersGroups.DirectGroupsFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, g := range direct {
		if g.Name == targetGroupName {
			return []domain.UsersGroup{g}, nil
		}
	}

	associated, err := s.usersGroups.AssociatedGroupsFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]domain.UsersGroup, len(associated))
	var target *domain.UsersGroup
	for _, g := range associated {
		byID[g.ID] = g
		if g.Name == targetGroupName {
			t := g
			target = &t
		}
	}
	if target == nil {
		return nil, nil
	}

	// Walk parent links up from each direct group; keep the shortest chain
	// that tops out at the target.
	var best []domain.UsersGroup
	for _, d := range direct {
		chain := []domain.UsersGroup{d}
		cur := d
		for cur.ID != target.ID && cur.ParentID != nil {
			parent, ok := byID[*cur.ParentID]
			if !ok {
				break
			}
			chain = append(chain, parent)
			cur = parent
		}
		if cur.ID != target.ID {
			continue
		}
		if best == nil || len(chain) < len(best) {
			best = chain
		}
	}
	return best, nil
}

// CreateEntitiesGroup creates a root-level entities group.
func (s *HierarchyService) CreateEntitiesGroup(ctx context.Context, name string) (*domain.EntitiesGroup, error) {
	return s.entitiesGroups.Create(ctx, name)
}

// CreateChildEntitiesGroup creates childName under parentName.
func (s *HierarchyService) CreateChildEntitiesGroup(ctx context.Context, parentName, childName string) (*domain.EntitiesGroup, error) {
	return s.entitiesGroups.CreateChild(ctx, parentName, childName)
}

// RemoveEntitiesGroup deletes the named entities group. Removing a missing
// group is a no-op; removing a group with direct children fails with
// InvalidStateError.
func (s *HierarchyService) RemoveEntitiesGroup(ctx context.Context, name string) error {
	err := s.entitiesGroups.Delete(ctx, name)
	if errors.As(err, new(*domain.NotFoundError)) {
		return nil
	}
	return err
}

// AssociateEntityWith adds the entity behind key to the named entities group,
// creating its reference (and type) lazily on first association.
func (s *HierarchyService) AssociateEntityWith(ctx context.Context, key uuid.UUID, typeName, groupName string) error {
	ref, err := s.entities.GetOrCreateReference(ctx, key, typeName)
	if err != nil {
		return err
	}
	return s.entitiesGroups.AddMember(ctx, groupName, ref.ID)
}

// DetachEntityFromGroup removes the entity behind key from the named entities
// group. Fails with NotFoundError when the group or the reference does not
// exist.
func (s *HierarchyService) DetachEntityFromGroup(ctx context.Context, key uuid.UUID, groupName string) error {
	ref, err := s.entities.GetReference(ctx, key)
	if err != nil {
		return err
	}
	return s.entitiesGroups.RemoveMember(ctx, groupName, ref.ID)
}

// GetAssociatedEntitiesGroupsFor returns the entity's direct groups plus
// every ancestor of a direct group, deduplicated and ordered by name.
func (s *HierarchyService) GetAssociatedEntitiesGroupsFor(ctx context.Context, key uuid.UUID) ([]domain.EntitiesGroup, error) {
	return s.entitiesGroups.AssociatedGroupsForEntity(ctx, key)
}
