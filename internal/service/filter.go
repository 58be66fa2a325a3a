package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"authzkit/internal/domain"
)

// denyAllClause is emitted when the checked operation is not defined: no
// candidates can exist, so no row passes.
const denyAllClause = `0 = 1`

// FilterBuilder translates the resolution rules into predicates over bulk
// queries: a SQL clause the caller appends to its own WHERE, or an in-memory
// predicate over security keys. Both keep exactly the rows whose best-ranked
// candidate permission is an Allow.
type FilterBuilder struct {
	operations     domain.OperationRepository
	usersGroups    domain.UsersGroupRepository
	entitiesGroups domain.EntitiesGroupRepository
	permissions    domain.PermissionRepository
}

// NewFilterBuilder creates a new FilterBuilder.
func NewFilterBuilder(
	operations domain.OperationRepository,
	usersGroups domain.UsersGroupRepository,
	entitiesGroups domain.EntitiesGroupRepository,
	permissions domain.PermissionRepository,
) *FilterBuilder {
	return &FilterBuilder{
		operations:     operations,
		usersGroups:    usersGroups,
		entitiesGroups: entitiesGroups,
		permissions:    permissions,
	}
}

// SQLPredicate builds a boolean SQL clause over keyColumn (the caller-side
// column holding entity security keys, qualified as needed) scoped to the
// user and every group it is associated with.
func (b *FilterBuilder) SQLPredicate(ctx context.Context, user domain.User, operation, keyColumn string) (string, []any, error) {
	opNames, defined, err := b.operationScope(ctx, operation)
	if err != nil {
		return "", nil, err
	}
	if !defined {
		return denyAllClause, nil, nil
	}

	userID := user.SecurityInfo().Identifier
	groups, err := b.usersGroups.AssociatedGroupsFor(ctx, userID)
	if err != nil {
		return "", nil, err
	}

	clause, args := b.permissions.AllowedEntitiesPredicate(domain.PredicateQuery{
		OperationNames: opNames,
		UserID:         userID,
		GroupIDs:       groupIDs(groups),
		KeyColumn:      keyColumn,
	})
	return clause, args, nil
}

// SQLPredicateForGroup builds the same clause scoped to exactly the named
// users group, ignoring any one user's memberships. It answers "what would
// members get directly via this group"; the group's own ancestors are not
// consulted.
func (b *FilterBuilder) SQLPredicateForGroup(ctx context.Context, groupName, operation, keyColumn string) (string, []any, error) {
	opNames, defined, err := b.operationScope(ctx, operation)
	if err != nil {
		return "", nil, err
	}
	if !defined {
		return denyAllClause, nil, nil
	}

	group, err := b.usersGroups.GetByName(ctx, groupName)
	if err != nil {
		return "", nil, err
	}

	clause, args := b.permissions.AllowedEntitiesPredicate(domain.PredicateQuery{
		OperationNames: opNames,
		GroupIDs:       []string{group.ID},
		KeyColumn:      keyColumn,
	})
	return clause, args, nil
}

// Predicate builds an in-memory predicate over security keys for the user
// and operation. The subject's candidates and the member key sets of every
// targeted entities group (descendants included) are fetched once at build
// time; the returned function is pure and cheap per key.
func (b *FilterBuilder) Predicate(ctx context.Context, user domain.User, operation string) (func(uuid.UUID) bool, error) {
	userID := user.SecurityInfo().Identifier
	groups, err := b.usersGroups.AssociatedGroupsFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	return b.predicate(ctx, operation, userID, groupIDs(groups))
}

// PredicateForGroup is the in-memory counterpart of SQLPredicateForGroup.
func (b *FilterBuilder) PredicateForGroup(ctx context.Context, groupName, operation string) (func(uuid.UUID) bool, error) {
	group, err := b.usersGroups.GetByName(ctx, groupName)
	if err != nil {
		return nil, err
	}
	return b.predicate(ctx, operation, "", []string{group.ID})
}

func (b *FilterBuilder) predicate(ctx context.Context, operation, userID string, subjectGroupIDs []string) (func(uuid.UUID) bool, error) {
	opNames, defined, err := b.operationScope(ctx, operation)
	if err != nil {
		return nil, err
	}
	if !defined {
		return func(uuid.UUID) bool { return false }, nil
	}

	perms, err := b.permissions.ListForSubject(ctx, userID, subjectGroupIDs)
	if err != nil {
		return nil, err
	}

	// Keep only operation-scoped candidates; ListForSubject returns them
	// already ranked.
	inScope := make(map[string]bool, len(opNames))
	for _, name := range opNames {
		inScope[name] = true
	}
	candidates := perms[:0:0]
	for _, p := range perms {
		if inScope[p.Operation] {
			candidates = append(candidates, p)
		}
	}

	// Resolve the member key set of every targeted entities group once.
	memberKeys := map[string]map[uuid.UUID]bool{}
	for _, p := range candidates {
		if p.Target.Kind() != domain.TargetGroup {
			continue
		}
		id := p.Target.Group().ID
		if _, done := memberKeys[id]; done {
			continue
		}
		keys, err := b.entitiesGroups.MemberKeys(ctx, id)
		if err != nil {
			return nil, err
		}
		set := make(map[uuid.UUID]bool, len(keys))
		for _, k := range keys {
			set[k] = true
		}
		memberKeys[id] = set
	}

	return func(key uuid.UUID) bool {
		for _, p := range candidates {
			switch p.Target.Kind() {
			case domain.TargetEverything:
				return p.Allow
			case domain.TargetEntity:
				if p.Target.EntityKey() == key {
					return p.Allow
				}
			case domain.TargetGroup:
				if memberKeys[p.Target.Group().ID][key] {
					return p.Allow
				}
			}
		}
		return false
	}, nil
}

// operationScope expands the operation to itself plus its ancestors,
// reporting whether the operation is defined at all.
func (b *FilterBuilder) operationScope(ctx context.Context, operation string) ([]string, bool, error) {
	if err := domain.ValidateOperationName(operation); err != nil {
		return nil, false, err
	}
	if _, err := b.operations.GetByName(ctx, operation); err != nil {
		if errors.As(err, new(*domain.NotFoundError)) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return domain.OperationAncestry(operation), true, nil
}
