package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"authzkit/internal/domain"
)

// AuthorizationService is the permissions resolution engine: it gathers the
// candidate permissions for (subject, operation, optional target), ranks them
// by level descending with Deny before Allow at equal level, and lets the
// first candidate decide. No candidates means deny. The engine never mutates
// permission or group data.
type AuthorizationService struct {
	operations     domain.OperationRepository
	usersGroups    domain.UsersGroupRepository
	entitiesGroups domain.EntitiesGroupRepository
	entities       domain.EntityRepository
	permissions    domain.PermissionRepository
	hierarchy      *HierarchyService
	extractors     map[string]domain.EntityInformationExtractor
}

// NewAuthorizationService creates a new AuthorizationService. extractors maps
// entity type names to their information extractor and may be nil; it is used
// only to describe target entities in explanations.
func NewAuthorizationService(
	operations domain.OperationRepository,
	usersGroups domain.UsersGroupRepository,
	entitiesGroups domain.EntitiesGroupRepository,
	entities domain.EntityRepository,
	permissions domain.PermissionRepository,
	hierarchy *HierarchyService,
	extractors map[string]domain.EntityInformationExtractor,
) *AuthorizationService {
	return &AuthorizationService{
		operations:     operations,
		usersGroups:    usersGroups,
		entitiesGroups: entitiesGroups,
		entities:       entities,
		permissions:    permissions,
		hierarchy:      hierarchy,
		extractors:     extractors,
	}
}

// IsAllowed decides a pure operation check: only global-target permissions
// are candidates.
func (s *AuthorizationService) IsAllowed(ctx context.Context, user domain.User, operation string) (bool, error) {
	perms, err := s.GetPermissionsForOperation(ctx, user, operation)
	if err != nil {
		return false, err
	}
	return len(perms) > 0 && perms[0].Allow, nil
}

// IsAllowedOn decides an operation check against one target entity.
func (s *AuthorizationService) IsAllowedOn(ctx context.Context, user domain.User, key uuid.UUID, operation string) (bool, error) {
	perms, err := s.GetPermissionsForEntity(ctx, user, key, operation)
	if err != nil {
		return false, err
	}
	return len(perms) > 0 && perms[0].Allow, nil
}

// GetPermissionsFor returns every permission applying to the user directly or
// through any of its associated groups, regardless of operation or target,
// ranked.
func (s *AuthorizationService) GetPermissionsFor(ctx context.Context, user domain.User) ([]domain.Permission, error) {
	userID := user.SecurityInfo().Identifier
	groups, err := s.usersGroups.AssociatedGroupsFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.permissions.ListForSubject(ctx, userID, groupIDs(groups))
}

// GetPermissionsForOperation returns the ranked candidates for a pure
// operation check (global-target permissions only).
func (s *AuthorizationService) GetPermissionsForOperation(ctx context.Context, user domain.User, operation string) ([]domain.Permission, error) {
	q, err := s.candidateQuery(ctx, user, operation)
	if err != nil || q == nil {
		return nil, err
	}
	return s.permissions.FindCandidates(ctx, *q)
}

// GetPermissionsForEntity returns the ranked candidates for an operation
// check against the entity behind key: permissions on the entity itself, on
// any of its associated entities groups, or on everything.
func (s *AuthorizationService) GetPermissionsForEntity(ctx context.Context, user domain.User, key uuid.UUID, operation string) ([]domain.Permission, error) {
	q, err := s.candidateQuery(ctx, user, operation)
	if err != nil || q == nil {
		return nil, err
	}

	entityGroups, err := s.entitiesGroups.AssociatedGroupsForEntity(ctx, key)
	if err != nil {
		return nil, err
	}
	q.Target = &domain.TargetMatch{
		EntityKey: key,
		GroupIDs:  entitiesGroupIDs(entityGroups),
	}
	return s.permissions.FindCandidates(ctx, *q)
}

// candidateQuery builds the subject and operation scope shared by all
// resolution queries. A nil result means the operation is not defined, which
// resolves to the default deny rather than an error.
func (s *AuthorizationService) candidateQuery(ctx context.Context, user domain.User, operation string) (*domain.CandidateQuery, error) {
	if err := domain.ValidateOperationName(operation); err != nil {
		return nil, err
	}
	if _, err := s.operations.GetByName(ctx, operation); err != nil {
		if errors.As(err, new(*domain.NotFoundError)) {
			return nil, nil
		}
		return nil, err
	}

	userID := user.SecurityInfo().Identifier
	groups, err := s.usersGroups.AssociatedGroupsFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &domain.CandidateQuery{
		OperationNames: domain.OperationAncestry(operation),
		UserID:         userID,
		GroupIDs:       groupIDs(groups),
	}, nil
}

// GetAuthorizationInformation explains a pure operation check.
func (s *AuthorizationService) GetAuthorizationInformation(ctx context.Context, user domain.User, operation string) (*domain.AuthorizationInformation, error) {
	return s.explain(ctx, user, nil, operation)
}

// GetAuthorizationInformationOn explains an operation check against one
// target entity.
func (s *AuthorizationService) GetAuthorizationInformationOn(ctx context.Context, user domain.User, key uuid.UUID, operation string) (*domain.AuthorizationInformation, error) {
	return s.explain(ctx, user, &key, operation)
}

func (s *AuthorizationService) explain(ctx context.Context, user domain.User, key *uuid.UUID, operation string) (*domain.AuthorizationInformation, error) {
	info := &domain.AuthorizationInformation{}

	if _, err := s.operations.GetByName(ctx, operation); err != nil {
		if errors.As(err, new(*domain.NotFoundError)) {
			info.Add(fmt.Sprintf("Operation %q is not defined", operation))
			return info, nil
		}
		return nil, err
	}

	var perms []domain.Permission
	var err error
	if key == nil {
		perms, err = s.GetPermissionsForOperation(ctx, user, operation)
	} else {
		perms, err = s.GetPermissionsForEntity(ctx, user, *key, operation)
	}
	if err != nil {
		return nil, err
	}

	if len(perms) == 0 {
		info.Add(s.notGrantedMessage(ctx, user, key, operation))
		return info, nil
	}

	for _, p := range perms {
		line, err := s.describePermission(ctx, user, p)
		if err != nil {
			return nil, err
		}
		info.Add(line)
	}
	return info, nil
}

func (s *AuthorizationService) notGrantedMessage(ctx context.Context, user domain.User, key *uuid.UUID, operation string) string {
	name := user.SecurityInfo().Name
	groups, _ := s.hierarchy.GetAssociatedGroupsFor(ctx, user)
	msg := fmt.Sprintf("Permission for operation %q was not granted to user %q or to the groups %q is associated with (%s)",
		operation, name, name, quoteJoin(domain.GroupNames(groups)))

	if key != nil {
		entityGroups, _ := s.entitiesGroups.AssociatedGroupsForEntity(ctx, *key)
		msg += fmt.Sprintf(" on %s or on the groups it belongs to (%s)",
			s.describeEntity(ctx, *key), quoteJoin(domain.EntitiesGroupNames(entityGroups)))
	}
	return msg
}

func (s *AuthorizationService) describePermission(ctx context.Context, user domain.User, p domain.Permission) (string, error) {
	verb := "denied"
	if p.Allow {
		verb = "granted"
	}

	var subject string
	switch p.Subject.Kind() {
	case domain.SubjectUser:
		subject = fmt.Sprintf("user %q", user.SecurityInfo().Name)
	case domain.SubjectGroup:
		group := p.Subject.Group()
		chain, err := s.hierarchy.GetAncestryAssociation(ctx, user, group.Name)
		if err != nil {
			return "", err
		}
		subject = fmt.Sprintf("group %q (%q reaches it through %s)",
			group.Name, user.SecurityInfo().Name, arrowJoin(domain.GroupNames(chain)))
	}

	var target string
	switch p.Target.Kind() {
	case domain.TargetEverything:
		target = "everything"
	case domain.TargetEntity:
		target = s.describeEntity(ctx, p.Target.EntityKey())
	case domain.TargetGroup:
		target = fmt.Sprintf("entities group %q", p.Target.Group().Name)
	}

	return fmt.Sprintf("Permission (level %d) for operation %q was %s to %s on %s",
		p.Level, p.Operation, verb, subject, target), nil
}

// describeEntity resolves a human-readable label for the entity behind key
// through the registered extractor for its type, falling back to the key
// itself.
func (s *AuthorizationService) describeEntity(ctx context.Context, key uuid.UUID) string {
	typeName, err := s.entities.TypeNameFor(ctx, key)
	if err != nil {
		return fmt.Sprintf("entity %s", key)
	}
	extractor, ok := s.extractors[typeName]
	if !ok {
		return fmt.Sprintf("%s %s", typeName, key)
	}
	desc, err := extractor.Description(ctx, key)
	if err != nil || desc == "" {
		return fmt.Sprintf("%s %s", typeName, key)
	}
	return fmt.Sprintf("%q", desc)
}

func groupIDs(groups []domain.UsersGroup) []string {
	ids := make([]string, len(groups))
	for i, g := range groups {
		ids[i] = g.ID
	}
	return ids
}

func entitiesGroupIDs(groups []domain.EntitiesGroup) []string {
	ids := make([]string, len(groups))
	for i, g := range groups {
		ids[i] = g.ID
	}
	return ids
}

func quoteJoin(names []string) string {
	if len(names) == 0 {
		return "none"
	}
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = fmt.Sprintf("%q", n)
	}
	return strings.Join(quoted, ", ")
}

func arrowJoin(names []string) string {
	if len(names) == 0 {
		return "direct membership"
	}
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = fmt.Sprintf("%q", n)
	}
	return strings.Join(quoted, " -> ")
}
