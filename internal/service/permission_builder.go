package service

import (
	"context"

	"github.com/google/uuid"

	"authzkit/internal/domain"
)

// PermissionsBuilderService is the authoring surface for permissions. Each
// fluent stage locks in one field; the stage types make skipping a stage a
// compile error. Names are resolved and the permission persisted only at
// Save.
type PermissionsBuilderService struct {
	operations     domain.OperationRepository
	usersGroups    domain.UsersGroupRepository
	entitiesGroups domain.EntitiesGroupRepository
	entities       domain.EntityRepository
	permissions    domain.PermissionRepository
}

// NewPermissionsBuilderService creates a new PermissionsBuilderService.
func NewPermissionsBuilderService(
	operations domain.OperationRepository,
	usersGroups domain.UsersGroupRepository,
	entitiesGroups domain.EntitiesGroupRepository,
	entities domain.EntityRepository,
	permissions domain.PermissionRepository,
) *PermissionsBuilderService {
	return &PermissionsBuilderService{
		operations:     operations,
		usersGroups:    usersGroups,
		entitiesGroups: entitiesGroups,
		entities:       entities,
		permissions:    permissions,
	}
}

// Allow starts building an Allow permission for the named operation.
func (s *PermissionsBuilderService) Allow(operation string) *ForStage {
	return &ForStage{svc: s, build: build{operation: operation, allow: true}}
}

// Deny starts building a Deny permission for the named operation.
func (s *PermissionsBuilderService) Deny(operation string) *ForStage {
	return &ForStage{svc: s, build: build{operation: operation, allow: false}}
}

// build accumulates the pending permission across stages.
type build struct {
	operation string
	allow     bool
	level     int

	user      domain.User
	groupName string

	entityKey       uuid.UUID
	entityTypeName  string
	targetGroupName string
	targetKind      domain.TargetKind
}

// ForStage picks the subject.
type ForStage struct {
	svc   *PermissionsBuilderService
	build build
}

// For scopes the permission to a single user.
func (f *ForStage) For(user domain.User) *OnStage {
	f.build.user = user
	return &OnStage{svc: f.svc, build: f.build}
}

// ForGroup scopes the permission to the named users group.
func (f *ForStage) ForGroup(groupName string) *OnStage {
	f.build.groupName = groupName
	return &OnStage{svc: f.svc, build: f.build}
}

// OnStage picks the target.
type OnStage struct {
	svc   *PermissionsBuilderService
	build build
}

// OnEverything scopes the permission globally.
func (o *OnStage) OnEverything() *LevelStage {
	o.build.targetKind = domain.TargetEverything
	return &LevelStage{svc: o.svc, build: o.build}
}

// On scopes the permission to one entity by security key. The entity's
// reference is created lazily at Save.
func (o *OnStage) On(key uuid.UUID, typeName string) *LevelStage {
	o.build.targetKind = domain.TargetEntity
	o.build.entityKey = key
	o.build.entityTypeName = typeName
	return &LevelStage{svc: o.svc, build: o.build}
}

// OnGroup scopes the permission to the named entities group.
func (o *OnStage) OnGroup(groupName string) *LevelStage {
	o.build.targetKind = domain.TargetGroup
	o.build.targetGroupName = groupName
	return &LevelStage{svc: o.svc, build: o.build}
}

// LevelStage picks the tie-break level.
type LevelStage struct {
	svc   *PermissionsBuilderService
	build build
}

// Level sets an explicit tie-break level.
func (l *LevelStage) Level(level int) *SaveStage {
	l.build.level = level
	return &SaveStage{svc: l.svc, build: l.build}
}

// DefaultLevel uses the default tie-break level.
func (l *LevelStage) DefaultLevel() *SaveStage {
	return l.Level(domain.DefaultPermissionLevel)
}

// SaveStage persists the accumulated permission.
type SaveStage struct {
	svc   *PermissionsBuilderService
	build build
}

// Save resolves the referenced names, materializes lazily-created entity
// references, and persists the permission.
func (s *SaveStage) Save(ctx context.Context) (*domain.Permission, error) {
	b := s.build

	p := &domain.Permission{
		Operation: b.operation,
		Allow:     b.allow,
		Level:     b.level,
	}

	if b.user != nil {
		p.Subject = domain.UserSubject(b.user.SecurityInfo().Identifier)
	} else {
		group, err := s.svc.usersGroups.GetByName(ctx, b.groupName)
		if err != nil {
			return nil, err
		}
		p.Subject = domain.GroupSubject(group)
	}

	switch b.targetKind {
	case domain.TargetEverything:
		p.Target = domain.EverythingTarget()
	case domain.TargetEntity:
		if _, err := s.svc.entities.GetOrCreateReference(ctx, b.entityKey, b.entityTypeName); err != nil {
			return nil, err
		}
		p.Target = domain.EntityTarget(b.entityKey)
	case domain.TargetGroup:
		group, err := s.svc.entitiesGroups.GetByName(ctx, b.targetGroupName)
		if err != nil {
			return nil, err
		}
		p.Target = domain.GroupTarget(group)
	}

	return s.svc.permissions.Save(ctx, p)
}
