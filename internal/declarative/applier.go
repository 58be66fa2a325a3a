package declarative

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"authzkit/internal/domain"
)

// Applier reconciles a policy spec against the store. Every step is
// idempotent: existing operations and groups are kept, memberships are set
// semantics, and permissions already present are not duplicated.
type Applier struct {
	operations     domain.OperationRepository
	usersGroups    domain.UsersGroupRepository
	entitiesGroups domain.EntitiesGroupRepository
	entities       domain.EntityRepository
	permissions    domain.PermissionRepository
	logger         *slog.Logger
}

// NewApplier creates a new Applier. logger may be nil.
func NewApplier(
	operations domain.OperationRepository,
	usersGroups domain.UsersGroupRepository,
	entitiesGroups domain.EntitiesGroupRepository,
	entities domain.EntityRepository,
	permissions domain.PermissionRepository,
	logger *slog.Logger,
) *Applier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Applier{
		operations:     operations,
		usersGroups:    usersGroups,
		entitiesGroups: entitiesGroups,
		entities:       entities,
		permissions:    permissions,
		logger:         logger,
	}
}

// Apply reconciles the spec in declaration order: operations, users groups,
// entities groups, memberships, permissions.
func (a *Applier) Apply(ctx context.Context, spec *PolicySpec) error {
	if err := a.applyOperations(ctx, spec.Operations); err != nil {
		return err
	}
	if err := a.applyUsersGroups(ctx, spec.UsersGroups); err != nil {
		return err
	}
	if err := a.applyEntitiesGroups(ctx, spec.EntitiesGroups); err != nil {
		return err
	}
	if err := a.applyMemberships(ctx, spec.Memberships); err != nil {
		return err
	}
	return a.applyPermissions(ctx, spec.Permissions)
}

func (a *Applier) applyOperations(ctx context.Context, names []string) error {
	for _, name := range names {
		_, err := a.operations.Create(ctx, name)
		if errors.As(err, new(*domain.ConflictError)) {
			continue
		}
		if err != nil {
			return err
		}
		a.logger.Info("created operation", "name", name)
	}
	return nil
}

func (a *Applier) applyUsersGroups(ctx context.Context, groups []GroupSpec) error {
	for _, g := range groups {
		var err error
		if g.Parent == "" {
			_, err = a.usersGroups.Create(ctx, g.Name)
		} else {
			_, err = a.usersGroups.CreateChild(ctx, g.Parent, g.Name)
		}
		if errors.As(err, new(*domain.ConflictError)) {
			continue
		}
		if err != nil {
			return err
		}
		a.logger.Info("created users group", "name", g.Name, "parent", g.Parent)
	}
	return nil
}

func (a *Applier) applyEntitiesGroups(ctx context.Context, groups []GroupSpec) error {
	for _, g := range groups {
		var err error
		if g.Parent == "" {
			_, err = a.entitiesGroups.Create(ctx, g.Name)
		} else {
			_, err = a.entitiesGroups.CreateChild(ctx, g.Parent, g.Name)
		}
		if errors.As(err, new(*domain.ConflictError)) {
			continue
		}
		if err != nil {
			return err
		}
		a.logger.Info("created entities group", "name", g.Name, "parent", g.Parent)
	}
	return nil
}

func (a *Applier) applyMemberships(ctx context.Context, memberships []MembershipSpec) error {
	for _, m := range memberships {
		if err := a.usersGroups.AddMember(ctx, m.Group, m.User); err != nil {
			return err
		}
	}
	return nil
}

func (a *Applier) applyPermissions(ctx context.Context, specs []PermissionSpec) error {
	for _, spec := range specs {
		desired, err := a.resolvePermission(ctx, spec)
		if err != nil {
			return err
		}

		exists, err := a.permissionExists(ctx, desired)
		if err != nil {
			return err
		}
		if exists {
			continue
		}

		if _, err := a.permissions.Save(ctx, desired); err != nil {
			return err
		}
		a.logger.Info("created permission",
			"operation", desired.Operation, "allow", desired.Allow, "level", desired.Level)
	}
	return nil
}

func (a *Applier) resolvePermission(ctx context.Context, spec PermissionSpec) (*domain.Permission, error) {
	p := &domain.Permission{
		Operation: spec.Operation,
		Allow:     spec.Allow,
		Level:     spec.Level,
	}
	if p.Level == 0 {
		p.Level = domain.DefaultPermissionLevel
	}

	if spec.User != "" {
		p.Subject = domain.UserSubject(spec.User)
	} else {
		group, err := a.usersGroups.GetByName(ctx, spec.Group)
		if err != nil {
			return nil, err
		}
		p.Subject = domain.GroupSubject(group)
	}

	switch {
	case spec.Entity != "":
		key, err := uuid.Parse(spec.Entity)
		if err != nil {
			return nil, domain.ErrValidation("entity %q is not a UUID", spec.Entity)
		}
		if _, err := a.entities.GetOrCreateReference(ctx, key, spec.EntityType); err != nil {
			return nil, err
		}
		p.Target = domain.EntityTarget(key)
	case spec.EntitiesGroup != "":
		group, err := a.entitiesGroups.GetByName(ctx, spec.EntitiesGroup)
		if err != nil {
			return nil, err
		}
		p.Target = domain.GroupTarget(group)
	default:
		p.Target = domain.EverythingTarget()
	}

	return p, nil
}

// permissionExists reports whether an equivalent permission is already stored.
func (a *Applier) permissionExists(ctx context.Context, desired *domain.Permission) (bool, error) {
	var userID string
	var groupIDs []string
	if desired.Subject.Kind() == domain.SubjectUser {
		userID = desired.Subject.UserID()
	} else {
		groupIDs = []string{desired.Subject.Group().ID}
	}

	existing, err := a.permissions.ListForSubject(ctx, userID, groupIDs)
	if err != nil {
		return false, err
	}
	for _, p := range existing {
		if samePermission(&p, desired) {
			return true, nil
		}
	}
	return false, nil
}

func samePermission(a, b *domain.Permission) bool {
	if a.Operation != b.Operation || a.Allow != b.Allow || a.Level != b.Level {
		return false
	}
	if a.Subject.Kind() != b.Subject.Kind() {
		return false
	}
	if a.Subject.Kind() == domain.SubjectUser && a.Subject.UserID() != b.Subject.UserID() {
		return false
	}
	if a.Subject.Kind() == domain.SubjectGroup && a.Subject.Group().ID != b.Subject.Group().ID {
		return false
	}
	if a.Target.Kind() != b.Target.Kind() {
		return false
	}
	switch a.Target.Kind() {
	case domain.TargetEntity:
		return a.Target.EntityKey() == b.Target.EntityKey()
	case domain.TargetGroup:
		return a.Target.Group().ID == b.Target.Group().ID
	}
	return true
}
