package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"authzkit/internal/domain"
)

var _ domain.EntitiesGroupRepository = (*EntitiesGroupRepo)(nil)

// EntitiesGroupRepo implements domain.EntitiesGroupRepository using SQLite.
// It mirrors UsersGroupRepo with entity references as members.
type EntitiesGroupRepo struct {
	db *sql.DB
}

// NewEntitiesGroupRepo creates a new EntitiesGroupRepo.
func NewEntitiesGroupRepo(db *sql.DB) *EntitiesGroupRepo {
	return &EntitiesGroupRepo{db: db}
}

// Create inserts a new root-level group.
func (r *EntitiesGroupRepo) Create(ctx context.Context, name string) (*domain.EntitiesGroup, error) {
	if name == "" {
		return nil, domain.ErrValidation("group name is required")
	}
	g := &domain.EntitiesGroup{ID: domain.NewID(), Name: name, CreatedAt: time.Now().UTC()}
	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO entities_groups (id, name, created_at) VALUES (?, ?, ?)`,
		g.ID, g.Name, g.CreatedAt); err != nil {
		return nil, mapDBError(err)
	}
	return g, nil
}

// CreateChild inserts childName under parentName with closure bookkeeping.
func (r *EntitiesGroupRepo) CreateChild(ctx context.Context, parentName, childName string) (*domain.EntitiesGroup, error) {
	if childName == "" {
		return nil, domain.ErrValidation("group name is required")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}

	var parentID string
	if err := tx.QueryRowContext(ctx,
		`SELECT id FROM entities_groups WHERE name = ?`, parentName).Scan(&parentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, rollback(tx, domain.ErrNotFound("entities group %q not found", parentName))
		}
		return nil, rollback(tx, err)
	}

	g := &domain.EntitiesGroup{
		ID:        domain.NewID(),
		Name:      childName,
		ParentID:  &parentID,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO entities_groups (id, name, parent_id, created_at) VALUES (?, ?, ?, ?)`,
		g.ID, g.Name, g.ParentID, g.CreatedAt); err != nil {
		return nil, rollback(tx, mapDBError(err))
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO entities_groups_hierarchy (group_id, ancestor_id)
		 SELECT ?, ancestor_id FROM entities_groups_hierarchy WHERE group_id = ?`,
		g.ID, parentID); err != nil {
		return nil, rollback(tx, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO entities_groups_hierarchy (group_id, ancestor_id) VALUES (?, ?)`,
		g.ID, parentID); err != nil {
		return nil, rollback(tx, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return g, nil
}

// GetByName returns the group with the given name.
func (r *EntitiesGroupRepo) GetByName(ctx context.Context, name string) (*domain.EntitiesGroup, error) {
	g := &domain.EntitiesGroup{Name: name}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, parent_id, created_at FROM entities_groups WHERE name = ?`, name).
		Scan(&g.ID, &g.ParentID, &g.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound("entities group %q not found", name)
		}
		return nil, err
	}
	return g, nil
}

// List returns all groups ordered by name.
func (r *EntitiesGroupRepo) List(ctx context.Context) ([]domain.EntitiesGroup, error) {
	return r.queryGroups(ctx,
		`SELECT id, name, parent_id, created_at FROM entities_groups ORDER BY name`)
}

// DirectChildren returns the one-level children of the named group.
func (r *EntitiesGroupRepo) DirectChildren(ctx context.Context, name string) ([]domain.EntitiesGroup, error) {
	g, err := r.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	return r.queryGroups(ctx,
		`SELECT id, name, parent_id, created_at FROM entities_groups WHERE parent_id = ? ORDER BY name`,
		g.ID)
}

// AllChildren returns the full transitive descendant set of the named group.
func (r *EntitiesGroupRepo) AllChildren(ctx context.Context, name string) ([]domain.EntitiesGroup, error) {
	g, err := r.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	return r.queryGroups(ctx,
		`SELECT g.id, g.name, g.parent_id, g.created_at
		 FROM entities_groups g
		 JOIN entities_groups_hierarchy h ON h.group_id = g.id
		 WHERE h.ancestor_id = ?
		 ORDER BY g.name`, g.ID)
}

// AllParents returns the full transitive ancestor set of the named group.
func (r *EntitiesGroupRepo) AllParents(ctx context.Context, name string) ([]domain.EntitiesGroup, error) {
	g, err := r.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	return r.queryGroups(ctx,
		`SELECT g.id, g.name, g.parent_id, g.created_at
		 FROM entities_groups g
		 JOIN entities_groups_hierarchy h ON h.ancestor_id = g.id
		 WHERE h.group_id = ?
		 ORDER BY g.name`, g.ID)
}

// Delete removes the named group, its memberships, its closure rows, and
// every permission referencing it. Fails with InvalidStateError while the
// group has direct children.
func (r *EntitiesGroupRepo) Delete(ctx context.Context, name string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	var id string
	if err := tx.QueryRowContext(ctx,
		`SELECT id FROM entities_groups WHERE name = ?`, name).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rollback(tx, domain.ErrNotFound("entities group %q not found", name))
		}
		return rollback(tx, err)
	}

	var children int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM entities_groups WHERE parent_id = ?`, id).Scan(&children); err != nil {
		return rollback(tx, err)
	}
	if children > 0 {
		return rollback(tx, domain.ErrInvalidState("entities group %q still has child groups", name))
	}

	for _, stmt := range []string{
		`DELETE FROM permissions WHERE entities_group_id = ?`,
		`DELETE FROM entities_groups_members WHERE group_id = ?`,
		`DELETE FROM entities_groups_hierarchy WHERE group_id = ?`,
		`DELETE FROM entities_groups WHERE id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
			return rollback(tx, err)
		}
	}

	return tx.Commit()
}

// AddMember adds an entity reference to the named group. Set semantics:
// adding twice has no additional effect.
func (r *EntitiesGroupRepo) AddMember(ctx context.Context, groupName string, entityReferenceID string) error {
	g, err := r.GetByName(ctx, groupName)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO entities_groups_members (group_id, entity_reference_id) VALUES (?, ?)
		 ON CONFLICT (group_id, entity_reference_id) DO NOTHING`,
		g.ID, entityReferenceID)
	return mapDBError(err)
}

// RemoveMember removes an entity reference from the named group.
func (r *EntitiesGroupRepo) RemoveMember(ctx context.Context, groupName string, entityReferenceID string) error {
	g, err := r.GetByName(ctx, groupName)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`DELETE FROM entities_groups_members WHERE group_id = ? AND entity_reference_id = ?`,
		g.ID, entityReferenceID)
	return err
}

// DirectGroupsForEntity returns the groups the entity is a direct member of,
// ordered by name.
func (r *EntitiesGroupRepo) DirectGroupsForEntity(ctx context.Context, key uuid.UUID) ([]domain.EntitiesGroup, error) {
	return r.queryGroups(ctx,
		`SELECT g.id, g.name, g.parent_id, g.created_at
		 FROM entities_groups g
		 JOIN entities_groups_members m ON m.group_id = g.id
		 JOIN entity_references er ON er.id = m.entity_reference_id
		 WHERE er.security_key = ?
		 ORDER BY g.name`, key.String())
}

// AssociatedGroupsForEntity returns the entity's direct groups plus every
// ancestor of a direct group, deduplicated and ordered by name.
func (r *EntitiesGroupRepo) AssociatedGroupsForEntity(ctx context.Context, key uuid.UUID) ([]domain.EntitiesGroup, error) {
	return r.queryGroups(ctx,
		`SELECT g.id, g.name, g.parent_id, g.created_at
		 FROM entities_groups g
		 WHERE g.id IN (
		        SELECT m.group_id
		        FROM entities_groups_members m
		        JOIN entity_references er ON er.id = m.entity_reference_id
		        WHERE er.security_key = ?)
		    OR g.id IN (
		        SELECT h.ancestor_id
		        FROM entities_groups_hierarchy h
		        JOIN entities_groups_members m ON m.group_id = h.group_id
		        JOIN entity_references er ON er.id = m.entity_reference_id
		        WHERE er.security_key = ?)
		 ORDER BY g.name`, key.String(), key.String())
}

// MemberKeys returns the security keys of the group's members and of the
// members of every descendant group.
func (r *EntitiesGroupRepo) MemberKeys(ctx context.Context, groupID string) ([]uuid.UUID, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT er.security_key
		 FROM entities_groups_members m
		 JOIN entity_references er ON er.id = m.entity_reference_id
		 WHERE m.group_id = ?
		    OR m.group_id IN (
		        SELECT h.group_id FROM entities_groups_hierarchy h WHERE h.ancestor_id = ?)`,
		groupID, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []uuid.UUID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		key, err := uuid.Parse(raw)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (r *EntitiesGroupRepo) queryGroups(ctx context.Context, query string, args ...any) ([]domain.EntitiesGroup, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []domain.EntitiesGroup
	for rows.Next() {
		var g domain.EntitiesGroup
		if err := rows.Scan(&g.ID, &g.Name, &g.ParentID, &g.CreatedAt); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}
