package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"authzkit/internal/domain"
)

var _ domain.UsersGroupRepository = (*UsersGroupRepo)(nil)

// UsersGroupRepo implements domain.UsersGroupRepository using SQLite.
// Ancestor relationships are kept in the users_groups_hierarchy closure
// table, maintained incrementally on child creation.
type UsersGroupRepo struct {
	db *sql.DB
}

// NewUsersGroupRepo creates a new UsersGroupRepo.
func NewUsersGroupRepo(db *sql.DB) *UsersGroupRepo {
	return &UsersGroupRepo{db: db}
}

// Create inserts a new root-level group.
func (r *UsersGroupRepo) Create(ctx context.Context, name string) (*domain.UsersGroup, error) {
	if name == "" {
		return nil, domain.ErrValidation("group name is required")
	}
	g := &domain.UsersGroup{ID: domain.NewID(), Name: name, CreatedAt: time.Now().UTC()}
	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO users_groups (id, name, created_at) VALUES (?, ?, ?)`,
		g.ID, g.Name, g.CreatedAt); err != nil {
		return nil, mapDBError(err)
	}
	return g, nil
}

// CreateChild inserts childName under parentName and extends the closure:
// the child's ancestor set becomes the parent's ancestor set plus the parent.
func (r *UsersGroupRepo) CreateChild(ctx context.Context, parentName, childName string) (*domain.UsersGroup, error) {
	if childName == "" {
		return nil, domain.ErrValidation("group name is required")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}

	var parentID string
	if err := tx.QueryRowContext(ctx,
		`SELECT id FROM users_groups WHERE name = ?`, parentName).Scan(&parentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, rollback(tx, domain.ErrNotFound("users group %q not found", parentName))
		}
		return nil, rollback(tx, err)
	}

	g := &domain.UsersGroup{
		ID:        domain.NewID(),
		Name:      childName,
		ParentID:  &parentID,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO users_groups (id, name, parent_id, created_at) VALUES (?, ?, ?, ?)`,
		g.ID, g.Name, g.ParentID, g.CreatedAt); err != nil {
		return nil, rollback(tx, mapDBError(err))
	}

	// Closure bookkeeping: inherit the parent's ancestors, then add the
	// parent itself.
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO users_groups_hierarchy (group_id, ancestor_id)
		 SELECT ?, ancestor_id FROM users_groups_hierarchy WHERE group_id = ?`,
		g.ID, parentID); err != nil {
		return nil, rollback(tx, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO users_groups_hierarchy (group_id, ancestor_id) VALUES (?, ?)`,
		g.ID, parentID); err != nil {
		return nil, rollback(tx, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return g, nil
}

// GetByName returns the group with the given name.
func (r *UsersGroupRepo) GetByName(ctx context.Context, name string) (*domain.UsersGroup, error) {
	g := &domain.UsersGroup{Name: name}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, parent_id, created_at FROM users_groups WHERE name = ?`, name).
		Scan(&g.ID, &g.ParentID, &g.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound("users group %q not found", name)
		}
		return nil, err
	}
	return g, nil
}

// GetByID returns the group with the given id.
func (r *UsersGroupRepo) GetByID(ctx context.Context, id string) (*domain.UsersGroup, error) {
	g := &domain.UsersGroup{ID: id}
	err := r.db.QueryRowContext(ctx,
		`SELECT name, parent_id, created_at FROM users_groups WHERE id = ?`, id).
		Scan(&g.Name, &g.ParentID, &g.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound("users group %s not found", id)
		}
		return nil, err
	}
	return g, nil
}

// List returns all groups ordered by name.
func (r *UsersGroupRepo) List(ctx context.Context) ([]domain.UsersGroup, error) {
	return r.queryGroups(ctx,
		`SELECT id, name, parent_id, created_at FROM users_groups ORDER BY name`)
}

// DirectChildren returns the one-level children of the named group.
func (r *UsersGroupRepo) DirectChildren(ctx context.Context, name string) ([]domain.UsersGroup, error) {
	g, err := r.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	return r.queryGroups(ctx,
		`SELECT id, name, parent_id, created_at FROM users_groups WHERE parent_id = ? ORDER BY name`,
		g.ID)
}

// AllChildren returns the full transitive descendant set of the named group.
func (r *UsersGroupRepo) AllChildren(ctx context.Context, name string) ([]domain.UsersGroup, error) {
	g, err := r.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	return r.queryGroups(ctx,
		`SELECT g.id, g.name, g.parent_id, g.created_at
		 FROM users_groups g
		 JOIN users_groups_hierarchy h ON h.group_id = g.id
		 WHERE h.ancestor_id = ?
		 ORDER BY g.name`, g.ID)
}

// AllParents returns the full transitive ancestor set of the named group.
func (r *UsersGroupRepo) AllParents(ctx context.Context, name string) ([]domain.UsersGroup, error) {
	g, err := r.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	return r.queryGroups(ctx,
		`SELECT g.id, g.name, g.parent_id, g.created_at
		 FROM users_groups g
		 JOIN users_groups_hierarchy h ON h.ancestor_id = g.id
		 WHERE h.group_id = ?
		 ORDER BY g.name`, g.ID)
}

// Delete removes the named group, its memberships, its closure rows, and
// every permission referencing it. Fails with InvalidStateError while the
// group has direct children.
func (r *UsersGroupRepo) Delete(ctx context.Context, name string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	var id string
	if err := tx.QueryRowContext(ctx,
		`SELECT id FROM users_groups WHERE name = ?`, name).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rollback(tx, domain.ErrNotFound("users group %q not found", name))
		}
		return rollback(tx, err)
	}

	var children int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users_groups WHERE parent_id = ?`, id).Scan(&children); err != nil {
		return rollback(tx, err)
	}
	if children > 0 {
		return rollback(tx, domain.ErrInvalidState("users group %q still has child groups", name))
	}

	for _, stmt := range []string{
		`DELETE FROM permissions WHERE users_group_id = ?`,
		`DELETE FROM users_groups_members WHERE group_id = ?`,
		`DELETE FROM users_groups_hierarchy WHERE group_id = ?`,
		`DELETE FROM users_groups WHERE id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
			return rollback(tx, err)
		}
	}

	return tx.Commit()
}

// AddMember adds userID to the named group. Membership is a set: adding an
// existing member has no effect.
func (r *UsersGroupRepo) AddMember(ctx context.Context, groupName, userID string) error {
	if userID == "" {
		return domain.ErrValidation("user identifier is required")
	}
	g, err := r.GetByName(ctx, groupName)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO users_groups_members (group_id, user_id) VALUES (?, ?)
		 ON CONFLICT (group_id, user_id) DO NOTHING`,
		g.ID, userID)
	return mapDBError(err)
}

// RemoveMember removes userID from the named group.
func (r *UsersGroupRepo) RemoveMember(ctx context.Context, groupName, userID string) error {
	g, err := r.GetByName(ctx, groupName)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`DELETE FROM users_groups_members WHERE group_id = ? AND user_id = ?`,
		g.ID, userID)
	return err
}

// DirectGroupsFor returns the groups the user is a direct member of, ordered
// by name.
func (r *UsersGroupRepo) DirectGroupsFor(ctx context.Context, userID string) ([]domain.UsersGroup, error) {
	return r.queryGroups(ctx,
		`SELECT g.id, g.name, g.parent_id, g.created_at
		 FROM users_groups g
		 JOIN users_groups_members m ON m.group_id = g.id
		 WHERE m.user_id = ?
		 ORDER BY g.name`, userID)
}

// AssociatedGroupsFor returns the user's direct groups plus every ancestor of
// a direct group, deduplicated and ordered by name. One set-based query, no
// per-group lookups.
func (r *UsersGroupRepo) AssociatedGroupsFor(ctx context.Context, userID string) ([]domain.UsersGroup, error) {
	return r.queryGroups(ctx,
		`SELECT g.id, g.name, g.parent_id, g.created_at
		 FROM users_groups g
		 WHERE g.id IN (SELECT m.group_id FROM users_groups_members m WHERE m.user_id = ?)
		    OR g.id IN (
		        SELECT h.ancestor_id
		        FROM users_groups_hierarchy h
		        JOIN users_groups_members m ON m.group_id = h.group_id
		        WHERE m.user_id = ?)
		 ORDER BY g.name`, userID, userID)
}

func (r *UsersGroupRepo) queryGroups(ctx context.Context, query string, args ...any) ([]domain.UsersGroup, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []domain.UsersGroup
	for rows.Next() {
		var g domain.UsersGroup
		if err := rows.Scan(&g.ID, &g.Name, &g.ParentID, &g.CreatedAt); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}
