package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"authzkit/internal/domain"
)

var _ domain.PermissionRepository = (*PermissionRepo)(nil)

// PermissionRepo implements domain.PermissionRepository using SQLite. The
// tagged Subject/Target variants are flattened into nullable columns on write
// and rebuilt on read.
type PermissionRepo struct {
	db *sql.DB
}

// NewPermissionRepo creates a new PermissionRepo.
func NewPermissionRepo(db *sql.DB) *PermissionRepo {
	return &PermissionRepo{db: db}
}

const permissionColumns = `p.id, o.name, p.allow, p.level,
	p.user_id, p.users_group_id, ug.name, ug.parent_id,
	p.entity_security_key, p.entities_group_id, eg.name, eg.parent_id,
	p.created_at`

const permissionJoins = `
	FROM permissions p
	JOIN operations o ON o.id = p.operation_id
	LEFT JOIN users_groups ug ON ug.id = p.users_group_id
	LEFT JOIN entities_groups eg ON eg.id = p.entities_group_id`

// Save validates and persists a permission. The referenced operation must
// already exist.
func (r *PermissionRepo) Save(ctx context.Context, p *domain.Permission) (*domain.Permission, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	var operationID string
	err := r.db.QueryRowContext(ctx,
		`SELECT id FROM operations WHERE name = ?`, p.Operation).Scan(&operationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound("operation %q not found", p.Operation)
		}
		return nil, err
	}

	var userID, usersGroupID, entityKey, entitiesGroupID sql.NullString
	switch p.Subject.Kind() {
	case domain.SubjectUser:
		userID = sql.NullString{String: p.Subject.UserID(), Valid: true}
	case domain.SubjectGroup:
		usersGroupID = sql.NullString{String: p.Subject.Group().ID, Valid: true}
	}
	switch p.Target.Kind() {
	case domain.TargetEntity:
		entityKey = sql.NullString{String: p.Target.EntityKey().String(), Valid: true}
	case domain.TargetGroup:
		entitiesGroupID = sql.NullString{String: p.Target.Group().ID, Valid: true}
	}

	saved := *p
	saved.ID = domain.NewID()
	saved.CreatedAt = time.Now().UTC()
	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO permissions
		 (id, operation_id, allow, level, user_id, users_group_id, entity_security_key, entities_group_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		saved.ID, operationID, boolToInt(saved.Allow), saved.Level,
		userID, usersGroupID, entityKey, entitiesGroupID, saved.CreatedAt); err != nil {
		return nil, mapDBError(err)
	}
	return &saved, nil
}

// Delete removes a single permission by id.
func (r *PermissionRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM permissions WHERE id = ?`, id)
	return err
}

// FindCandidates returns the permissions applicable to the query, ranked by
// level descending with Deny before Allow at equal level.
func (r *PermissionRepo) FindCandidates(ctx context.Context, q domain.CandidateQuery) ([]domain.Permission, error) {
	if len(q.OperationNames) == 0 {
		return nil, nil
	}

	var sb strings.Builder
	args := make([]any, 0, 8)

	sb.WriteString(`SELECT ` + permissionColumns + permissionJoins + `
	WHERE o.name IN (` + placeholders(len(q.OperationNames)) + `)`)
	for _, name := range q.OperationNames {
		args = append(args, name)
	}

	// Subject match: the user itself, or any of its associated groups.
	sb.WriteString(` AND (p.user_id = ?`)
	args = append(args, q.UserID)
	if len(q.GroupIDs) > 0 {
		sb.WriteString(` OR p.users_group_id IN (` + placeholders(len(q.GroupIDs)) + `)`)
		for _, id := range q.GroupIDs {
			args = append(args, id)
		}
	}
	sb.WriteString(`)`)

	// Target match. Without a target only global permissions apply.
	if q.Target == nil {
		sb.WriteString(` AND p.entity_security_key IS NULL AND p.entities_group_id IS NULL`)
	} else {
		sb.WriteString(` AND (p.entity_security_key = ?`)
		args = append(args, q.Target.EntityKey.String())
		if len(q.Target.GroupIDs) > 0 {
			sb.WriteString(` OR p.entities_group_id IN (` + placeholders(len(q.Target.GroupIDs)) + `)`)
			for _, id := range q.Target.GroupIDs {
				args = append(args, id)
			}
		}
		sb.WriteString(` OR (p.entity_security_key IS NULL AND p.entities_group_id IS NULL))`)
	}

	sb.WriteString(` ORDER BY p.level DESC, p.allow ASC`)

	return r.queryPermissions(ctx, sb.String(), args...)
}

// ListForSubject returns every permission whose subject is the user or one
// of the given groups, ranked. An empty userID restricts the match to the
// groups alone.
func (r *PermissionRepo) ListForSubject(ctx context.Context, userID string, groupIDs []string) ([]domain.Permission, error) {
	var conds []string
	var args []any
	if userID != "" {
		conds = append(conds, `p.user_id = ?`)
		args = append(args, userID)
	}
	if len(groupIDs) > 0 {
		conds = append(conds, `p.users_group_id IN (`+placeholders(len(groupIDs))+`)`)
		for _, id := range groupIDs {
			args = append(args, id)
		}
	}
	if len(conds) == 0 {
		return nil, nil
	}

	query := `SELECT ` + permissionColumns + permissionJoins + `
	WHERE (` + strings.Join(conds, ` OR `) + `)
	ORDER BY p.level DESC, p.allow ASC`
	return r.queryPermissions(ctx, query, args...)
}

// AllowedEntitiesPredicate builds a boolean SQL clause over q.KeyColumn that
// holds exactly for rows whose best-ranked candidate permission is an Allow.
// The correlated subquery re-runs the ranking per row; COALESCE turns "no
// candidates" into the default deny.
func (r *PermissionRepo) AllowedEntitiesPredicate(q domain.PredicateQuery) (string, []any) {
	args := make([]any, 0, 8)

	var subject string
	switch {
	case q.UserID != "" && len(q.GroupIDs) > 0:
		subject = `(p.user_id = ? OR p.users_group_id IN (` + placeholders(len(q.GroupIDs)) + `))`
		args = append(args, q.UserID)
		for _, id := range q.GroupIDs {
			args = append(args, id)
		}
	case q.UserID != "":
		subject = `p.user_id = ?`
		args = append(args, q.UserID)
	default:
		subject = `p.users_group_id IN (` + placeholders(len(q.GroupIDs)) + `)`
		for _, id := range q.GroupIDs {
			args = append(args, id)
		}
	}

	opArgs := make([]any, len(q.OperationNames))
	for i, name := range q.OperationNames {
		opArgs[i] = name
	}
	args = append(opArgs, args...)

	clause := fmt.Sprintf(`COALESCE((
	SELECT p.allow
	FROM permissions p
	JOIN operations o ON o.id = p.operation_id
	WHERE o.name IN (%s)
	  AND %s
	  AND (
	    p.entity_security_key = %s
	    OR p.entities_group_id IN (
	        SELECT m.group_id
	        FROM entities_groups_members m
	        JOIN entity_references er ON er.id = m.entity_reference_id
	        WHERE er.security_key = %s
	        UNION
	        SELECT h.ancestor_id
	        FROM entities_groups_hierarchy h
	        JOIN entities_groups_members m ON m.group_id = h.group_id
	        JOIN entity_references er ON er.id = m.entity_reference_id
	        WHERE er.security_key = %s)
	    OR (p.entity_security_key IS NULL AND p.entities_group_id IS NULL)
	  )
	ORDER BY p.level DESC, p.allow ASC
	LIMIT 1), 0) = 1`,
		placeholders(len(q.OperationNames)), subject,
		q.KeyColumn, q.KeyColumn, q.KeyColumn)

	return clause, args
}

func (r *PermissionRepo) queryPermissions(ctx context.Context, query string, args ...any) ([]domain.Permission, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []domain.Permission
	for rows.Next() {
		p, err := scanPermission(rows)
		if err != nil {
			return nil, err
		}
		perms = append(perms, *p)
	}
	return perms, rows.Err()
}

func scanPermission(rows *sql.Rows) (*domain.Permission, error) {
	var (
		p               domain.Permission
		allow           int64
		userID          sql.NullString
		usersGroupID    sql.NullString
		usersGroupName  sql.NullString
		usersGroupPar   sql.NullString
		entityKey       sql.NullString
		entitiesGroupID sql.NullString
		entitiesName    sql.NullString
		entitiesPar     sql.NullString
	)
	if err := rows.Scan(&p.ID, &p.Operation, &allow, &p.Level,
		&userID, &usersGroupID, &usersGroupName, &usersGroupPar,
		&entityKey, &entitiesGroupID, &entitiesName, &entitiesPar,
		&p.CreatedAt); err != nil {
		return nil, err
	}
	p.Allow = allow != 0

	switch {
	case userID.Valid:
		p.Subject = domain.UserSubject(userID.String)
	case usersGroupID.Valid:
		g := &domain.UsersGroup{ID: usersGroupID.String, Name: usersGroupName.String}
		if usersGroupPar.Valid {
			parent := usersGroupPar.String
			g.ParentID = &parent
		}
		p.Subject = domain.GroupSubject(g)
	}

	switch {
	case entityKey.Valid:
		key, err := uuid.Parse(entityKey.String)
		if err != nil {
			return nil, err
		}
		p.Target = domain.EntityTarget(key)
	case entitiesGroupID.Valid:
		g := &domain.EntitiesGroup{ID: entitiesGroupID.String, Name: entitiesName.String}
		if entitiesPar.Valid {
			parent := entitiesPar.String
			g.ParentID = &parent
		}
		p.Target = domain.GroupTarget(g)
	default:
		p.Target = domain.EverythingTarget()
	}

	return &p, nil
}
