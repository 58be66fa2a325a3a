package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"authzkit/internal/domain"
)

var _ domain.OperationRepository = (*OperationRepo)(nil)

// OperationRepo implements domain.OperationRepository using SQLite.
type OperationRepo struct {
	db *sql.DB
}

// NewOperationRepo creates a new OperationRepo.
func NewOperationRepo(db *sql.DB) *OperationRepo {
	return &OperationRepo{db: db}
}

// Create inserts the named operation, ensuring every ancestor path segment
// exists first. The whole chain is written in one transaction. Fails with
// ConflictError when the exact name already exists.
func (r *OperationRepo) Create(ctx context.Context, name string) (*domain.Operation, error) {
	if err := domain.ValidateOperationName(name); err != nil {
		return nil, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}

	var exists int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM operations WHERE name = ?`, name).Scan(&exists); err != nil {
		return nil, rollback(tx, err)
	}
	if exists > 0 {
		return nil, rollback(tx, domain.ErrConflict("operation %q already exists", name))
	}

	// Walk the ancestry root-first so each segment can link to its parent.
	ancestry := domain.OperationAncestry(name)
	var parentID *string
	var op *domain.Operation
	for i := len(ancestry) - 1; i >= 0; i-- {
		op, err = getOrCreateOperationTx(ctx, tx, ancestry[i], parentID)
		if err != nil {
			return nil, rollback(tx, err)
		}
		id := op.ID
		parentID = &id
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return op, nil
}

func getOrCreateOperationTx(ctx context.Context, tx *sql.Tx, name string, parentID *string) (*domain.Operation, error) {
	op := &domain.Operation{Name: name}
	err := tx.QueryRowContext(ctx,
		`SELECT id, parent_id, created_at FROM operations WHERE name = ?`, name).
		Scan(&op.ID, &op.ParentID, &op.CreatedAt)
	if err == nil {
		return op, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	op.ID = domain.NewID()
	op.ParentID = parentID
	op.CreatedAt = time.Now().UTC()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO operations (id, name, parent_id, created_at) VALUES (?, ?, ?, ?)`,
		op.ID, op.Name, op.ParentID, op.CreatedAt); err != nil {
		return nil, mapDBError(err)
	}
	return op, nil
}

// GetByName returns the operation with the given name.
func (r *OperationRepo) GetByName(ctx context.Context, name string) (*domain.Operation, error) {
	op := &domain.Operation{Name: name}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, parent_id, created_at FROM operations WHERE name = ?`, name).
		Scan(&op.ID, &op.ParentID, &op.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound("operation %q not found", name)
		}
		return nil, err
	}
	return op, nil
}

// List returns all operations ordered by name.
func (r *OperationRepo) List(ctx context.Context) ([]domain.Operation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, parent_id, created_at FROM operations ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOperations(rows)
}

// Children returns the direct children of the named operation.
func (r *OperationRepo) Children(ctx context.Context, name string) ([]domain.Operation, error) {
	parent, err := r.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, parent_id, created_at FROM operations WHERE parent_id = ? ORDER BY name`,
		parent.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOperations(rows)
}

// Delete removes the named operation and every permission referencing it.
// Fails with InvalidStateError while the operation has children.
func (r *OperationRepo) Delete(ctx context.Context, name string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	var id string
	if err := tx.QueryRowContext(ctx,
		`SELECT id FROM operations WHERE name = ?`, name).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rollback(tx, domain.ErrNotFound("operation %q not found", name))
		}
		return rollback(tx, err)
	}

	var children int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM operations WHERE parent_id = ?`, id).Scan(&children); err != nil {
		return rollback(tx, err)
	}
	if children > 0 {
		return rollback(tx, domain.ErrInvalidState("operation %q still has child operations", name))
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM permissions WHERE operation_id = ?`, id); err != nil {
		return rollback(tx, err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM operations WHERE id = ?`, id); err != nil {
		return rollback(tx, err)
	}

	return tx.Commit()
}

func scanOperations(rows *sql.Rows) ([]domain.Operation, error) {
	var ops []domain.Operation
	for rows.Next() {
		var op domain.Operation
		if err := rows.Scan(&op.ID, &op.Name, &op.ParentID, &op.CreatedAt); err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, rows.Err()
}
