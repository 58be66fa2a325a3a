package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"authzkit/internal/domain"
)

var _ domain.EntityRepository = (*EntityRepo)(nil)

// EntityRepo implements domain.EntityRepository using SQLite. References and
// types are created lazily on first association and deduplicated by natural
// key, so repeated get-or-create calls are safe within one transaction.
type EntityRepo struct {
	db *sql.DB
}

// NewEntityRepo creates a new EntityRepo.
func NewEntityRepo(db *sql.DB) *EntityRepo {
	return &EntityRepo{db: db}
}

// GetOrCreateType returns the entity type with the given name, inserting it
// first if missing.
func (r *EntityRepo) GetOrCreateType(ctx context.Context, name string) (*domain.EntityType, error) {
	if name == "" {
		return nil, domain.ErrValidation("entity type name is required")
	}

	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO entity_types (id, name, created_at) VALUES (?, ?, ?)
		 ON CONFLICT (name) DO NOTHING`,
		domain.NewID(), name, time.Now().UTC()); err != nil {
		return nil, err
	}

	et := &domain.EntityType{Name: name}
	if err := r.db.QueryRowContext(ctx,
		`SELECT id, created_at FROM entity_types WHERE name = ?`, name).
		Scan(&et.ID, &et.CreatedAt); err != nil {
		return nil, err
	}
	return et, nil
}

// GetOrCreateReference returns the entity reference for the given security
// key, inserting it (and its type) first if missing.
func (r *EntityRepo) GetOrCreateReference(ctx context.Context, key uuid.UUID, typeName string) (*domain.EntityReference, error) {
	if key == uuid.Nil {
		return nil, domain.ErrValidation("entity security key is required")
	}

	et, err := r.GetOrCreateType(ctx, typeName)
	if err != nil {
		return nil, err
	}

	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO entity_references (id, security_key, type_id, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (security_key) DO NOTHING`,
		domain.NewID(), key.String(), et.ID, time.Now().UTC()); err != nil {
		return nil, err
	}

	return r.GetReference(ctx, key)
}

// TypeNameFor returns the entity type name recorded for the reference behind
// key.
func (r *EntityRepo) TypeNameFor(ctx context.Context, key uuid.UUID) (string, error) {
	var name string
	err := r.db.QueryRowContext(ctx,
		`SELECT et.name
		 FROM entity_references er
		 JOIN entity_types et ON et.id = er.type_id
		 WHERE er.security_key = ?`, key.String()).Scan(&name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", domain.ErrNotFound("entity reference %s not found", key)
		}
		return "", err
	}
	return name, nil
}

// GetReference returns the entity reference for the given security key.
func (r *EntityRepo) GetReference(ctx context.Context, key uuid.UUID) (*domain.EntityReference, error) {
	ref := &domain.EntityReference{SecurityKey: key}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, type_id, created_at FROM entity_references WHERE security_key = ?`,
		key.String()).
		Scan(&ref.ID, &ref.TypeID, &ref.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound("entity reference %s not found", key)
		}
		return nil, err
	}
	return ref, nil
}
