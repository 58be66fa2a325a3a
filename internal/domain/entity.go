package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EntityType discriminates secured entities by type name. Created lazily and
// deduplicated by name.
type EntityType struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// EntityReference is a domain-agnostic proxy for a secured entity. The engine
// never touches the entity itself, only its security key.
type EntityReference struct {
	ID          string
	SecurityKey uuid.UUID
	TypeID      string
	CreatedAt   time.Time
}

// EntityInformationExtractor adapts one secured domain type to the engine:
// it yields the security key of an entity, a human-readable description for
// explanations, and the column holding the key for query filtering.
type EntityInformationExtractor interface {
	// SecurityKeyFor extracts the security key from a secured entity.
	SecurityKeyFor(entity any) (uuid.UUID, error)
	// Description returns a human-readable label for the entity behind key.
	// Used only in authorization explanations.
	Description(ctx context.Context, key uuid.UUID) (string, error)
	// SecurityKeyColumn is the column name holding the security key in the
	// caller's own table for this type.
	SecurityKeyColumn() string
}
