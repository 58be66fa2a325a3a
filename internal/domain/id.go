package domain

import "github.com/google/uuid"

// NewID generates a UUIDv7 string for application-owned rows.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// NewSecurityKey generates a fresh security key for a secured entity.
func NewSecurityKey() uuid.UUID {
	return uuid.New()
}
