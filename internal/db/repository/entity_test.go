package repository

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authzkit/internal/db"
	"authzkit/internal/domain"
)

func TestEntityRepoGetOrCreateDeduplicates(t *testing.T) {
	writeDB, _ := db.OpenTestSQLite(t)
	repo := NewEntityRepo(writeDB)
	ctx := context.Background()

	key := uuid.New()
	first, err := repo.GetOrCreateReference(ctx, key, "Account")
	require.NoError(t, err)
	second, err := repo.GetOrCreateReference(ctx, key, "Account")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.TypeID, second.TypeID)

	// Types deduplicate by name too.
	other, err := repo.GetOrCreateReference(ctx, uuid.New(), "Account")
	require.NoError(t, err)
	assert.Equal(t, first.TypeID, other.TypeID)
	assert.NotEqual(t, first.ID, other.ID)
}

func TestEntityRepoTypeNameFor(t *testing.T) {
	writeDB, _ := db.OpenTestSQLite(t)
	repo := NewEntityRepo(writeDB)
	ctx := context.Background()

	key := uuid.New()
	_, err := repo.GetOrCreateReference(ctx, key, "Account")
	require.NoError(t, err)

	name, err := repo.TypeNameFor(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "Account", name)

	_, err = repo.TypeNameFor(ctx, uuid.New())
	var notFound *domain.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestEntityRepoGetReferenceMissing(t *testing.T) {
	writeDB, _ := db.OpenTestSQLite(t)
	repo := NewEntityRepo(writeDB)

	_, err := repo.GetReference(context.Background(), uuid.New())
	var notFound *domain.NotFoundError
	assert.ErrorAs(t, err, &notFound)

	_, err = repo.GetOrCreateReference(context.Background(), uuid.Nil, "Account")
	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)
}
