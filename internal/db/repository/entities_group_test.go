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

func TestEntitiesGroupRepoClosure(t *testing.T) {
	writeDB, _ := db.OpenTestSQLite(t)
	repo := NewEntitiesGroupRepo(writeDB)
	ctx := context.Background()

	_, err := repo.Create(ctx, "Accounts")
	require.NoError(t, err)
	_, err = repo.CreateChild(ctx, "Accounts", "Important Accounts")
	require.NoError(t, err)

	parents, err := repo.AllParents(ctx, "Important Accounts")
	require.NoError(t, err)
	assert.Equal(t, []string{"Accounts"}, domain.EntitiesGroupNames(parents))

	children, err := repo.AllChildren(ctx, "Accounts")
	require.NoError(t, err)
	assert.Equal(t, []string{"Important Accounts"}, domain.EntitiesGroupNames(children))
}

func TestEntitiesGroupRepoMembership(t *testing.T) {
	writeDB, _ := db.OpenTestSQLite(t)
	groups := NewEntitiesGroupRepo(writeDB)
	entities := NewEntityRepo(writeDB)
	ctx := context.Background()

	// Two accounts, one group each.
	_, err := groups.Create(ctx, "Open Accounts")
	require.NoError(t, err)
	_, err = groups.Create(ctx, "Closed Accounts")
	require.NoError(t, err)

	openKey := uuid.New()
	closedKey := uuid.New()
	openRef, err := entities.GetOrCreateReference(ctx, openKey, "Account")
	require.NoError(t, err)
	closedRef, err := entities.GetOrCreateReference(ctx, closedKey, "Account")
	require.NoError(t, err)

	require.NoError(t, groups.AddMember(ctx, "Open Accounts", openRef.ID))
	require.NoError(t, groups.AddMember(ctx, "Closed Accounts", closedRef.ID))
	// Set semantics.
	require.NoError(t, groups.AddMember(ctx, "Open Accounts", openRef.ID))

	direct, err := groups.DirectGroupsForEntity(ctx, openKey)
	require.NoError(t, err)
	assert.Equal(t, []string{"Open Accounts"}, domain.EntitiesGroupNames(direct))

	direct, err = groups.DirectGroupsForEntity(ctx, closedKey)
	require.NoError(t, err)
	assert.Equal(t, []string{"Closed Accounts"}, domain.EntitiesGroupNames(direct))

	require.NoError(t, groups.RemoveMember(ctx, "Open Accounts", openRef.ID))
	direct, err = groups.DirectGroupsForEntity(ctx, openKey)
	require.NoError(t, err)
	assert.Empty(t, direct)
}

func TestEntitiesGroupRepoAssociatedIncludesAncestors(t *testing.T) {
	writeDB, _ := db.OpenTestSQLite(t)
	groups := NewEntitiesGroupRepo(writeDB)
	entities := NewEntityRepo(writeDB)
	ctx := context.Background()

	_, err := groups.Create(ctx, "Accounts")
	require.NoError(t, err)
	_, err = groups.CreateChild(ctx, "Accounts", "Important Accounts")
	require.NoError(t, err)

	key := uuid.New()
	ref, err := entities.GetOrCreateReference(ctx, key, "Account")
	require.NoError(t, err)
	require.NoError(t, groups.AddMember(ctx, "Important Accounts", ref.ID))

	associated, err := groups.AssociatedGroupsForEntity(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []string{"Accounts", "Important Accounts"},
		domain.EntitiesGroupNames(associated))
}

func TestEntitiesGroupRepoMemberKeys(t *testing.T) {
	writeDB, _ := db.OpenTestSQLite(t)
	groups := NewEntitiesGroupRepo(writeDB)
	entities := NewEntityRepo(writeDB)
	ctx := context.Background()

	parent, err := groups.Create(ctx, "Accounts")
	require.NoError(t, err)
	_, err = groups.CreateChild(ctx, "Accounts", "Important Accounts")
	require.NoError(t, err)

	directKey := uuid.New()
	nestedKey := uuid.New()
	directRef, err := entities.GetOrCreateReference(ctx, directKey, "Account")
	require.NoError(t, err)
	nestedRef, err := entities.GetOrCreateReference(ctx, nestedKey, "Account")
	require.NoError(t, err)

	require.NoError(t, groups.AddMember(ctx, "Accounts", directRef.ID))
	require.NoError(t, groups.AddMember(ctx, "Important Accounts", nestedRef.ID))

	// Descendant members count as members of the ancestor group.
	keys, err := groups.MemberKeys(ctx, parent.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{directKey, nestedKey}, keys)
}
