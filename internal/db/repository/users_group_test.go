package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authzkit/internal/db"
	"authzkit/internal/domain"
)

func TestUsersGroupRepoCreateAndGet(t *testing.T) {
	writeDB, _ := db.OpenTestSQLite(t)
	repo := NewUsersGroupRepo(writeDB)
	ctx := context.Background()

	g, err := repo.Create(ctx, "Administrators")
	require.NoError(t, err)
	assert.Nil(t, g.ParentID)

	got, err := repo.GetByName(ctx, "Administrators")
	require.NoError(t, err)
	assert.Equal(t, g.ID, got.ID)

	byID, err := repo.GetByID(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, "Administrators", byID.Name)

	_, err = repo.Create(ctx, "Administrators")
	var conflict *domain.ConflictError
	assert.ErrorAs(t, err, &conflict)

	_, err = repo.GetByName(ctx, "Nobody")
	var notFound *domain.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestUsersGroupRepoClosure(t *testing.T) {
	writeDB, _ := db.OpenTestSQLite(t)
	repo := NewUsersGroupRepo(writeDB)
	ctx := context.Background()

	_, err := repo.Create(ctx, "Root")
	require.NoError(t, err)
	_, err = repo.CreateChild(ctx, "Root", "Middle")
	require.NoError(t, err)
	_, err = repo.CreateChild(ctx, "Middle", "Leaf")
	require.NoError(t, err)

	parents, err := repo.AllParents(ctx, "Leaf")
	require.NoError(t, err)
	assert.Equal(t, []string{"Middle", "Root"}, domain.GroupNames(parents))

	children, err := repo.AllChildren(ctx, "Root")
	require.NoError(t, err)
	assert.Equal(t, []string{"Leaf", "Middle"}, domain.GroupNames(children))

	direct, err := repo.DirectChildren(ctx, "Root")
	require.NoError(t, err)
	assert.Equal(t, []string{"Middle"}, domain.GroupNames(direct))

	_, err = repo.CreateChild(ctx, "Missing", "Orphan")
	var notFound *domain.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestUsersGroupRepoMembership(t *testing.T) {
	writeDB, _ := db.OpenTestSQLite(t)
	repo := NewUsersGroupRepo(writeDB)
	ctx := context.Background()

	_, err := repo.Create(ctx, "Root")
	require.NoError(t, err)
	_, err = repo.CreateChild(ctx, "Root", "Leaf")
	require.NoError(t, err)

	require.NoError(t, repo.AddMember(ctx, "Leaf", "user-1"))
	// Membership is a set.
	require.NoError(t, repo.AddMember(ctx, "Leaf", "user-1"))

	direct, err := repo.DirectGroupsFor(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Leaf"}, domain.GroupNames(direct))

	associated, err := repo.AssociatedGroupsFor(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Leaf", "Root"}, domain.GroupNames(associated))

	require.NoError(t, repo.RemoveMember(ctx, "Leaf", "user-1"))
	associated, err = repo.AssociatedGroupsFor(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, associated)
}

func TestUsersGroupRepoDelete(t *testing.T) {
	writeDB, _ := db.OpenTestSQLite(t)
	groups := NewUsersGroupRepo(writeDB)
	ops := NewOperationRepo(writeDB)
	perms := NewPermissionRepo(writeDB)
	ctx := context.Background()

	_, err := groups.Create(ctx, "Root")
	require.NoError(t, err)
	_, err = groups.CreateChild(ctx, "Root", "Leaf")
	require.NoError(t, err)

	err = groups.Delete(ctx, "Root")
	var invalid *domain.InvalidStateError
	require.ErrorAs(t, err, &invalid)

	// Deleting a group takes its memberships and permissions with it.
	require.NoError(t, groups.AddMember(ctx, "Leaf", "user-1"))
	_, err = ops.Create(ctx, "/Account")
	require.NoError(t, err)
	leaf, err := groups.GetByName(ctx, "Leaf")
	require.NoError(t, err)
	_, err = perms.Save(ctx, &domain.Permission{
		Operation: "/Account",
		Allow:     true,
		Level:     domain.DefaultPermissionLevel,
		Subject:   domain.GroupSubject(leaf),
		Target:    domain.EverythingTarget(),
	})
	require.NoError(t, err)

	require.NoError(t, groups.Delete(ctx, "Leaf"))

	listed, err := perms.ListForSubject(ctx, "", []string{leaf.ID})
	require.NoError(t, err)
	assert.Empty(t, listed)

	require.NoError(t, groups.Delete(ctx, "Root"))

	err = groups.Delete(ctx, "Root")
	var notFound *domain.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}
