package declarative

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authzkit/internal/db"
	"authzkit/internal/db/repository"
	"authzkit/internal/domain"
)

type applierFixture struct {
	ops     *repository.OperationRepo
	groups  *repository.UsersGroupRepo
	eGroups *repository.EntitiesGroupRepo
	perms   *repository.PermissionRepo
	applier *Applier
}

func newApplierFixture(t *testing.T) *applierFixture {
	t.Helper()
	writeDB, _ := db.OpenTestSQLite(t)
	f := &applierFixture{
		ops:     repository.NewOperationRepo(writeDB),
		groups:  repository.NewUsersGroupRepo(writeDB),
		eGroups: repository.NewEntitiesGroupRepo(writeDB),
		perms:   repository.NewPermissionRepo(writeDB),
	}
	f.applier = NewApplier(f.ops, f.groups, f.eGroups,
		repository.NewEntityRepo(writeDB), f.perms, nil)
	return f
}

func testPolicy() *PolicySpec {
	return &PolicySpec{
		Operations: []string{"/Account/Edit"},
		UsersGroups: []GroupSpec{
			{Name: "Administrators"},
			{Name: "DBA", Parent: "Administrators"},
		},
		EntitiesGroups: []GroupSpec{{Name: "Important Accounts"}},
		Memberships:    []MembershipSpec{{User: "user-1", Group: "DBA"}},
		Permissions: []PermissionSpec{
			{Operation: "/Account/Edit", Allow: true, Level: 5, Group: "Administrators"},
			{Operation: "/Account", Allow: false, User: "user-1", EntitiesGroup: "Important Accounts"},
		},
	}
}

func TestApplierCreatesEverything(t *testing.T) {
	f := newApplierFixture(t)
	ctx := context.Background()

	require.NoError(t, f.applier.Apply(ctx, testPolicy()))

	_, err := f.ops.GetByName(ctx, "/Account/Edit")
	require.NoError(t, err)

	dba, err := f.groups.GetByName(ctx, "DBA")
	require.NoError(t, err)
	require.NotNil(t, dba.ParentID)

	associated, err := f.groups.AssociatedGroupsFor(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Administrators", "DBA"}, domain.GroupNames(associated))

	admins, err := f.groups.GetByName(ctx, "Administrators")
	require.NoError(t, err)
	groupPerms, err := f.perms.ListForSubject(ctx, "", []string{admins.ID})
	require.NoError(t, err)
	require.Len(t, groupPerms, 1)
	assert.Equal(t, 5, groupPerms[0].Level)

	userPerms, err := f.perms.ListForSubject(ctx, "user-1", nil)
	require.NoError(t, err)
	require.Len(t, userPerms, 1)
	assert.Equal(t, domain.TargetGroup, userPerms[0].Target.Kind())
	assert.Equal(t, "Important Accounts", userPerms[0].Target.Group().Name)
}

func TestApplierIsIdempotent(t *testing.T) {
	f := newApplierFixture(t)
	ctx := context.Background()

	require.NoError(t, f.applier.Apply(ctx, testPolicy()))
	require.NoError(t, f.applier.Apply(ctx, testPolicy()))

	admins, err := f.groups.GetByName(ctx, "Administrators")
	require.NoError(t, err)
	groupPerms, err := f.perms.ListForSubject(ctx, "", []string{admins.ID})
	require.NoError(t, err)
	assert.Len(t, groupPerms, 1, "re-applying must not duplicate permissions")

	userPerms, err := f.perms.ListForSubject(ctx, "user-1", nil)
	require.NoError(t, err)
	assert.Len(t, userPerms, 1)

	groups, err := f.groups.List(ctx)
	require.NoError(t, err)
	assert.Len(t, groups, 2)
}

func TestApplierUnknownGroupFails(t *testing.T) {
	f := newApplierFixture(t)

	spec := &PolicySpec{
		Operations: []string{"/Account"},
		Permissions: []PermissionSpec{
			{Operation: "/Account", Allow: true, Group: "Nobody"},
		},
	}
	err := f.applier.Apply(context.Background(), spec)
	var notFound *domain.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}
