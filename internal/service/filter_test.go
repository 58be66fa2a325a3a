package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) createAccountsTable(t *testing.T, rows map[string]uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	_, err := f.writeDB.ExecContext(ctx,
		`CREATE TABLE accounts (name TEXT PRIMARY KEY, security_key TEXT NOT NULL)`)
	require.NoError(t, err)
	for name, key := range rows {
		_, err := f.writeDB.ExecContext(ctx,
			`INSERT INTO accounts (name, security_key) VALUES (?, ?)`, name, key.String())
		require.NoError(t, err)
	}
}

func (f *fixture) queryAccountNames(t *testing.T, clause string, args []any) []string {
	t.Helper()
	rows, err := f.writeDB.QueryContext(context.Background(),
		`SELECT a.name FROM accounts a WHERE `+clause+` ORDER BY a.name`, args...)
	require.NoError(t, err)
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		names = append(names, name)
	}
	require.NoError(t, rows.Err())
	return names
}

func TestSQLPredicateFiltersRows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := testUser{name: "Ayende", id: "user-1"}

	visible := uuid.New()
	hidden := uuid.New()
	f.createAccountsTable(t, map[string]uuid.UUID{"visible": visible, "hidden": hidden})

	_, err := f.ops.Create(ctx, "/Account/View")
	require.NoError(t, err)
	_, err = f.builder.Allow("/Account/View").For(user).On(visible, "Account").DefaultLevel().Save(ctx)
	require.NoError(t, err)

	clause, args, err := f.filter.SQLPredicate(ctx, user, "/Account/View", "a.security_key")
	require.NoError(t, err)
	assert.Equal(t, []string{"visible"}, f.queryAccountNames(t, clause, args))
}

func TestSQLPredicateCoarseOperationAndGroups(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := testUser{name: "Ayende", id: "user-1"}

	member := uuid.New()
	outsider := uuid.New()
	f.createAccountsTable(t, map[string]uuid.UUID{"member": member, "outsider": outsider})

	_, err := f.ops.Create(ctx, "/Account/View")
	require.NoError(t, err)
	_, err = f.hierarchy.CreateUsersGroup(ctx, "Administrators")
	require.NoError(t, err)
	require.NoError(t, f.hierarchy.AssociateUserWith(ctx, user, "Administrators"))
	_, err = f.hierarchy.CreateEntitiesGroup(ctx, "Visible Accounts")
	require.NoError(t, err)
	require.NoError(t, f.hierarchy.AssociateEntityWith(ctx, member, "Account", "Visible Accounts"))

	// Granted on the parent operation, to the group, on an entities group.
	_, err = f.builder.Allow("/Account").ForGroup("Administrators").OnGroup("Visible Accounts").DefaultLevel().Save(ctx)
	require.NoError(t, err)

	clause, args, err := f.filter.SQLPredicate(ctx, user, "/Account/View", "a.security_key")
	require.NoError(t, err)
	assert.Equal(t, []string{"member"}, f.queryAccountNames(t, clause, args))
}

func TestSQLPredicateUndefinedOperationDeniesAll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := testUser{name: "Ayende", id: "user-1"}

	f.createAccountsTable(t, map[string]uuid.UUID{"any": uuid.New()})

	clause, args, err := f.filter.SQLPredicate(ctx, user, "/Missing", "a.security_key")
	require.NoError(t, err)
	assert.Empty(t, f.queryAccountNames(t, clause, args))
}

func TestSQLPredicateForGroupIgnoresOtherSubjects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := testUser{name: "Ayende", id: "user-1"}

	forGroup := uuid.New()
	forUser := uuid.New()
	f.createAccountsTable(t, map[string]uuid.UUID{"for-group": forGroup, "for-user": forUser})

	_, err := f.ops.Create(ctx, "/Account/View")
	require.NoError(t, err)
	_, err = f.hierarchy.CreateUsersGroup(ctx, "Administrators")
	require.NoError(t, err)

	_, err = f.builder.Allow("/Account/View").ForGroup("Administrators").On(forGroup, "Account").DefaultLevel().Save(ctx)
	require.NoError(t, err)
	_, err = f.builder.Allow("/Account/View").For(user).On(forUser, "Account").DefaultLevel().Save(ctx)
	require.NoError(t, err)

	clause, args, err := f.filter.SQLPredicateForGroup(ctx, "Administrators", "/Account/View", "a.security_key")
	require.NoError(t, err)
	assert.Equal(t, []string{"for-group"}, f.queryAccountNames(t, clause, args))
}

func TestInMemoryPredicate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := testUser{name: "Ayende", id: "user-1"}

	_, err := f.ops.Create(ctx, "/Account/View")
	require.NoError(t, err)
	_, err = f.hierarchy.CreateEntitiesGroup(ctx, "Visible Accounts")
	require.NoError(t, err)

	direct := uuid.New()
	grouped := uuid.New()
	denied := uuid.New()
	unrelated := uuid.New()
	require.NoError(t, f.hierarchy.AssociateEntityWith(ctx, grouped, "Account", "Visible Accounts"))
	require.NoError(t, f.hierarchy.AssociateEntityWith(ctx, denied, "Account", "Visible Accounts"))

	_, err = f.builder.Allow("/Account/View").For(user).On(direct, "Account").DefaultLevel().Save(ctx)
	require.NoError(t, err)
	_, err = f.builder.Allow("/Account/View").For(user).OnGroup("Visible Accounts").DefaultLevel().Save(ctx)
	require.NoError(t, err)
	_, err = f.builder.Deny("/Account/View").For(user).On(denied, "Account").Level(5).Save(ctx)
	require.NoError(t, err)

	pred, err := f.filter.Predicate(ctx, user, "/Account/View")
	require.NoError(t, err)

	assert.True(t, pred(direct))
	assert.True(t, pred(grouped))
	assert.False(t, pred(denied), "higher-level deny overrides the group allow")
	assert.False(t, pred(unrelated))
}

func TestInMemoryPredicateUndefinedOperation(t *testing.T) {
	f := newFixture(t)
	user := testUser{name: "Ayende", id: "user-1"}

	pred, err := f.filter.Predicate(context.Background(), user, "/Missing")
	require.NoError(t, err)
	assert.False(t, pred(uuid.New()))
}
