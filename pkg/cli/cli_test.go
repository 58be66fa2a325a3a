package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, dbPath string, args ...string) (string, error) {
	t.Helper()
	rootCmd := newRootCmd()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(append([]string{"--db", dbPath}, args...))
	err := rootCmd.Execute()
	return buf.String(), err
}

func testDBPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "authz.sqlite")
}

func TestCLIVersion(t *testing.T) {
	out, err := runCLI(t, testDBPath(t), "version")
	require.NoError(t, err)
	assert.Contains(t, out, "authzctl")
}

func TestCLIOperationLifecycle(t *testing.T) {
	dbPath := testDBPath(t)

	out, err := runCLI(t, dbPath, "operation", "create", "/Account/Edit")
	require.NoError(t, err)
	assert.Contains(t, out, "created operation /Account/Edit")

	out, err = runCLI(t, dbPath, "operation", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "/Account\n")
	assert.Contains(t, out, "/Account/Edit\n")

	_, err = runCLI(t, dbPath, "operation", "delete", "/Account")
	require.Error(t, err, "operation with children cannot be deleted")

	_, err = runCLI(t, dbPath, "operation", "delete", "/Account/Edit")
	require.NoError(t, err)
}

func TestCLICheckAndExplain(t *testing.T) {
	dbPath := testDBPath(t)

	_, err := runCLI(t, dbPath, "operation", "create", "/Account/Edit")
	require.NoError(t, err)
	_, err = runCLI(t, dbPath, "group", "create", "Administrators")
	require.NoError(t, err)
	_, err = runCLI(t, dbPath, "group", "add-member", "Administrators", "user-1")
	require.NoError(t, err)

	out, err := runCLI(t, dbPath, "check", "/Account/Edit", "--user", "user-1")
	require.NoError(t, err)
	assert.Contains(t, out, "denied")

	_, err = runCLI(t, dbPath, "permission", "allow", "/Account/Edit", "--group", "Administrators")
	require.NoError(t, err)

	out, err = runCLI(t, dbPath, "check", "/Account/Edit", "--user", "user-1")
	require.NoError(t, err)
	assert.Contains(t, out, "allowed")

	out, err = runCLI(t, dbPath, "explain", "/Account/Edit", "--user", "user-1")
	require.NoError(t, err)
	assert.Contains(t, out, `granted to group "Administrators"`)
}

func TestCLIApplyPolicy(t *testing.T) {
	dbPath := testDBPath(t)
	policy := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(policy, []byte(`apiVersion: authzkit/v1
kind: Policy
spec:
  operations:
    - /Account/Edit
  users_groups:
    - name: Administrators
  memberships:
    - user: user-1
      group: Administrators
  permissions:
    - operation: /Account/Edit
      allow: true
      group: Administrators
`), 0644))

	_, err := runCLI(t, dbPath, "apply", policy)
	require.NoError(t, err)
	// Idempotent.
	_, err = runCLI(t, dbPath, "apply", policy)
	require.NoError(t, err)

	out, err := runCLI(t, dbPath, "check", "/Account/Edit", "--user", "user-1")
	require.NoError(t, err)
	assert.Contains(t, out, "allowed")
}

func TestCLIEnvConfig(t *testing.T) {
	dbPath := testDBPath(t)
	policy := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(policy, []byte(`apiVersion: authzkit/v1
kind: Policy
spec:
  operations:
    - /Account/Edit
  users_groups:
    - name: Administrators
  memberships:
    - user: user-1
      group: Administrators
  permissions:
    - operation: /Account/Edit
      allow: true
      group: Administrators
`), 0644))

	t.Setenv("AUTHZ_DB_PATH", dbPath)
	t.Setenv("AUTHZ_POLICY_PATH", policy)
	t.Setenv("AUTHZ_READ_MAX_CONNS", "2")
	t.Setenv("LOG_LEVEL", "warn")

	// No --db flag: the store path, pool size, and startup policy all come
	// from the environment.
	rootCmd := newRootCmd()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs([]string{"check", "/Account/Edit", "--user", "user-1"})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, buf.String(), "allowed")
}

func TestCLIEnvConfigRejectsBadReadConns(t *testing.T) {
	t.Setenv("AUTHZ_DB_PATH", testDBPath(t))
	t.Setenv("AUTHZ_READ_MAX_CONNS", "zero")

	rootCmd := newRootCmd()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs([]string{"operation", "list"})
	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AUTHZ_READ_MAX_CONNS")
}

func TestOpenStoreReadPoolServesResolution(t *testing.T) {
	s, err := openStore(&rootOptions{dbPath: testDBPath(t)})
	require.NoError(t, err)
	defer s.close()

	ctx := context.Background()
	_, err = s.operations.Create(ctx, "/Account/Edit")
	require.NoError(t, err)
	_, err = s.hierarchy.CreateUsersGroup(ctx, "Administrators")
	require.NoError(t, err)
	require.NoError(t, s.usersGroups.AddMember(ctx, "Administrators", "user-1"))
	_, err = s.builder.Allow("/Account/Edit").ForGroup("Administrators").OnEverything().DefaultLevel().Save(ctx)
	require.NoError(t, err)

	// Resolution runs on the read pool and must observe the committed writes.
	u, err := newCLIUser("user-1")
	require.NoError(t, err)
	allowed, err := s.authz.IsAllowed(ctx, u, "/Account/Edit")
	require.NoError(t, err)
	assert.True(t, allowed)

	ops, err := s.readOperations.List(ctx)
	require.NoError(t, err)
	assert.Len(t, ops, 2)
	groups, err := s.readUsersGroups.List(ctx)
	require.NoError(t, err)
	assert.Len(t, groups, 1)
}

func TestNewCLIUser(t *testing.T) {
	_, err := newCLIUser("")
	require.Error(t, err)

	u, err := newCLIUser("user-1")
	require.NoError(t, err)
	info := u.SecurityInfo()
	assert.Equal(t, "user-1", info.Name)
	assert.Equal(t, "user-1", info.Identifier)
}

func TestCLIPermissionFlagValidation(t *testing.T) {
	dbPath := testDBPath(t)

	_, err := runCLI(t, dbPath, "permission", "allow", "/Account")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly one of --user or --group")
}
