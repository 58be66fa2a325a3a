package service

import (
	"database/sql"
	"testing"

	"authzkit/internal/db"
	"authzkit/internal/db/repository"
	"authzkit/internal/domain"
)

// testUser implements domain.User for tests.
type testUser struct {
	name string
	id   string
}

func (u testUser) SecurityInfo() domain.SecurityInfo {
	return domain.SecurityInfo{Name: u.name, Identifier: u.id}
}

type fixture struct {
	writeDB   *sql.DB
	ops       *repository.OperationRepo
	groups    *repository.UsersGroupRepo
	eGroups   *repository.EntitiesGroupRepo
	entities  *repository.EntityRepo
	perms     *repository.PermissionRepo
	hierarchy *HierarchyService
	authz     *AuthorizationService
	builder   *PermissionsBuilderService
	filter    *FilterBuilder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	writeDB, _ := db.OpenTestSQLite(t)

	f := &fixture{
		writeDB:  writeDB,
		ops:      repository.NewOperationRepo(writeDB),
		groups:   repository.NewUsersGroupRepo(writeDB),
		eGroups:  repository.NewEntitiesGroupRepo(writeDB),
		entities: repository.NewEntityRepo(writeDB),
		perms:    repository.NewPermissionRepo(writeDB),
	}
	f.hierarchy = NewHierarchyService(f.groups, f.eGroups, f.entities)
	f.authz = NewAuthorizationService(f.ops, f.groups, f.eGroups, f.entities, f.perms, f.hierarchy, nil)
	f.builder = NewPermissionsBuilderService(f.ops, f.groups, f.eGroups, f.entities, f.perms)
	f.filter = NewFilterBuilder(f.ops, f.groups, f.eGroups, f.perms)
	return f
}
