package cli

import (
	"context"
	"database/sql"

	"authzkit/internal/db"
	"authzkit/internal/db/repository"
	"authzkit/internal/declarative"
	"authzkit/internal/service"
)

// store bundles the repositories and services a command needs, plus the
// handles to close when done. Mutations go through the write pool so
// uniqueness checks observe the current transaction state; resolution and
// listing are served by the read pool.
type store struct {
	writeDB *sql.DB
	readDB  *sql.DB

	operations     *repository.OperationRepo
	usersGroups    *repository.UsersGroupRepo
	entitiesGroups *repository.EntitiesGroupRepo
	entities       *repository.EntityRepo
	permissions    *repository.PermissionRepo

	readOperations     *repository.OperationRepo
	readUsersGroups    *repository.UsersGroupRepo
	readEntitiesGroups *repository.EntitiesGroupRepo

	hierarchy *service.HierarchyService
	authz     *service.AuthorizationService
	builder   *service.PermissionsBuilderService
}

// openStore opens the SQLite pair, runs pending migrations, wires the service
// graph, and applies the configured policy file when one is set.
func openStore(opts *rootOptions) (*store, error) {
	writeDB, readDB, err := db.OpenSQLitePair(opts.dbPath, opts.readMaxConns)
	if err != nil {
		return nil, err
	}
	if err := db.RunMigrations(writeDB); err != nil {
		_ = readDB.Close()
		_ = writeDB.Close()
		return nil, err
	}

	s := &store{
		writeDB:        writeDB,
		readDB:         readDB,
		operations:     repository.NewOperationRepo(writeDB),
		usersGroups:    repository.NewUsersGroupRepo(writeDB),
		entitiesGroups: repository.NewEntitiesGroupRepo(writeDB),
		entities:       repository.NewEntityRepo(writeDB),
		permissions:    repository.NewPermissionRepo(writeDB),

		readOperations:     repository.NewOperationRepo(readDB),
		readUsersGroups:    repository.NewUsersGroupRepo(readDB),
		readEntitiesGroups: repository.NewEntitiesGroupRepo(readDB),
	}
	readEntities := repository.NewEntityRepo(readDB)
	readPermissions := repository.NewPermissionRepo(readDB)
	readHierarchy := service.NewHierarchyService(
		s.readUsersGroups, s.readEntitiesGroups, readEntities)

	s.hierarchy = service.NewHierarchyService(s.usersGroups, s.entitiesGroups, s.entities)
	s.authz = service.NewAuthorizationService(
		s.readOperations, s.readUsersGroups, s.readEntitiesGroups,
		readEntities, readPermissions, readHierarchy, nil)
	s.builder = service.NewPermissionsBuilderService(
		s.operations, s.usersGroups, s.entitiesGroups, s.entities, s.permissions)

	if opts.policyPath != "" {
		spec, err := declarative.LoadFile(opts.policyPath)
		if err != nil {
			s.close()
			return nil, err
		}
		applier := declarative.NewApplier(
			s.operations, s.usersGroups, s.entitiesGroups, s.entities, s.permissions, nil)
		if err := applier.Apply(context.Background(), spec); err != nil {
			s.close()
			return nil, err
		}
	}

	return s, nil
}

func (s *store) close() {
	_ = s.readDB.Close()
	_ = s.writeDB.Close()
}
