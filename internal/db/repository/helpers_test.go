package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"authzkit/internal/domain"
)

func TestMapDBError(t *testing.T) {
	assert.NoError(t, mapDBError(nil))

	var notFound *domain.NotFoundError
	assert.ErrorAs(t, mapDBError(sql.ErrNoRows), &notFound)

	var conflict *domain.ConflictError
	assert.ErrorAs(t, mapDBError(fmt.Errorf("UNIQUE constraint failed: users_groups.name")), &conflict)

	plain := errors.New("disk I/O error")
	assert.Equal(t, plain, mapDBError(plain))
}
