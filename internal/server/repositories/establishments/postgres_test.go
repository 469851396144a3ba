package establishments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tablescout/tablescout/internal/server/models"
)

const (
	insertQ = `(?s)^INSERT\s+INTO\s+establishments\s*\(owner_id,\s*name,\s*address,\s*cuisine\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4\)\s*RETURNING\s+id,\s*created_at$`
	listQ   = `(?s)^SELECT\s+id,\s*owner_id,\s*name,\s*address,\s*cuisine,\s*created_at\s+FROM\s+establishments\s+WHERE\s+owner_id\s*=\s*\$1\s+ORDER\s+BY\s+created_at,\s*id$`
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresRepository(db), mock
}

func TestCreate(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Now()

	mock.ExpectQuery(insertQ).
		WithArgs("u1", "Cafe", "Main st 1", "italian").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("e1", now))

	got, err := repo.Create(context.Background(), &models.Establishment{OwnerID: "u1", Name: "Cafe", Address: "Main st 1", Cuisine: "italian"})
	require.NoError(t, err)
	assert.Equal(t, "e1", got.ID)
	assert.True(t, got.CreatedAt.Equal(now))

	mock.ExpectQuery(insertQ).WillReturnError(errors.New("fk violation"))
	_, err = repo.Create(context.Background(), &models.Establishment{OwnerID: "ux"})
	require.ErrorContains(t, err, "fk violation")
}

func TestListByOwner(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Now()

	cols := []string{"id", "owner_id", "name", "address", "cuisine", "created_at"}
	mock.ExpectQuery(listQ).WithArgs("u1").WillReturnRows(sqlmock.NewRows(cols).
		AddRow("e1", "u1", "A", "addr a", "", now).
		AddRow("e2", "u1", "B", "addr b", "thai", now))
	mock.ExpectQuery(listQ).WithArgs("u2").WillReturnRows(sqlmock.NewRows(cols))
	mock.ExpectQuery(listQ).WithArgs("u3").WillReturnError(errors.New("boom"))

	got, err := repo.ListByOwner(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "B", got[1].Name)

	got, err = repo.ListByOwner(context.Background(), "u2")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	_, err = repo.ListByOwner(context.Background(), "u3")
	require.ErrorContains(t, err, "db error")
}
