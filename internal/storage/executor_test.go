package storage

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chitalishte-ai/query-engine/internal/observability"
)

func TestExecutor_Query(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"name", "members_count"}).
		AddRow([]byte("НЧ Развитие"), int64(120)).
		AddRow([]byte("НЧ Пробуда"), int64(85))
	mock.ExpectQuery("SELECT name, members_count FROM chitalishte").WillReturnRows(rows)

	executor := NewExecutor(db, observability.Nop(), 100, time.Second)

	result, err := executor.Query(context.Background(), "SELECT name, members_count FROM chitalishte")
	require.NoError(t, err)

	assert.Equal(t, []string{"name", "members_count"}, result.Columns)
	require.Len(t, result.Rows, 2)
	// []byte values come back as strings.
	assert.Equal(t, "НЧ Развитие", result.Rows[0]["name"])
	assert.Equal(t, int64(120), result.Rows[0]["members_count"])
	assert.False(t, result.Truncated)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecutor_TruncatesAtRowBudget(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"name"})
	for i := 0; i < 5; i++ {
		rows.AddRow("x")
	}
	mock.ExpectQuery("SELECT name FROM chitalishte").WillReturnRows(rows)

	executor := NewExecutor(db, observability.Nop(), 3, time.Second)

	result, err := executor.Query(context.Background(), "SELECT name FROM chitalishte")
	require.NoError(t, err)

	assert.Len(t, result.Rows, 3)
	assert.True(t, result.Truncated)
}

func TestExecutor_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT bad").WillReturnError(assert.AnError)

	executor := NewExecutor(db, observability.Nop(), 100, time.Second)

	_, err = executor.Query(context.Background(), "SELECT bad FROM nowhere")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "execute query")
}

func TestRepository_GetByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT(.|\\s)+FROM chitalishte WHERE id").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "region", "municipality", "town", "address", "phone",
			"email", "chairman", "secretary", "members_count", "founded_year", "status",
		}).AddRow(
			int64(7), "НЧ Развитие", "Враца", "Враца", "гр. Враца", nil, nil,
			nil, "Иван Иванов", nil, int64(120), int64(1898), "активно",
		))

	repo := NewChitalishteRepository(db)

	rec, err := repo.GetByID(context.Background(), 7)
	require.NoError(t, err)

	assert.Equal(t, int64(7), rec.ID)
	assert.Equal(t, "НЧ Развитие", rec.Name)
	assert.True(t, rec.Chairman.Valid)
	assert.Equal(t, "Иван Иванов", rec.Chairman.String)
	assert.False(t, rec.Phone.Valid)
	assert.Equal(t, int64(1898), rec.FoundedYear.Int64)
}

func TestRepository_GetByID_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT(.|\\s)+FROM chitalishte WHERE id").
		WithArgs(int64(404)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	repo := NewChitalishteRepository(db)

	_, err = repo.GetByID(context.Background(), 404)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRepository_SearchByKeyword(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT(.|\\s)+FROM chitalishte(.|\\s)+LIKE").
		WithArgs("%враца%", 5).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "region", "municipality", "town", "address", "phone",
			"email", "chairman", "secretary", "members_count", "founded_year", "status",
		}).AddRow(
			int64(1), "НЧ Развитие", "Враца", "Враца", "гр. Враца", nil, nil,
			nil, nil, nil, nil, nil, "активно",
		))

	repo := NewChitalishteRepository(db)

	results, err := repo.SearchByKeyword(context.Background(), "враца", 5)
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, "НЧ Развитие", results[0].Name)
	assert.False(t, results[0].MembersCount.Valid)
}
