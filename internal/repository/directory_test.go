package repository

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/concert-ticketing/internal/model"
)

func TestConcertGetByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM concerts c JOIN halls h")).
		WithArgs(uint64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "hall_id", "capacity"}).AddRow(1, "Opening", 4, 250))
	mock.ExpectQuery(regexp.QuoteMeta("FROM concerts c JOIN halls h")).
		WithArgs(uint64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "hall_id", "capacity"}))

	repo := NewConcertRepo(db)
	c, err := repo.GetByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, model.Concert{ID: 1, Title: "Opening", HallID: 4, HallCapacity: 250}, c)

	_, err = repo.GetByID(context.Background(), 2)
	assert.ErrorIs(t, err, model.ErrConcertNotFound)
}

func TestUserLookups(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	id := uuid.New()
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email=?")).
		WithArgs("fan@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "role"}).AddRow(id.String(), "fan@example.com", "CUSTOMER"))
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id=?")).
		WithArgs(id.String()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "role"}))

	repo := NewUserRepo(db)
	u, err := repo.GetByEmail(context.Background(), "  Fan@Example.com ")
	require.NoError(t, err)
	assert.Equal(t, id, u.ID)
	assert.Equal(t, model.RoleCustomer, u.Role)

	_, err = repo.GetByID(context.Background(), id)
	assert.ErrorIs(t, err, model.ErrBuyerNotFound)
}
