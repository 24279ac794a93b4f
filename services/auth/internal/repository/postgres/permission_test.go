package postgres

import (
	"context"
	"fmt"
	"testing"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ncsyvn/microservices-go/services/auth/internal/domain"
)

func TestPermissionRepository_ListByGroup(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	repo := NewPermissionRepository(mock)

	mock.ExpectQuery("SELECT permission FROM group_permissions").
		WithArgs(domain.DefaultGroupID).
		WillReturnRows(pgxmock.NewRows([]string{"permission"}).
			AddRow("delete@/api/v1/auth/logout").
			AddRow("post@/api/v1/videos"))

	got, err := repo.ListByGroup(context.Background(), domain.DefaultGroupID)
	require.NoError(t, err)
	assert.Equal(t, []string{"delete@/api/v1/auth/logout", "post@/api/v1/videos"}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPermissionRepository_ListByGroup_Empty(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	repo := NewPermissionRepository(mock)

	mock.ExpectQuery("SELECT permission FROM group_permissions").
		WithArgs("no-such-group").
		WillReturnRows(pgxmock.NewRows([]string{"permission"}))

	got, err := repo.ListByGroup(context.Background(), "no-such-group")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestPermissionRepository_ListByGroup_QueryError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	repo := NewPermissionRepository(mock)

	mock.ExpectQuery("SELECT permission").
		WithArgs("g").
		WillReturnError(fmt.Errorf("boom"))

	_, err = repo.ListByGroup(context.Background(), "g")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query group permissions")
}
