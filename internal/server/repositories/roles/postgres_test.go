package roles

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listQuery = `(?s)SELECT r\."id", r\."name", r\."policies", ra\."expiresAt"\s+FROM "role_assignment" ra\s+JOIN "role" r ON .*WHERE ra\."userId" = \$1 AND \(ra\."expiresAt" IS NULL OR ra\."expiresAt" > \$2\)`

func TestListAssigned(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	exp := now.Add(time.Hour)

	rows := sqlmock.NewRows([]string{"id", "name", "policies", "expiresAt"}).
		AddRow("r1", "supporter", `{"driveCapacityMb":{"useDefault":false,"priority":1,"value":1024}}`, nil).
		AddRow("r2", "nsfw", `{"alwaysMarkNsfw":{"useDefault":false,"priority":0,"value":true}}`, exp)
	mock.ExpectQuery(listQuery).WithArgs("u1", now).WillReturnRows(rows)

	got, err := NewPostgresRepository(db).ListAssigned(context.Background(), "u1", now)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "supporter", got[0].Name)
	assert.Nil(t, got[0].ExpiresAt)
	p := got[0].Policies["driveCapacityMb"]
	assert.False(t, p.UseDefault)
	assert.Equal(t, 1, p.Priority)
	assert.Equal(t, float64(1024), p.Value)

	require.NotNil(t, got[1].ExpiresAt)
	assert.Equal(t, true, got[1].Policies["alwaysMarkNsfw"].Value)
}

func TestListAssigned_BadPolicies(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(listQuery).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "policies", "expiresAt"}).AddRow("r1", "x", `[1,2]`, nil))

	_, err = NewPostgresRepository(db).ListAssigned(context.Background(), "u1", time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode policies")
}

func TestListAssigned_DBError(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(listQuery).WillReturnError(errors.New("db down"))

	_, err = NewPostgresRepository(db).ListAssigned(context.Background(), "u1", time.Now())
	require.Error(t, err)
}
