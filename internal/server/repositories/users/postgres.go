// Package users provides read access to user and user_profile rows.
package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/driveingest/internal/common"
	"github.com/dmitrijs2005/driveingest/internal/dbx"
	"github.com/dmitrijs2005/driveingest/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT "id", "username", "host", "token" FROM "user" WHERE "id" = $1`
	return r.getUser(ctx, query, id)
}

// GetByToken resolves a native session token of a local user.
func (r *PostgresRepository) GetByToken(ctx context.Context, token string) (*models.User, error) {
	query := `SELECT "id", "username", "host", "token" FROM "user" WHERE "token" = $1`
	return r.getUser(ctx, query, token)
}

func (r *PostgresRepository) getUser(ctx context.Context, query string, arg string) (*models.User, error) {
	user := &models.User{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(&user.ID, &user.Username, &user.Host, &user.Token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) GetProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	query := `SELECT "userId", "alwaysMarkNsfw", "autoSensitive" FROM "user_profile" WHERE "userId" = $1`

	p := &models.UserProfile{}
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&p.UserID, &p.AlwaysMarkNsfw, &p.AutoSensitive)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return p, nil
}
