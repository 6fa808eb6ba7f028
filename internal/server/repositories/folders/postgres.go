// Package folders provides read access to drive_folder rows.
package folders

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

// GetOwned returns the folder only when it belongs to userID; any other
// folder is reported as common.ErrorNotFound.
func (r *PostgresRepository) GetOwned(ctx context.Context, id string, userID string) (*models.DriveFolder, error) {
	query := `SELECT "id", "name", "userId", "parentId" FROM "drive_folder" WHERE "id" = $1 AND "userId" = $2`

	f := &models.DriveFolder{}
	err := r.db.QueryRowContext(ctx, query, id, userID).Scan(&f.ID, &f.Name, &f.UserID, &f.ParentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return f, nil
}
