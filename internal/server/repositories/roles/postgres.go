// Package roles reads role assignments and their policy documents.
package roles

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/driveingest/internal/dbx"
	"github.com/dmitrijs2005/driveingest/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) ListAssigned(ctx context.Context, userID string, now time.Time) ([]*models.Role, error) {
	query := `
		SELECT r."id", r."name", r."policies", ra."expiresAt"
		FROM "role_assignment" ra
		JOIN "role" r ON r."id" = ra."roleId"
		WHERE ra."userId" = $1 AND (ra."expiresAt" IS NULL OR ra."expiresAt" > $2)
		ORDER BY r."id"
	`
	rows, err := r.db.QueryContext(ctx, query, userID, now)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Role
	for rows.Next() {
		role := &models.Role{}
		var policies []byte
		if err := rows.Scan(&role.ID, &role.Name, &policies, &role.ExpiresAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		if len(policies) > 0 {
			if err := json.Unmarshal(policies, &role.Policies); err != nil {
				return nil, fmt.Errorf("role %s: decode policies: %w", role.ID, err)
			}
		}
		result = append(result, role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}
