// Package meta reads the instance settings row.
package meta

import (
	"context"
	"database/sql"
	"encoding/json"
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

func (r *PostgresRepository) Load(ctx context.Context) (*models.Meta, error) {
	query := `
		SELECT "sensitiveMediaDetection", "sensitiveMediaDetectionSensitivity",
		       "setSensitiveFlagAutomatically", "enableSensitiveMediaDetectionForVideos",
		       array_to_json("mediaSilencedHosts"), "policies"
		FROM "meta"
		LIMIT 1
	`

	m := &models.Meta{}
	var detection, sensitivity string
	var hosts, policies []byte

	err := r.db.QueryRowContext(ctx, query).Scan(&detection, &sensitivity,
		&m.SetSensitiveFlagAutomatically, &m.EnableSensitiveMediaDetectionForVideos, &hosts, &policies)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	m.SensitiveMediaDetection = models.SensitiveMediaDetection(detection)
	m.SensitiveMediaDetectionSensitivity = models.DetectionSensitivity(sensitivity)

	if len(hosts) > 0 {
		if err := json.Unmarshal(hosts, &m.MediaSilencedHosts); err != nil {
			return nil, fmt.Errorf("decode mediaSilencedHosts: %w", err)
		}
	}
	if len(policies) > 0 {
		if err := json.Unmarshal(policies, &m.Policies); err != nil {
			return nil, fmt.Errorf("decode policies: %w", err)
		}
	}

	return m, nil
}
