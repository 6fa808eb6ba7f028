// Package files provides the drive_file catalog repository.
package files

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

const columns = `"id", "userId", "userHost", "md5", "name", "type", "size", "size_long",
	"comment", "blurhash", "properties", "storedInternal", "url", "thumbnailUrl",
	"accessKey", "thumbnailAccessKey", "isSensitive", "maybeSensitive", "isLink", "folderId"`

// PostgresRepository implements the catalog over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Usage sums size_long over the user's non-link files and adds the legacy
// size column only for rows whose size_long is zero, so no file is counted
// twice.
func (r *PostgresRepository) Usage(ctx context.Context, userID string) (int64, error) {
	query := `
		SELECT COALESCE(SUM("size_long"), 0),
		       COALESCE(SUM("size") FILTER (WHERE "size_long" = 0), 0)
		FROM "drive_file"
		WHERE "userId" = $1 AND "isLink" = false
	`

	var wide, narrow int64
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&wide, &narrow); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	return wide + narrow, nil
}

// FindByMD5 returns the oldest file of userID with the given content hash.
func (r *PostgresRepository) FindByMD5(ctx context.Context, userID string, md5 string) (*models.DriveFile, error) {
	query := `SELECT ` + columns + `
		FROM "drive_file"
		WHERE "userId" = $1 AND "md5" = $2
		ORDER BY "id"
		LIMIT 1`

	f, err := scanFile(r.db.QueryRowContext(ctx, query, userID, md5))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return f, nil
}

// MarkSensitive sets isSensitive on a file. The flag is never cleared here,
// and a file that is already sensitive is left alone.
func (r *PostgresRepository) MarkSensitive(ctx context.Context, id string) error {
	query := `UPDATE "drive_file" SET "isSensitive" = true WHERE "id" = $1 AND "isSensitive" = false`

	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

// Create inserts a new catalog row.
func (r *PostgresRepository) Create(ctx context.Context, f *models.DriveFile) error {
	props, err := json.Marshal(f.Properties)
	if err != nil {
		return fmt.Errorf("encode properties: %w", err)
	}

	query := `INSERT INTO "drive_file" (` + columns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`

	_, err = r.db.ExecContext(ctx, query,
		f.ID, f.UserID, f.UserHost, f.MD5, f.Name, f.Type, f.Size, f.SizeLong,
		f.Comment, f.Blurhash, props, f.StoredInternal, f.URL, f.ThumbnailURL,
		f.AccessKey, f.ThumbnailAccessKey, f.IsSensitive, f.MaybeSensitive, f.IsLink, f.FolderID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func scanFile(row *sql.Row) (*models.DriveFile, error) {
	f := &models.DriveFile{}
	var props []byte
	var accessKey sql.NullString

	err := row.Scan(&f.ID, &f.UserID, &f.UserHost, &f.MD5, &f.Name, &f.Type, &f.Size, &f.SizeLong,
		&f.Comment, &f.Blurhash, &props, &f.StoredInternal, &f.URL, &f.ThumbnailURL,
		&accessKey, &f.ThumbnailAccessKey, &f.IsSensitive, &f.MaybeSensitive, &f.IsLink, &f.FolderID)
	if err != nil {
		return nil, err
	}

	f.AccessKey = accessKey.String
	if len(props) > 0 {
		if err := json.Unmarshal(props, &f.Properties); err != nil {
			return nil, fmt.Errorf("decode properties: %w", err)
		}
	}

	return f, nil
}
