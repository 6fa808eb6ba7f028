package files

import (
	"context"

	"github.com/dmitrijs2005/driveingest/internal/server/models"
)

type Repository interface {
	// Usage is the number of bytes the user's non-link files occupy.
	Usage(ctx context.Context, userID string) (int64, error)
	FindByMD5(ctx context.Context, userID string, md5 string) (*models.DriveFile, error)
	MarkSensitive(ctx context.Context, id string) error
	Create(ctx context.Context, file *models.DriveFile) error
}
