package folders

import (
	"context"

	"github.com/dmitrijs2005/driveingest/internal/server/models"
)

type Repository interface {
	GetOwned(ctx context.Context, id string, userID string) (*models.DriveFolder, error)
}
