package meta

import (
	"context"

	"github.com/dmitrijs2005/driveingest/internal/server/models"
)

type Repository interface {
	Load(ctx context.Context) (*models.Meta, error)
}
