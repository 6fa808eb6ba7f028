package users

import (
	"context"

	"github.com/dmitrijs2005/driveingest/internal/server/models"
)

type Repository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByToken(ctx context.Context, token string) (*models.User, error)
	GetProfile(ctx context.Context, userID string) (*models.UserProfile, error)
}
