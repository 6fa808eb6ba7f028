package roles

import (
	"context"
	"time"

	"github.com/dmitrijs2005/driveingest/internal/server/models"
)

type Repository interface {
	// ListAssigned returns the roles manually assigned to userID whose
	// assignment has not expired at now.
	ListAssigned(ctx context.Context, userID string, now time.Time) ([]*models.Role, error)
}
