// Package auth resolves the credential an upload request carries into the
// acting user.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/driveingest/internal/common"
	"github.com/dmitrijs2005/driveingest/internal/dbx"
	"github.com/dmitrijs2005/driveingest/internal/logging"
	"github.com/dmitrijs2005/driveingest/internal/server/models"
	"github.com/dmitrijs2005/driveingest/internal/server/repositories/repomanager"
)

// Resolver maps a credential to a user. Credentials are tried, in order, as
// an application access token, a native user token and a service JWT.
type Resolver struct {
	db          dbx.DBTX
	repomanager repomanager.RepositoryManager
	secret      []byte
	logger      logging.Logger
}

func NewResolver(db dbx.DBTX, rm repomanager.RepositoryManager, secretKey string, logger logging.Logger) *Resolver {
	return &Resolver{
		db:          db,
		repomanager: rm,
		secret:      []byte(secretKey),
		logger:      logger.With("module", "auth"),
	}
}

// Authenticate returns the user the credential belongs to. Unknown or
// invalid credentials yield common.ErrorUnauthorized; catalog failures
// yield common.ErrorInternal.
func (r *Resolver) Authenticate(ctx context.Context, credential string) (*models.User, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return nil, common.ErrorUnauthorized
	}

	userRepo := r.repomanager.Users(r.db)

	userID, err := r.repomanager.AccessTokens(r.db).GetUserID(ctx, credential)
	switch {
	case err == nil:
		return r.userByID(ctx, userID)
	case !errors.Is(err, common.ErrorNotFound):
		return nil, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}

	user, err := userRepo.GetByToken(ctx, credential)
	switch {
	case err == nil:
		return user, nil
	case !errors.Is(err, common.ErrorNotFound):
		return nil, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}

	userID, err = GetUserIDFromToken(credential, r.secret)
	if err != nil {
		r.logger.Debug(ctx, "credential rejected", "error", err)
		return nil, common.ErrorUnauthorized
	}
	return r.userByID(ctx, userID)
}

func (r *Resolver) userByID(ctx context.Context, id string) (*models.User, error) {
	user, err := r.repomanager.Users(r.db).GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}
	return user, nil
}
