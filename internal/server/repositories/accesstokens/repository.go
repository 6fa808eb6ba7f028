package accesstokens

import "context"

type Repository interface {
	// GetUserID returns the owner of an application access token.
	GetUserID(ctx context.Context, token string) (string, error)
}
