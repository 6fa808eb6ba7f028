package auth

import (
	"errors"

	"github.com/dmitrijs2005/driveingest/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims is the payload of a service token: the registered claims plus the
// id of the user the token acts as.
type Claims struct {
	jwt.RegisteredClaims
	UserID string
}

// GetUserIDFromToken validates an HS256 token signed with secretKey and
// returns its UserID claim.
func GetUserIDFromToken(tokenString string, secretKey []byte) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", jwt.ErrTokenExpired
		}
		return "", common.ErrInvalidToken
	}

	if !token.Valid || claims.UserID == "" {
		return "", common.ErrInvalidToken
	}

	return claims.UserID, nil
}
