package signal

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sarim-aliii/duet/internal/domain"
)

var ErrBadToken = errors.New("invalid identity token")

// Claims is the identity token payload issued by the auth service.
type Claims struct {
	UserID string `json:"uid"`
	jwt.RegisteredClaims
}

// ParseIdentity verifies the HMAC-signed token and extracts the
// identity. Admission fails closed: any parse or validation failure
// rejects the connection before the websocket upgrade.
func ParseIdentity(secret, tokenString string) (domain.UserID, error) {
	if tokenString == "" {
		return "", ErrBadToken
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return "", ErrBadToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || claims.UserID == "" {
		return "", ErrBadToken
	}
	return domain.UserID(claims.UserID), nil
}
