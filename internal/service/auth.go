package service

import (
	"fmt"

	"github.com/sachin12054/ai-expense-ledger-go/internal/domain"

	"github.com/golang-jwt/jwt/v5"
)

// TokenVerifier validates bearer tokens issued by the identity provider.
// This service never issues tokens itself; it only checks the HMAC signature
// and extracts the account identity from the subject claim.
type TokenVerifier struct {
	secret []byte
}

func NewTokenVerifier(secret string) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret)}
}

// AccountClaims are the claims carried by an access token. Sub holds the
// account ID.
type AccountClaims struct {
	jwt.RegisteredClaims
}

// ValidateAccessToken parses and verifies the token and returns its claims.
// Any parse, signature or expiry failure maps to ErrUnauthorized.
func (v *TokenVerifier) ValidateAccessToken(tokenString string) (*AccountClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AccountClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, &domain.ErrUnauthorized{Message: "invalid or expired token"}
	}

	claims, ok := token.Claims.(*AccountClaims)
	if !ok || !token.Valid {
		return nil, &domain.ErrUnauthorized{Message: "invalid token"}
	}
	if claims.Subject == "" {
		return nil, &domain.ErrUnauthorized{Message: "token missing subject"}
	}

	return claims, nil
}
