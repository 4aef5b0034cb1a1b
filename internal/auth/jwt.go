package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/A7-pro/mikerobot/internal/config"
)

const tokenTTL = 24 * time.Hour

var ErrInvalidToken = errors.New("invalid token")

// Claims name the signed-in user and the client that signed in. Sign-in state is kept per client, so a
// token only ever speaks for the client it was issued to.
type Claims struct {
	ClientID string `json:"cid"`
	jwt.RegisteredClaims
}

func (c *Claims) UserID() string {
	return c.Subject
}

func signingKey() []byte {
	return []byte(config.AppConfig.JWTSecret)
}

// IssueToken signs an HS256 token for userID on clientID.
func IssueToken(userID, clientID string) (string, error) {
	if userID == "" || clientID == "" {
		return "", fmt.Errorf("%w: user and client are required", ErrInvalidToken)
	}
	now := time.Now()
	claims := Claims{
		ClientID: clientID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(signingKey())
}

// ParseToken verifies the signature and expiry and returns the claims. Tokens without a subject or a
// client are rejected.
func ParseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return signingKey(), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" || claims.ClientID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
