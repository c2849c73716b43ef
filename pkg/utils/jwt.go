package utils

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/maheshrc27/crosspost/internal/transfer"
)

// TokenPurpose keeps API session tokens and OAuth connect state apart; a token
// minted for one is rejected as the other.
type TokenPurpose string

const (
	SessionToken    TokenPurpose = "session"
	OAuthStateToken TokenPurpose = "oauth_state"
)

const tokenIssuer = "crosspost"

var ErrTokenPurpose = errors.New("token issued for another purpose")

func GenerateToken(secretKey string, purpose TokenPurpose, userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := transfer.CustomClaims{
		UserID:  userID,
		Purpose: string(purpose),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secretKey))
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}
	return signed, nil
}

// ValidateToken checks signature, expiry and purpose. Session tokens minted
// without a purpose claim are accepted as sessions.
func ValidateToken(secretKey string, purpose TokenPurpose, tokenString string) (*transfer.CustomClaims, error) {
	claims := &transfer.CustomClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(secretKey), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	got := TokenPurpose(claims.Purpose)
	if got == "" && purpose == SessionToken {
		got = SessionToken
	}
	if got != purpose {
		return nil, fmt.Errorf("%w: %q", ErrTokenPurpose, claims.Purpose)
	}
	if claims.UserID == "" {
		return nil, errors.New("token has no user")
	}
	return claims, nil
}
