// Package invite issues and verifies signed household invite tokens. The
// token travels out of band (the inviter shares it with the invitee), so it is
// self-contained: household, email, and role ride in the claims.
package invite

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const defaultTTL = 7 * 24 * time.Hour

var (
	ErrInvalidToken = errors.New("invite: invalid token")
	ErrExpiredToken = errors.New("invite: token expired")
)

// Claims are the invite payload carried inside the JWT.
type Claims struct {
	HouseholdID string `json:"household_id"`
	Email       string `json:"email"`
	Role        string `json:"role"`
	jwt.RegisteredClaims
}

// Issuer creates and verifies invite tokens with a shared HMAC secret.
type Issuer struct {
	secret []byte
	ttl    time.Duration
}

func NewIssuer(secret string) *Issuer {
	return &Issuer{secret: []byte(secret), ttl: defaultTTL}
}

// Issue signs an invite for email to join householdID with the given role.
func (i *Issuer) Issue(householdID, email, role string, now time.Time) (string, error) {
	claims := Claims{
		HouseholdID: householdID,
		Email:       email,
		Role:        role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign invite: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token, returning its claims.
func (i *Issuer) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	if !token.Valid || claims.HouseholdID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
