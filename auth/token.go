package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for any token that fails verification.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the session token payload. Subject is the actor id.
type Claims struct {
	Role Role   `json:"role"`
	Unit string `json:"unit,omitempty"`
	jwt.RegisteredClaims
}

// Tokens signs and verifies HS256 session tokens.
type Tokens struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewTokens(secret, issuer string, ttl time.Duration) *Tokens {
	return &Tokens{secret: []byte(secret), issuer: issuer, ttl: ttl, now: time.Now}
}

// Issue signs a token for the actor. Used by the dev CLI and tests; production
// tokens come from the identity provider.
func (t *Tokens) Issue(a Actor) (string, error) {
	if a.ID == "" || !a.Role.Valid() {
		return "", fmt.Errorf("issue token: %w", ErrInvalidToken)
	}
	now := t.now()
	claims := Claims{
		Role: a.Role,
		Unit: a.UnitRef,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   a.ID,
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Parse verifies the token and returns the actor it names.
func (t *Tokens) Parse(token string) (Actor, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(tok *jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.issuer),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return Actor{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" || !claims.Role.Valid() {
		return Actor{}, ErrInvalidToken
	}
	return Actor{ID: claims.Subject, Role: claims.Role, UnitRef: claims.Unit}, nil
}
