// Package token issues and verifies the signed identity tokens used for
// session auth. The service is stateless: a pure function of the signing
// secret, the payload, and the clock.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"fileshare/internal/model"
)

var (
	ErrTokenMissing = errors.New("token missing")
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
)

// Claims carries the registered claims plus the identity fields minted at login.
type Claims struct {
	jwt.RegisteredClaims
	UserID   string     `json:"uid"`
	FullName string     `json:"fullname"`
	Username string     `json:"username"`
	Email    string     `json:"email"`
	Role     model.Role `json:"role"`
}

// Service signs and parses identity tokens with a process-wide HS256 secret.
type Service struct {
	secret []byte
	ttl    time.Duration
}

// NewService constructs a token Service. An empty secret is a configuration
// error: callers are expected to treat it as fatal at startup.
func NewService(secret string, ttl time.Duration) (*Service, error) {
	if secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("token ttl must be positive")
	}
	return &Service{secret: []byte(secret), ttl: ttl}, nil
}

// Issue signs the identity into an expiring token.
func (s *Service) Issue(id model.Identity) (string, error) {
	now := time.Now()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		UserID:   id.ID,
		FullName: id.FullName,
		Username: id.Username,
		Email:    id.Email,
		Role:     id.Role,
	})
	return t.SignedString(s.secret)
}

// Verify checks the signature and expiry and returns the embedded identity.
// It fails with ErrTokenMissing, ErrTokenExpired, or ErrTokenInvalid.
func (s *Service) Verify(tokenString string) (*model.Identity, error) {
	if tokenString == "" {
		return nil, ErrTokenMissing
	}
	claims := &Claims{}
	t, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !t.Valid {
		return nil, ErrTokenInvalid
	}
	return identityFromClaims(claims), nil
}

// Decode extracts the identity without verifying the signature. Nothing on a
// request path may trust its result; request identity always comes from
// Verify. It exists for diagnostics on already-issued tokens. A token that
// cannot be parsed at all still fails with ErrTokenInvalid.
func (s *Service) Decode(tokenString string) (*model.Identity, error) {
	if tokenString == "" {
		return nil, ErrTokenMissing
	}
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return nil, ErrTokenInvalid
	}
	return identityFromClaims(claims), nil
}

func identityFromClaims(c *Claims) *model.Identity {
	return &model.Identity{
		ID:       c.UserID,
		FullName: c.FullName,
		Username: c.Username,
		Email:    c.Email,
		Role:     c.Role,
	}
}
