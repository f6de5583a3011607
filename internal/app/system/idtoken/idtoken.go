// Package idtoken issues and verifies the signed bearer tokens API clients
// use instead of the session cookie.
package idtoken

import (
	"errors"
	"time"

	"github.com/dalemusser/churchhub/internal/app/system/auth"
	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

const issuer = "churchhub"

// Claims carries the identity a token was issued for.
type Claims struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Service signs tokens with a shared HMAC secret.
type Service struct {
	secret []byte
	expiry time.Duration
	now    func() time.Time
}

// New returns a Service. expiry <= 0 defaults to one hour.
func New(secret string, expiry time.Duration) *Service {
	if expiry <= 0 {
		expiry = time.Hour
	}
	return &Service{secret: []byte(secret), expiry: expiry, now: time.Now}
}

// Expiry returns how long issued tokens stay valid.
func (s *Service) Expiry() time.Duration { return s.expiry }

// Issue returns a signed token for id.
func (s *Service) Issue(id auth.Identity) (string, error) {
	now := s.now()
	claims := Claims{
		Email: id.Email,
		Name:  id.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   id.ID,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify parses token and returns the identity it carries. It satisfies
// auth.TokenVerifier.
func (s *Service) Verify(token string) (auth.Identity, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return auth.Identity{}, ErrExpiredToken
		}
		return auth.Identity{}, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return auth.Identity{}, ErrInvalidToken
	}
	return auth.Identity{ID: claims.Subject, Email: claims.Email, DisplayName: claims.Name}, nil
}
