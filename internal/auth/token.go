package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/GuilhermeSP01/Escola-da-Biblia/internal/domain"
)

const issuer = "escola-da-biblia"

// Claims carries the student identity. Admin rights are not in the token;
// they are looked up per request so a revoke takes effect immediately.
type Claims struct {
	Sub   string `json:"sub"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Service issues and verifies HS256 bearer tokens.
type Service struct {
	hmac []byte
	ttl  time.Duration
	now  func() time.Time
}

func NewService(secret string, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Service{hmac: []byte(secret), ttl: ttl, now: time.Now}
}

func (s *Service) Issue(identity domain.Identity) (string, error) {
	if identity.UserID == "" {
		return "", errors.New("issue token: user id is required")
	}
	now := s.now()
	claims := &Claims{
		Sub:   identity.UserID,
		Email: identity.Email,
		Name:  identity.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   identity.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(s.hmac)
}

// Parse verifies tokenStr and returns the identity it carries.
// Any failure is reported as domain.ErrUnauthorized.
func (s *Service) Parse(tokenStr string) (domain.Identity, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return s.hmac, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return domain.Identity{}, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	c, ok := token.Claims.(*Claims)
	if !ok || c.Sub == "" {
		return domain.Identity{}, fmt.Errorf("%w: token has no subject", domain.ErrUnauthorized)
	}
	return domain.Identity{UserID: c.Sub, Email: c.Email, DisplayName: c.Name}, nil
}

type ctxKey struct{}

// WithIdentity stores the caller's identity in ctx.
func WithIdentity(ctx context.Context, identity domain.Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, identity)
}

// IdentityFrom returns the identity stored by WithIdentity.
func IdentityFrom(ctx context.Context) (domain.Identity, bool) {
	identity, ok := ctx.Value(ctxKey{}).(domain.Identity)
	return identity, ok
}
