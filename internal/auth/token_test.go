package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GuilhermeSP01/Escola-da-Biblia/internal/domain"
)

func TestIssueAndParse(t *testing.T) {
	svc := NewService("secret", time.Hour)
	identity := domain.Identity{UserID: "u1", Email: "ana@example.com", DisplayName: "Ana"}

	token, err := svc.Issue(identity)
	require.NoError(t, err)

	got, err := svc.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, identity, got)
}

func TestParseRejectsExpired(t *testing.T) {
	svc := NewService("secret", time.Minute)
	issued := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return issued }
	token, err := svc.Issue(domain.Identity{UserID: "u1"})
	require.NoError(t, err)

	svc.now = func() time.Time { return issued.Add(2 * time.Minute) }
	_, err = svc.Parse(token)
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
}

func TestParseRejectsForeignSecret(t *testing.T) {
	token, err := NewService("other", time.Hour).Issue(domain.Identity{UserID: "u1"})
	require.NoError(t, err)

	_, err = NewService("secret", time.Hour).Parse(token)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestParseRejectsNoneAlgorithm(t *testing.T) {
	claims := &Claims{Sub: "u1", RegisteredClaims: jwt.RegisteredClaims{Issuer: issuer}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewService("secret", time.Hour).Parse(token)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestIdentityContext(t *testing.T) {
	_, ok := IdentityFrom(context.Background())
	assert.False(t, ok)

	ctx := WithIdentity(context.Background(), domain.Identity{UserID: "u1", Admin: true})
	got, ok := IdentityFrom(ctx)
	require.True(t, ok)
	assert.Equal(t, "u1", got.UserID)
	assert.True(t, got.Admin)
}
