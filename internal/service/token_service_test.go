package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timetable-engine/internal/models"
	appErrors "github.com/noah-isme/timetable-engine/pkg/errors"
)

func signToken(t *testing.T, secret string, method jwt.SigningMethod, claims models.JWTClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(method, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func validClaims() models.JWTClaims {
	now := time.Now()
	return models.JWTClaims{
		UserID: "user-1",
		Role:   models.RoleHOD,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "identity",
			Audience:  jwt.ClaimStrings{"timetable"},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
}

func TestValidateTokenAcceptsValidToken(t *testing.T) {
	svc := NewTokenService(TokenConfig{Secret: "secret", Issuer: "identity", Audience: []string{"timetable"}})
	claims, err := svc.ValidateToken(signToken(t, "secret", jwt.SigningMethodHS256, validClaims()))
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, models.RoleHOD, claims.Role)
}

func TestValidateTokenRejections(t *testing.T) {
	svc := NewTokenService(TokenConfig{Secret: "secret", Issuer: "identity", Audience: []string{"timetable"}})

	expired := validClaims()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	wrongIssuer := validClaims()
	wrongIssuer.Issuer = "someone-else"

	wrongAudience := validClaims()
	wrongAudience.Audience = jwt.ClaimStrings{"billing"}

	noRole := validClaims()
	noRole.Role = ""

	cases := map[string]string{
		"bad secret":     signToken(t, "other", jwt.SigningMethodHS256, validClaims()),
		"wrong method":   signToken(t, "secret", jwt.SigningMethodHS512, validClaims()),
		"expired":        signToken(t, "secret", jwt.SigningMethodHS256, expired),
		"wrong issuer":   signToken(t, "secret", jwt.SigningMethodHS256, wrongIssuer),
		"wrong audience": signToken(t, "secret", jwt.SigningMethodHS256, wrongAudience),
		"missing role":   signToken(t, "secret", jwt.SigningMethodHS256, noRole),
		"garbage":        "not-a-token",
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.ValidateToken(token)
			assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
		})
	}
}
