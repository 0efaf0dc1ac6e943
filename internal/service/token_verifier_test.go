package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

func TestTokenVerifierRoundTrip(t *testing.T) {
	verifier := NewTokenVerifier("secret", "sma-auth")

	token, err := verifier.Issue("u-1", models.RoleAdmin, time.Hour)
	require.NoError(t, err)

	claims, err := verifier.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
}

func TestTokenVerifierRejects(t *testing.T) {
	verifier := NewTokenVerifier("secret", "sma-auth")

	expired, err := verifier.Issue("u-1", models.RoleAdmin, -time.Minute)
	require.NoError(t, err)

	otherSecret, err := NewTokenVerifier("other", "sma-auth").Issue("u-1", models.RoleAdmin, time.Hour)
	require.NoError(t, err)

	otherIssuer, err := NewTokenVerifier("secret", "someone-else").Issue("u-1", models.RoleAdmin, time.Hour)
	require.NoError(t, err)

	noRole, err := verifier.Issue("u-1", "", time.Hour)
	require.NoError(t, err)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, &models.JWTClaims{
		UserID: "u-1",
		Role:   models.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "sma-auth",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	cases := map[string]string{
		"expired":      expired,
		"wrong secret": otherSecret,
		"wrong issuer": otherIssuer,
		"missing role": noRole,
		"wrong alg":    hs512,
		"garbage":      "not.a.token",
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := verifier.ValidateToken(token)
			require.Error(t, err)
			assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
		})
	}
}

func TestTokenVerifierWithoutIssuerAcceptsAny(t *testing.T) {
	token, err := NewTokenVerifier("secret", "anyone").Issue("u-1", models.RoleStudent, time.Hour)
	require.NoError(t, err)

	claims, err := NewTokenVerifier("secret", "").ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, claims.Role)
}
