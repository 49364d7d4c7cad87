package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentcore-backend/shared/config"
)

func TestJWTRoundTrip(t *testing.T) {
	userID := uuid.New()
	orgID := uuid.New()

	token, err := GenerateJWT(userID, "manager@sunrise.test", &orgID)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ValidateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, userID.String(), claims.UserID)
	assert.Equal(t, "manager@sunrise.test", claims.Email)
	assert.Equal(t, orgID.String(), claims.OrganizationID)
}

func TestJWTWithoutOrganization(t *testing.T) {
	userID := uuid.New()

	token, err := GenerateJWT(userID, "solo@example.com", nil)
	require.NoError(t, err)

	claims, err := ValidateJWT(token)
	require.NoError(t, err)
	assert.Empty(t, claims.OrganizationID)
}

func TestValidateJWTExpired(t *testing.T) {
	claims := Claims{
		UserID: uuid.New().String(),
		Email:  "expired@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(config.GetConfig().JWTSecret))
	require.NoError(t, err)

	_, err = ValidateJWT(signed)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestValidateJWTWrongSecret(t *testing.T) {
	claims := Claims{
		UserID: uuid.New().String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("some-other-secret"))
	require.NoError(t, err)

	_, err = ValidateJWT(signed)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrTokenExpired)
}

func TestValidateJWTGarbage(t *testing.T) {
	_, err := ValidateJWT("not-a-token")
	assert.Error(t, err)
}
