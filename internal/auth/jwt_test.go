package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func testPrincipal() Principal {
	return Principal{
		ID:    uuid.New(),
		Name:  "Ada",
		Email: "ada@example.com",
		Image: "https://example.com/ada.png",
	}
}

func TestCreateToken_AndValidateToken(t *testing.T) {
	p := testPrincipal()
	secret := "test-secret"

	token, err := CreateToken(p, secret, time.Hour)
	require.NoError(t, err)

	claims, err := ValidateToken(token, secret)
	require.NoError(t, err)
	require.Equal(t, p.ID, claims.UserID)
	require.Equal(t, p.ID.String(), claims.Subject)
	require.NotNil(t, claims.ExpiresAt)
	require.Equal(t, p, claims.Principal())
}

func TestValidateToken_WrongSecret(t *testing.T) {
	token, err := CreateToken(testPrincipal(), "secret-a", time.Hour)
	require.NoError(t, err)

	_, err = ValidateToken(token, "secret-b")
	require.Error(t, err)
}

func TestValidateToken_Expired(t *testing.T) {
	token, err := CreateToken(testPrincipal(), "secret", -time.Minute)
	require.NoError(t, err)

	_, err = ValidateToken(token, "secret")
	require.Error(t, err)
}

func TestValidateToken_MissingUser(t *testing.T) {
	token, err := CreateToken(Principal{Name: "nobody"}, "secret", time.Hour)
	require.NoError(t, err)

	_, err = ValidateToken(token, "secret")
	require.Error(t, err)
}

func TestValidateToken_RejectsNoneAlgorithm(t *testing.T) {
	claims := &Claims{UserID: uuid.New()}
	token := jwt.NewWithClaims(jwt.SigningMethodNone, claims)
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = ValidateToken(signed, "secret")
	require.Error(t, err)
}
