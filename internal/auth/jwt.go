package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims represents the JWT claims issued by the identity provider.
type Claims struct {
	UserID  uuid.UUID `json:"user_id"`
	Name    string    `json:"name,omitempty"`
	Email   string    `json:"email,omitempty"`
	Picture string    `json:"picture,omitempty"`
	jwt.RegisteredClaims
}

// Principal returns the authenticated principal carried by the claims.
func (c *Claims) Principal() Principal {
	return Principal{
		ID:    c.UserID,
		Name:  c.Name,
		Email: c.Email,
		Image: c.Picture,
	}
}

// CreateToken creates a signed session token for the given principal.
// The token is signed with HS256 and expires after ttl.
func CreateToken(p Principal, secret string, ttl time.Duration) (string, error) {
	now := time.Now()

	claims := &Claims{
		UserID:  p.ID,
		Name:    p.Name,
		Email:   p.Email,
		Picture: p.Image,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// ValidateToken validates a session token and returns the claims.
// Returns an error if the token is invalid, expired, malformed or has no user.
func ValidateToken(tokenString, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	if claims.UserID == uuid.Nil {
		return nil, fmt.Errorf("token has no user id")
	}

	return claims, nil
}
