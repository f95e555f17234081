package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/clickgate/clickgate/pkg/clickgate/models"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// Claims represents the JWT claims
type Claims struct {
	UserID     uint              `json:"user_id"`
	Email      string            `json:"email"`
	SystemRole models.SystemRole `json:"system_role"`
	jwt.RegisteredClaims
}

// TokenManager issues and validates JWT tokens
type TokenManager struct {
	secret   []byte
	issuer   string
	lifetime time.Duration
}

// NewTokenManager creates a token manager. An empty secret falls back to a
// development-only default; set a real secret in production config.
func NewTokenManager(secret, issuer string, expirationHours int) *TokenManager {
	if secret == "" {
		secret = "clickgate-dev-secret-change-in-production"
	}
	if issuer == "" {
		issuer = "clickgate"
	}
	if expirationHours <= 0 {
		expirationHours = 24
	}
	return &TokenManager{
		secret:   []byte(secret),
		issuer:   issuer,
		lifetime: time.Duration(expirationHours) * time.Hour,
	}
}

// GenerateToken creates a new JWT token for a user
func (m *TokenManager) GenerateToken(userID uint, email string, role models.SystemRole) (string, error) {
	claims := &Claims{
		UserID:     userID,
		Email:      email,
		SystemRole: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(m.lifetime)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    m.issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// ValidateToken validates a JWT token and returns the claims
func (m *TokenManager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
