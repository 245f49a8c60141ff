// Package auth validates bearer tokens issued by the identity provider and
// exposes the authenticated principal (user id plus role claims) to
// handlers through the request context.
package auth

import (
	"fmt"
	"time"

	"github.com/gartstein/bizlink/internal/engagement/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Principal is the authenticated caller.
type Principal struct {
	UserID uuid.UUID
	Roles  []models.Role
}

// HasRole reports whether the principal carries the given role claim.
func (p *Principal) HasRole(role models.Role) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// GenerateToken signs a token carrying the user id and role claims. Used by
// the mock authentication service and tests.
func GenerateToken(userID uuid.UUID, roles []models.Role, secret string, ttl time.Duration) (string, error) {
	roleClaims := make([]string, 0, len(roles))
	for _, role := range roles {
		roleClaims = append(roleClaims, string(role))
	}
	claims := jwt.MapClaims{
		"sub":   userID.String(),
		"roles": roleClaims,
		"exp":   time.Now().Add(ttl).Unix(),
		"iat":   time.Now().Unix(),
		"iss":   "auth-service",
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// validateToken checks the token signature and returns the principal
// encoded in its claims.
func validateToken(tokenString, secret string) (*Principal, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	sub, err := claims.GetSubject()
	if err != nil {
		return nil, fmt.Errorf("invalid subject claim: %w", err)
	}
	userID, err := uuid.Parse(sub)
	if err != nil {
		return nil, fmt.Errorf("invalid subject claim: %w", err)
	}

	principal := &Principal{UserID: userID}
	if raw, ok := claims["roles"].([]interface{}); ok {
		for _, entry := range raw {
			if role, ok := entry.(string); ok {
				principal.Roles = append(principal.Roles, models.Role(role))
			}
		}
	}
	return principal, nil
}
