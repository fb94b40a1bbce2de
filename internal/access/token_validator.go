package access

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mwpdesign/PP2-sub001/pkg/types"
)

// TokenValidator validates JWT tokens presented by portal sessions
type TokenValidator struct {
	jwtSecret []byte
}

// JWTClaims represents the claims carried by a portal token
type JWTClaims struct {
	ActorID  string `json:"actor_id"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	ParentID string `json:"parent_id,omitempty"`
	jwt.RegisteredClaims
}

// NewTokenValidator creates a new token validator
func NewTokenValidator(jwtSecret string) *TokenValidator {
	return &TokenValidator{
		jwtSecret: []byte(jwtSecret),
	}
}

// ValidateJWT parses and validates a token, returning the actor claims it
// carries
func (tv *TokenValidator) ValidateJWT(tokenString string) (*types.ActorClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return tv.jwtSecret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	if claims.ExpiresAt != nil && claims.ExpiresAt.Before(time.Now()) {
		return nil, fmt.Errorf("token has expired")
	}

	if claims.ActorID == "" {
		return nil, fmt.Errorf("token missing actor identity")
	}

	return &types.ActorClaims{
		ActorID:  claims.ActorID,
		Name:     claims.Name,
		Role:     types.Role(claims.Role),
		ParentID: claims.ParentID,
	}, nil
}
