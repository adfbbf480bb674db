package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID   uuid.UUID
	PersonID *uuid.UUID
	Username string
	Role     string
	JTI      string
}

// AccessTokenClaims represents the typed JWT issued to clients.
type AccessTokenClaims struct {
	UserID   uuid.UUID  `json:"user_id"`
	PersonID *uuid.UUID `json:"person_id,omitempty"`
	Username string     `json:"username"`
	Role     string     `json:"role"`
	jwt.RegisteredClaims
}
