package models

import "github.com/golang-jwt/jwt/v5"

// OwnerClaims is the JWT claim set issued by the identity provider.
// Only the subject is used: it becomes the workspace owner id.
type OwnerClaims struct {
	jwt.RegisteredClaims        // Standard JWT claims (sub, iss, aud, exp, iat, etc.)
	Email                string `json:"email"`
	Role                 string `json:"role"` // "authenticated" or "anon"
	IsAnonymous          bool   `json:"is_anonymous"`
}

// GetOwnerID returns the owner id from the JWT subject claim.
func (c *OwnerClaims) GetOwnerID() string {
	return c.Subject
}
