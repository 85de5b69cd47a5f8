package common

import (
	"github.com/golang-jwt/jwt/v5"
)

// Claims represents the custom claims carried by API access tokens.
type Claims struct {
	UserID               string `json:"uid"`           // Custom claim for User ID.
	Email                string `json:"eml,omitempty"` // Custom claim for Email.
	Role                 string `json:"rol,omitempty"` // Custom claim for User Role.
	Scope                string `json:"scope,omitempty"`
	jwt.RegisteredClaims        // Embed standard claims (ExpiresAt, IssuedAt, Subject, etc.).
}

// Subject returns the user the token was issued for, preferring the custom claim.
func (c *Claims) OwnerID() string {
	if c.UserID != "" {
		return c.UserID
	}
	return c.RegisteredClaims.Subject
}
