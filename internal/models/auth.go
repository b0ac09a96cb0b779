package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// JWTClaims represents the JWT payload issued by the host platform.
type JWTClaims struct {
	UserID       int64    `json:"user_id"`
	Email        string   `json:"email"`
	FullName     string   `json:"full_name"`
	Capabilities []string `json:"capabilities"`
	jwt.RegisteredClaims
}

// HasCapability reports whether the token grants the named capability.
func (c *JWTClaims) HasCapability(capability string) bool {
	if c == nil {
		return false
	}
	for _, granted := range c.Capabilities {
		if granted == capability {
			return true
		}
	}
	return false
}
