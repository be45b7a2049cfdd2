package auth

import (
	"github.com/golang-jwt/jwt/v5"
)

// AccessTokenPayload captures the data available when minting a JWT. The token
// authenticates a username only; the role in force is looked up per request so
// a role change applies to tokens already in the wild.
type AccessTokenPayload struct {
	Username string
	JTI      string
}

// AccessTokenClaims represents the typed JWT issued to producers and consumers.
type AccessTokenClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}
