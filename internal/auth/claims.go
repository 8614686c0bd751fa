package auth

import "github.com/golang-jwt/jwt/v5"

// TokenTypeAccess marks operator tokens minted by this service. Tokens with
// any other token_type (ID tokens, refresh tokens from the IdP) are refused.
const TokenTypeAccess = "access"

// Claims carry the operator in sub and the CRM role in role.
type Claims struct {
	jwt.RegisteredClaims

	Role      string `json:"role"`
	TokenType string `json:"token_type"`
}

func (c Claims) Identity() Identity {
	return Identity{UserID: c.Subject, Role: c.Role}
}
