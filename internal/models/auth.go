package models

import "github.com/golang-jwt/jwt/v5"

// AnonymousIdentity is the caller identity of requests without credentials.
const AnonymousIdentity = "anonymous"

// IdentityClaims is the bearer token payload. The subject is the caller identity.
type IdentityClaims struct {
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}
