package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims is the access token payload issued by the authentication service.
type JWTClaims struct {
	UserID int64    `json:"userId"`
	Email  string   `json:"email"`
	Role   UserRole `json:"role"`
	jwt.RegisteredClaims
}
