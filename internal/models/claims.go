package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// RoleAdmin may trigger retraining.
const RoleAdmin = "admin"

// Claims defines the structure of the JWT claims.
type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}
