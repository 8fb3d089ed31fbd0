package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims represents the JWT payload for access tokens. Scope fields are
// issued by the identity provider and drive the entry visibility policy.
type JWTClaims struct {
	UserID        string   `json:"user_id"`
	Role          UserRole `json:"role"`
	Email         string   `json:"email"`
	FullName      string   `json:"full_name"`
	DepartmentIDs []string `json:"department_ids,omitempty"`
	ClassGroupIDs []string `json:"class_group_ids,omitempty"`
	SchoolID      string   `json:"school_id,omitempty"`
	jwt.RegisteredClaims
}
