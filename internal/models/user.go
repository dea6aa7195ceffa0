package models

import "time"

type UserPlan string

const (
	UserPlanFree UserPlan = "free"
	UserPlanPro  UserPlan = "pro"
)

type AuthProvider string

const (
	AuthProviderLocal  AuthProvider = "local"
	AuthProviderGoogle AuthProvider = "google"
)

// User is the immutable identity snapshot returned by the API. Profile
// updates replace the whole value, fields are never patched individually.
type User struct {
	ID           int64        `json:"id"`
	Email        string       `json:"email"`
	FullName     string       `json:"full_name"`
	Plan         UserPlan     `json:"plan"`
	AuthProvider AuthProvider `json:"auth_provider"`
	Verified     bool         `json:"is_verified"`
	CreatedAt    time.Time    `json:"created_at"`
}
