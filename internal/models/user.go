package models

import "time"

// User is one identity registered within a tenant.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	TenantID  string    `json:"tenant_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	IsActive  bool      `json:"is_active"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// AuthzSummary answers the introspection queries for the current caller.
type AuthzSummary struct {
	UserID    string `json:"user_id"`
	Role      Role   `json:"role"`
	IsAdmin   bool   `json:"is_admin"`
	IsTeacher bool   `json:"is_teacher"`
	IsStudent bool   `json:"is_student"`
}
