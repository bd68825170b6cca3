package models

import "time"

// Audit actions recorded by the tenant and router services.
const (
	AuditActionGradeRecord     = "GRADE_RECORD"
	AuditActionGradeUpdate     = "GRADE_UPDATE"
	AuditActionGradeDelete     = "GRADE_DELETE"
	AuditActionUserCreate      = "USER_CREATE"
	AuditActionUserUpdate      = "USER_UPDATE"
	AuditActionUserRole        = "USER_ROLE_UPDATE"
	AuditActionUserDeactivate  = "USER_DEACTIVATE"
	AuditActionUserReactivate  = "USER_REACTIVATE"
	AuditActionIdentityLink    = "IDENTITY_LINK"
	AuditActionTenantProvision = "TENANT_PROVISION"
	AuditActionTenantRemove    = "TENANT_REMOVE"
	AuditActionTenantClear     = "TENANT_CLEAR_ALL"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	TenantID   string    `db:"tenant_id" json:"tenant_id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	Success    bool      `db:"success" json:"success"`
	OldValues  []byte    `db:"old_values" json:"old_values,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// AuditFilter scopes audit log queries.
type AuditFilter struct {
	Resource   string
	ResourceID string
	UserID     string
	Limit      int
}
