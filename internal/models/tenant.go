package models

import "time"

// TenantSettings caps a tenant's usage.
type TenantSettings struct {
	MaxStudents           uint32 `json:"max_students"`
	MaxInstructors        uint32 `json:"max_instructors"`
	MaxCourses            uint32 `json:"max_courses"`
	AllowPublicEnrollment bool   `json:"allow_public_enrollment"`
	CustomBranding        bool   `json:"custom_branding"`
}

// DefaultTenantSettings returns the settings new tenants start with.
func DefaultTenantSettings() TenantSettings {
	return TenantSettings{
		MaxStudents:    1000,
		MaxInstructors: 100,
		MaxCourses:     500,
	}
}

// TenantRecord is the router's entry for one provisioned university.
type TenantRecord struct {
	TenantID   string         `json:"tenant_id"`
	Name       string         `json:"name"`
	Subdomain  string         `json:"subdomain"`
	InstanceID string         `json:"instance_id"`
	AdminIDs   []string       `json:"admin_ids"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	IsActive   bool           `json:"is_active"`
	Settings   TenantSettings `json:"settings"`
}

// RoutingEntry maps a subdomain to the instance serving it.
type RoutingEntry struct {
	Subdomain  string `json:"subdomain"`
	InstanceID string `json:"instance_id"`
}

// TemplateConfig names the instance whose code package new tenants install.
type TemplateConfig struct {
	TemplateInstanceID *string   `json:"template_instance_id,omitempty"`
	TemplateVersion    string    `json:"template_version"`
	LastUpdated        time.Time `json:"last_updated"`
	AutoUpdate         bool      `json:"auto_update"`
}

// HasTemplate reports whether a non-empty template instance is configured.
func (c TemplateConfig) HasTemplate() bool {
	return c.TemplateInstanceID != nil && *c.TemplateInstanceID != ""
}

// DefaultTemplateConfig is returned before any template has been configured.
func DefaultTemplateConfig() TemplateConfig {
	return TemplateConfig{TemplateVersion: "1.0.0", AutoUpdate: true}
}

// ClearResult counts what a bulk reset removed.
type ClearResult struct {
	TenantsRemoved int `json:"tenants_removed"`
	RoutesRemoved  int `json:"routes_removed"`
}

// RouterStats summarises the registry.
type RouterStats struct {
	TenantCount     int    `json:"tenant_count"`
	RoutingEntries  int    `json:"routing_entries"`
	ActiveTenants   int    `json:"active_tenants"`
	HasTemplate     bool   `json:"has_template"`
	TemplateVersion string `json:"template_version"`
}

// RegistryInspection is a snapshot of the tenant registry.
type RegistryInspection struct {
	TotalTenants    int            `json:"total_tenants"`
	Tenants         []TenantRecord `json:"tenants"`
	TenantIDs       []string       `json:"tenant_ids"`
	ActiveTenants   []string       `json:"active_tenants"`
	InactiveTenants []string       `json:"inactive_tenants"`
}

// RoutingInspection is a snapshot of the routing table.
type RoutingInspection struct {
	TotalRoutes int            `json:"total_routes"`
	Routes      []RoutingEntry `json:"routes"`
	Subdomains  []string       `json:"subdomains"`
	InstanceIDs []string       `json:"instance_ids"`
}

// SystemInspection cross references the registry and routing table.
type SystemInspection struct {
	Registry        RegistryInspection `json:"tenant_registry"`
	Routing         RoutingInspection  `json:"routing_table"`
	OrphanedRoutes  []RoutingEntry     `json:"orphaned_routes"`
	OrphanedTenants []TenantRecord     `json:"orphaned_tenants"`
	DataConsistency bool               `json:"data_consistency"`
	InspectedAt     time.Time          `json:"inspected_at"`
}

// TenantState is the single initialization cell of a tenant instance.
type TenantState struct {
	TenantID       string    `json:"tenant_id"`
	AdminPrincipal string    `json:"admin_principal"`
	InitializedAt  time.Time `json:"initialized_at"`
}
