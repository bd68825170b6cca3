// Package instance defines how the router drives the compute substrate that
// hosts tenant instances.
package instance

import (
	"context"
	"errors"
)

var (
	// ErrInstanceNotFound is returned for instance ids the substrate does not know.
	ErrInstanceNotFound = errors.New("instance not found")
	// ErrBudgetTooLow is returned when a creation budget is below the substrate minimum.
	ErrBudgetTooLow = errors.New("resource budget below substrate minimum")
)

// CodePackage identifies installable tenant code by the instance it is copied from.
type CodePackage struct {
	SourceInstanceID string `json:"source_instance_id"`
	Version          string `json:"version"`
}

// InitArgs are passed to tenant code on install.
type InitArgs struct {
	TenantID       string `json:"tenant_id"`
	AdminPrincipal string `json:"admin_principal"`
}

// Client is the lifecycle contract of the substrate. Every call may fail and
// may block on the substrate.
type Client interface {
	CreateInstance(ctx context.Context, controllers []string, budget uint64) (string, error)
	DeleteInstance(ctx context.Context, instanceID string) error
	InstallCode(ctx context.Context, instanceID string, pkg CodePackage, args InitArgs) error
}
