package repository

import (
	"strings"
	"time"

	"github.com/noah-isme/lms-platform/internal/models"
	"github.com/noah-isme/lms-platform/pkg/codec"
)

// tenantRecordV1 is the first router layout: a full domain instead of a
// subdomain and a single admin principal.
type tenantRecordV1 struct {
	ID             string    `cbor:"id"`
	Name           string    `cbor:"name"`
	Domain         string    `cbor:"domain"`
	CanisterID     string    `cbor:"canister_id"`
	AdminPrincipal string    `cbor:"admin_principal"`
	CreatedAt      time.Time `cbor:"created_at"`
	IsActive       bool      `cbor:"is_active"`
}

// tenantRecordV2 added subdomain routing and admin sets but had no settings.
type tenantRecordV2 struct {
	TenantID   string    `cbor:"tenant_id"`
	Name       string    `cbor:"name"`
	Subdomain  string    `cbor:"subdomain"`
	InstanceID string    `cbor:"instance_id"`
	AdminIDs   []string  `cbor:"admin_ids"`
	CreatedAt  time.Time `cbor:"created_at"`
	IsActive   bool      `cbor:"is_active"`
}

var tenantSchema = codec.Schema[models.TenantRecord]{
	Kind:    "tenant",
	Version: 3,
	Legacy: map[uint16]codec.Migration[models.TenantRecord]{
		1: migrateTenantV1,
		2: migrateTenantV2,
	},
}

func migrateTenantV1(payload []byte) (models.TenantRecord, error) {
	var old tenantRecordV1
	if err := codec.Unmarshal(payload, &old); err != nil {
		return models.TenantRecord{}, err
	}
	subdomain, _, _ := strings.Cut(old.Domain, ".")
	var admins []string
	if old.AdminPrincipal != "" {
		admins = []string{old.AdminPrincipal}
	}
	return models.TenantRecord{
		TenantID:   old.ID,
		Name:       old.Name,
		Subdomain:  subdomain,
		InstanceID: old.CanisterID,
		AdminIDs:   admins,
		CreatedAt:  old.CreatedAt,
		UpdatedAt:  old.CreatedAt,
		IsActive:   old.IsActive,
		Settings:   models.DefaultTenantSettings(),
	}, nil
}

func migrateTenantV2(payload []byte) (models.TenantRecord, error) {
	var old tenantRecordV2
	if err := codec.Unmarshal(payload, &old); err != nil {
		return models.TenantRecord{}, err
	}
	return models.TenantRecord{
		TenantID:   old.TenantID,
		Name:       old.Name,
		Subdomain:  old.Subdomain,
		InstanceID: old.InstanceID,
		AdminIDs:   old.AdminIDs,
		CreatedAt:  old.CreatedAt,
		UpdatedAt:  old.CreatedAt,
		IsActive:   old.IsActive,
		Settings:   models.DefaultTenantSettings(),
	}, nil
}

var routeSchema = codec.Schema[models.RoutingEntry]{Kind: "route", Version: 1}

var templateSchema = codec.Schema[models.TemplateConfig]{Kind: "template_config", Version: 1}

var tenantStateSchema = codec.Schema[models.TenantState]{Kind: "tenant_state", Version: 1}

var userSchema = codec.Schema[models.User]{Kind: "user", Version: 1}

var courseSchema = codec.Schema[models.Course]{Kind: "course", Version: 1}

var gradeSchema = codec.Schema[models.Grade]{Kind: "grade", Version: 1}

var quizSchema = codec.Schema[models.Quiz]{Kind: "quiz", Version: 1}

var preProvisionSchema = codec.Schema[models.PreProvisionedUser]{Kind: "preprovisioned_user", Version: 1}
