package service

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/lms-platform/internal/models"
)

type auditWriter interface {
	Create(ctx context.Context, log *models.AuditLog) error
}

// AuditEntry describes one auditable event.
type AuditEntry struct {
	Caller     string
	Action     string
	Resource   string
	ResourceID string
	Success    bool
	OldValues  any
	NewValues  any
	IPAddress  string
	UserAgent  string
}

// AuditService fans audit entries out to the structured log and, when a sink
// is configured, the audit_logs table. Recording never fails the caller.
type AuditService struct {
	sink     auditWriter
	logger   *zap.Logger
	tenantID string
}

// NewAuditService constructs an AuditService. sink may be nil.
func NewAuditService(sink auditWriter, logger *zap.Logger, tenantID string) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{sink: sink, logger: logger.Named("audit"), tenantID: tenantID}
}

// Record logs the entry and persists it best effort.
func (s *AuditService) Record(ctx context.Context, entry AuditEntry) {
	if s == nil {
		return
	}
	fields := []zap.Field{
		zap.String("action", entry.Action),
		zap.String("caller", entry.Caller),
		zap.String("resource", entry.Resource),
		zap.Bool("success", entry.Success),
	}
	if entry.ResourceID != "" {
		fields = append(fields, zap.String("target", entry.ResourceID))
	}
	if entry.Success {
		s.logger.Info("audit", fields...)
	} else {
		s.logger.Warn("audit", fields...)
	}

	if s.sink == nil {
		return
	}
	log := &models.AuditLog{
		TenantID:  s.tenantID,
		Action:    entry.Action,
		Resource:  entry.Resource,
		Success:   entry.Success,
		OldValues: marshalAuditValues(entry.OldValues),
		NewValues: marshalAuditValues(entry.NewValues),
		IPAddress: entry.IPAddress,
		UserAgent: entry.UserAgent,
		CreatedAt: time.Now().UTC(),
	}
	if entry.Caller != "" {
		caller := entry.Caller
		log.UserID = &caller
	}
	if entry.ResourceID != "" {
		target := entry.ResourceID
		log.ResourceID = &target
	}
	if err := s.sink.Create(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.String("action", entry.Action), zap.Error(err))
	}
}

func marshalAuditValues(v any) []byte {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return raw
}
