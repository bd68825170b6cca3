package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-platform/internal/models"
	"github.com/noah-isme/lms-platform/internal/service"
	"github.com/noah-isme/lms-platform/pkg/response"
)

// CodeDelivery hands a freshly issued verification code to the user out of band.
type CodeDelivery interface {
	Deliver(ctx context.Context, ticket *models.VerificationTicket) error
}

// LogCodeDelivery writes codes to the service log. Development only.
type LogCodeDelivery struct {
	logger *zap.Logger
}

// NewLogCodeDelivery constructs a LogCodeDelivery.
func NewLogCodeDelivery(logger *zap.Logger) *LogCodeDelivery {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogCodeDelivery{logger: logger}
}

// Deliver logs the code.
func (d *LogCodeDelivery) Deliver(_ context.Context, ticket *models.VerificationTicket) error {
	d.logger.Info("verification code issued",
		zap.String("university_id", ticket.UniversityID),
		zap.String("email", ticket.Email),
		zap.String("code", ticket.Code),
		zap.Time("expires_at", ticket.ExpiresAt),
	)
	return nil
}

// PreProvisionHandler exposes roster import and account linking endpoints.
type PreProvisionHandler struct {
	records  *service.PreProvisionService
	delivery CodeDelivery
}

// NewPreProvisionHandler constructs handler.
func NewPreProvisionHandler(records *service.PreProvisionService, delivery CodeDelivery) *PreProvisionHandler {
	if delivery == nil {
		delivery = NewLogCodeDelivery(nil)
	}
	return &PreProvisionHandler{records: records, delivery: delivery}
}

type importRecordsRequest struct {
	Records []models.UniversityImportRecord `json:"records" binding:"required"`
}

type universityEmailRequest struct {
	UniversityID string `json:"university_id" binding:"required"`
	Email        string `json:"email" binding:"required"`
}

// Import godoc
// @Summary Import a university roster
// @Tags PreProvision
// @Accept json
// @Produce json
// @Param payload body importRecordsRequest true "Roster"
// @Success 200 {object} response.Envelope
// @Router /preprovision/import [post]
func (h *PreProvisionHandler) Import(c *gin.Context) {
	var req importRecordsRequest
	if !bindJSON(c, &req) {
		return
	}
	stats, err := h.records.ImportRecords(c.Request.Context(), callerFromContext(c), req.Records)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, stats)
}

// Create godoc
// @Summary Import a single roster record
// @Tags PreProvision
// @Accept json
// @Produce json
// @Param payload body models.UniversityImportRecord true "Record"
// @Success 201 {object} response.Envelope
// @Router /preprovision/records [post]
func (h *PreProvisionHandler) Create(c *gin.Context) {
	var req models.UniversityImportRecord
	if !bindJSON(c, &req) {
		return
	}
	record, err := h.records.ImportSingleRecord(c.Request.Context(), callerFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, record)
}

// List godoc
// @Summary List pre-provisioned records
// @Tags PreProvision
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /preprovision/records [get]
func (h *PreProvisionHandler) List(c *gin.Context) {
	records, err := h.records.ListPreProvisioned(c.Request.Context(), callerFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, records, len(records))
}

// Get godoc
// @Summary Get a pre-provisioned record
// @Tags PreProvision
// @Produce json
// @Param universityId path string true "University ID"
// @Success 200 {object} response.Envelope
// @Router /preprovision/records/{universityId} [get]
func (h *PreProvisionHandler) Get(c *gin.Context) {
	record, err := h.records.GetPreProvisioned(c.Request.Context(), callerFromContext(c), c.Param("universityId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, record)
}

// Delete godoc
// @Summary Delete a pre-provisioned record
// @Tags PreProvision
// @Produce json
// @Param universityId path string true "University ID"
// @Success 200 {object} response.Envelope
// @Router /preprovision/records/{universityId} [delete]
func (h *PreProvisionHandler) Delete(c *gin.Context) {
	msg, err := h.records.DeletePreProvisioned(c.Request.Context(), callerFromContext(c), c.Param("universityId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"message": msg})
}

// Statistics godoc
// @Summary Roster import statistics
// @Tags PreProvision
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /preprovision/stats [get]
func (h *PreProvisionHandler) Statistics(c *gin.Context) {
	stats, err := h.records.ImportStatistics(c.Request.Context(), callerFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, stats)
}

// RequestVerification godoc
// @Summary Send a verification code
// @Description The code goes to the delivery channel; the response only carries its expiry.
// @Tags PreProvision
// @Accept json
// @Produce json
// @Param payload body universityEmailRequest true "University ID and email"
// @Success 202 {object} response.Envelope
// @Router /preprovision/verification [post]
func (h *PreProvisionHandler) RequestVerification(c *gin.Context) {
	var req universityEmailRequest
	if !bindJSON(c, &req) {
		return
	}
	ticket, err := h.records.RequestVerification(c.Request.Context(), req.UniversityID, req.Email)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.delivery.Deliver(c.Request.Context(), ticket); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, gin.H{"university_id": ticket.UniversityID, "expires_at": ticket.ExpiresAt})
}

// Verify godoc
// @Summary Verify an email with its code
// @Tags PreProvision
// @Accept json
// @Produce json
// @Param payload body service.VerifyEmailRequest true "Verification"
// @Success 200 {object} response.Envelope
// @Router /preprovision/verify [post]
func (h *PreProvisionHandler) Verify(c *gin.Context) {
	var req service.VerifyEmailRequest
	if !bindJSON(c, &req) {
		return
	}
	record, err := h.records.VerifyEmail(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"university_id": record.UniversityID, "status": record.Status, "is_verified": record.IsVerified})
}

// Link godoc
// @Summary Link the caller's identity to a verified record
// @Tags PreProvision
// @Accept json
// @Produce json
// @Param payload body universityEmailRequest true "University ID and email"
// @Success 201 {object} response.Envelope
// @Router /preprovision/link [post]
func (h *PreProvisionHandler) Link(c *gin.Context) {
	var req universityEmailRequest
	if !bindJSON(c, &req) {
		return
	}
	user, err := h.records.LinkIdentity(c.Request.Context(), callerFromContext(c), req.UniversityID, req.Email)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, user)
}

// Check godoc
// @Summary Public status of a university ID
// @Tags PreProvision
// @Produce json
// @Param universityId path string true "University ID"
// @Success 200 {object} response.Envelope
// @Router /preprovision/check/{universityId} [get]
func (h *PreProvisionHandler) Check(c *gin.Context) {
	status, err := h.records.CheckUniversityID(c.Request.Context(), c.Param("universityId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, status)
}

// LinkingStatus godoc
// @Summary Linking progress of a university ID
// @Tags PreProvision
// @Produce json
// @Param universityId path string true "University ID"
// @Success 200 {object} response.Envelope
// @Router /preprovision/status/{universityId} [get]
func (h *PreProvisionHandler) LinkingStatus(c *gin.Context) {
	status, err := h.records.GetLinkingStatus(c.Request.Context(), c.Param("universityId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, status)
}
