package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-platform/internal/models"
	"github.com/noah-isme/lms-platform/internal/service"
	"github.com/noah-isme/lms-platform/pkg/response"
)

// GradeHandler exposes grade endpoints.
type GradeHandler struct {
	grades  *service.GradeService
	exports *service.ExportService
}

// NewGradeHandler constructs handler.
func NewGradeHandler(grades *service.GradeService, exports *service.ExportService) *GradeHandler {
	return &GradeHandler{grades: grades, exports: exports}
}

type bulkGradesRequest struct {
	Grades []models.BulkGradeEntry `json:"grades" binding:"required"`
}

// Record godoc
// @Summary Record a grade
// @Tags Grades
// @Accept json
// @Produce json
// @Param payload body service.RecordGradeRequest true "Grade payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /grades [post]
func (h *GradeHandler) Record(c *gin.Context) {
	var req service.RecordGradeRequest
	if !bindJSON(c, &req) {
		return
	}
	grade, err := h.grades.RecordGrade(c.Request.Context(), callerFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, grade)
}

// RecordQuiz godoc
// @Summary Record a quiz grade
// @Tags Grades
// @Accept json
// @Produce json
// @Param payload body service.RecordQuizGradeRequest true "Quiz grade payload"
// @Success 201 {object} response.Envelope
// @Router /grades/quiz [post]
func (h *GradeHandler) RecordQuiz(c *gin.Context) {
	var req service.RecordQuizGradeRequest
	if !bindJSON(c, &req) {
		return
	}
	grade, err := h.grades.RecordQuizGrade(c.Request.Context(), callerFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, grade)
}

// Bulk godoc
// @Summary Bulk import grades
// @Description Validates every row first; nothing is stored when any row fails.
// @Tags Grades
// @Accept json
// @Produce json
// @Param payload body bulkGradesRequest true "Bulk payload"
// @Success 200 {object} response.Envelope
// @Router /grades/bulk [post]
func (h *GradeHandler) Bulk(c *gin.Context) {
	var req bulkGradesRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.grades.BulkImportGrades(c.Request.Context(), callerFromContext(c), req.Grades)
	if err != nil {
		response.Error(c, err)
		return
	}
	status := http.StatusOK
	if result.SuccessCount == 0 && result.ErrorCount > 0 {
		status = http.StatusUnprocessableEntity
	}
	response.JSON(c, status, result)
}

// Get godoc
// @Summary Get grade
// @Tags Grades
// @Produce json
// @Param id path string true "Grade ID"
// @Success 200 {object} response.Envelope
// @Router /grades/{id} [get]
func (h *GradeHandler) Get(c *gin.Context) {
	grade, err := h.grades.GetGrade(c.Request.Context(), callerFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, grade)
}

// Update godoc
// @Summary Update grade
// @Tags Grades
// @Accept json
// @Produce json
// @Param id path string true "Grade ID"
// @Param payload body service.UpdateGradeRequest true "Update payload"
// @Success 200 {object} response.Envelope
// @Router /grades/{id} [patch]
func (h *GradeHandler) Update(c *gin.Context) {
	var req service.UpdateGradeRequest
	if !bindJSON(c, &req) {
		return
	}
	grade, err := h.grades.UpdateGrade(c.Request.Context(), callerFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, grade)
}

// Delete godoc
// @Summary Delete grade
// @Tags Grades
// @Param id path string true "Grade ID"
// @Param reason query string true "Reason for deletion"
// @Success 204
// @Router /grades/{id} [delete]
func (h *GradeHandler) Delete(c *gin.Context) {
	if err := h.grades.DeleteGrade(c.Request.Context(), callerFromContext(c), c.Param("id"), c.Query("reason")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// StudentGrades godoc
// @Summary List a student's grades
// @Tags Grades
// @Produce json
// @Param id path string true "Student ID"
// @Param course_id query string false "Filter by course"
// @Param grade_type query string false "Filter by grade type"
// @Param include_draft query bool false "Include zero-score drafts"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/grades [get]
func (h *GradeHandler) StudentGrades(c *gin.Context) {
	includeDraft, err := queryBool(c, "include_draft")
	if err != nil {
		response.Error(c, err)
		return
	}
	filter := models.GradeFilter{
		CourseID:     c.Query("course_id"),
		GradeType:    models.GradeType(c.Query("grade_type")),
		IncludeDraft: includeDraft,
	}
	grades, err := h.grades.GetStudentGrades(c.Request.Context(), callerFromContext(c), c.Param("id"), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, grades, len(grades))
}

// CourseGrades godoc
// @Summary List a course's grades
// @Tags Grades
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/grades [get]
func (h *GradeHandler) CourseGrades(c *gin.Context) {
	grades, err := h.grades.GetCourseGrades(c.Request.Context(), callerFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, grades, len(grades))
}

// CourseReport godoc
// @Summary Course grades with statistics
// @Tags Grades
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/grades/stats [get]
func (h *GradeHandler) CourseReport(c *gin.Context) {
	report, err := h.grades.GetCourseGradesWithStats(c.Request.Context(), callerFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, report)
}

// Export godoc
// @Summary Download the course grade report
// @Tags Grades
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Course ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Router /courses/{id}/grades/export [get]
func (h *GradeHandler) Export(c *gin.Context) {
	file, err := h.exports.ExportCourseGrades(c.Request.Context(), callerFromContext(c), c.Param("id"), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+file.Filename+`"`)
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, file.ContentType, file.Data)
}

// Average godoc
// @Summary Simple course average for a student
// @Tags Grades
// @Produce json
// @Param id path string true "Student ID"
// @Param courseId path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/courses/{courseId}/average [get]
func (h *GradeHandler) Average(c *gin.Context) {
	avg, err := h.grades.CalculateCourseAverage(c.Request.Context(), callerFromContext(c), c.Param("id"), c.Param("courseId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, avg)
}

// WeightedAverage godoc
// @Summary Weighted course average for a student
// @Description GET uses the default weights; POST accepts custom weights that must sum to 1.
// @Tags Grades
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param courseId path string true "Course ID"
// @Param payload body service.GradeWeights false "Custom weights"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/courses/{courseId}/average/weighted [get]
// @Router /students/{id}/courses/{courseId}/average/weighted [post]
func (h *GradeHandler) WeightedAverage(c *gin.Context) {
	var weights *service.GradeWeights
	if c.Request.Method == http.MethodPost {
		weights = &service.GradeWeights{}
		if !bindJSON(c, weights) {
			return
		}
	}
	result, err := h.grades.CalculateWeightedCourseAverage(c.Request.Context(), callerFromContext(c), c.Param("id"), c.Param("courseId"), weights)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}
