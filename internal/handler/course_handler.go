package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-platform/internal/service"
	"github.com/noah-isme/lms-platform/pkg/response"
)

// CourseHandler exposes course and quiz endpoints.
type CourseHandler struct {
	courses *service.CourseService
	quizzes *service.QuizService
}

// NewCourseHandler constructs handler.
func NewCourseHandler(courses *service.CourseService, quizzes *service.QuizService) *CourseHandler {
	return &CourseHandler{courses: courses, quizzes: quizzes}
}

type enrollRequest struct {
	StudentID string `json:"student_id" binding:"required"`
}

type instructorRequest struct {
	InstructorID string `json:"instructor_id" binding:"required"`
}

// Create godoc
// @Summary Create course
// @Tags Courses
// @Accept json
// @Produce json
// @Param payload body service.CreateCourseRequest true "Course payload"
// @Success 201 {object} response.Envelope
// @Router /courses [post]
func (h *CourseHandler) Create(c *gin.Context) {
	var req service.CreateCourseRequest
	if !bindJSON(c, &req) {
		return
	}
	course, err := h.courses.CreateCourse(c.Request.Context(), callerFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, course)
}

// List godoc
// @Summary List courses
// @Tags Courses
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /courses [get]
func (h *CourseHandler) List(c *gin.Context) {
	courses, err := h.courses.ListCourses(c.Request.Context(), callerFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, courses, len(courses))
}

// Get godoc
// @Summary Get course
// @Tags Courses
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id} [get]
func (h *CourseHandler) Get(c *gin.Context) {
	course, err := h.courses.GetCourse(c.Request.Context(), callerFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, course)
}

// Update godoc
// @Summary Update course
// @Tags Courses
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body service.UpdateCourseRequest true "Update payload"
// @Success 200 {object} response.Envelope
// @Router /courses/{id} [patch]
func (h *CourseHandler) Update(c *gin.Context) {
	var req service.UpdateCourseRequest
	if !bindJSON(c, &req) {
		return
	}
	course, err := h.courses.UpdateCourse(c.Request.Context(), callerFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, course)
}

// Enroll godoc
// @Summary Enroll a student
// @Tags Courses
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body enrollRequest true "Student"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/students [post]
func (h *CourseHandler) Enroll(c *gin.Context) {
	var req enrollRequest
	if !bindJSON(c, &req) {
		return
	}
	course, err := h.courses.EnrollStudent(c.Request.Context(), callerFromContext(c), c.Param("id"), req.StudentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, course)
}

// Instructors godoc
// @Summary List course instructors
// @Tags Courses
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/instructors [get]
func (h *CourseHandler) Instructors(c *gin.Context) {
	ids, err := h.courses.CourseInstructors(c.Request.Context(), callerFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, ids, len(ids))
}

// AddInstructor godoc
// @Summary Add an instructor
// @Tags Courses
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body instructorRequest true "Instructor"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/instructors [post]
func (h *CourseHandler) AddInstructor(c *gin.Context) {
	var req instructorRequest
	if !bindJSON(c, &req) {
		return
	}
	course, err := h.courses.AddInstructor(c.Request.Context(), callerFromContext(c), c.Param("id"), req.InstructorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, course)
}

// RemoveInstructor godoc
// @Summary Remove an instructor
// @Tags Courses
// @Produce json
// @Param id path string true "Course ID"
// @Param instructorId path string true "Instructor ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/instructors/{instructorId} [delete]
func (h *CourseHandler) RemoveInstructor(c *gin.Context) {
	course, err := h.courses.RemoveInstructor(c.Request.Context(), callerFromContext(c), c.Param("id"), c.Param("instructorId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, course)
}

// InstructorCourses godoc
// @Summary Courses taught by an instructor
// @Tags Courses
// @Produce json
// @Param id path string true "Instructor ID"
// @Success 200 {object} response.Envelope
// @Router /instructors/{id}/courses [get]
func (h *CourseHandler) InstructorCourses(c *gin.Context) {
	courses, err := h.courses.InstructorCourses(c.Request.Context(), callerFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, courses, len(courses))
}

// StudentCourses godoc
// @Summary Courses a student is enrolled in
// @Tags Courses
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/courses [get]
func (h *CourseHandler) StudentCourses(c *gin.Context) {
	courses, err := h.courses.StudentCourses(c.Request.Context(), callerFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, courses, len(courses))
}

// CreateQuiz godoc
// @Summary Create quiz
// @Tags Quizzes
// @Accept json
// @Produce json
// @Param payload body service.CreateQuizRequest true "Quiz payload"
// @Success 201 {object} response.Envelope
// @Router /quizzes [post]
func (h *CourseHandler) CreateQuiz(c *gin.Context) {
	var req service.CreateQuizRequest
	if !bindJSON(c, &req) {
		return
	}
	quiz, err := h.quizzes.CreateQuiz(c.Request.Context(), callerFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, quiz)
}

// GetQuiz godoc
// @Summary Get quiz
// @Tags Quizzes
// @Produce json
// @Param id path string true "Quiz ID"
// @Success 200 {object} response.Envelope
// @Router /quizzes/{id} [get]
func (h *CourseHandler) GetQuiz(c *gin.Context) {
	quiz, err := h.quizzes.GetQuiz(c.Request.Context(), callerFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, quiz)
}

// DeleteQuiz godoc
// @Summary Delete quiz
// @Tags Quizzes
// @Param id path string true "Quiz ID"
// @Success 204
// @Router /quizzes/{id} [delete]
func (h *CourseHandler) DeleteQuiz(c *gin.Context) {
	if err := h.quizzes.DeleteQuiz(c.Request.Context(), callerFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// CourseQuizzes godoc
// @Summary List quizzes of a course
// @Tags Quizzes
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/quizzes [get]
func (h *CourseHandler) CourseQuizzes(c *gin.Context) {
	quizzes, err := h.quizzes.ListCourseQuizzes(c.Request.Context(), callerFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, quizzes, len(quizzes))
}
