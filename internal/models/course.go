package models

import "time"

// Course is owned by its instructors. InstructorIDs is never empty.
type Course struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	InstructorIDs    []string  `json:"instructor_ids"`
	TenantID         string    `json:"tenant_id"`
	Lessons          []string  `json:"lessons"`
	EnrolledStudents []string  `json:"enrolled_students"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
	IsPublished      bool      `json:"is_published"`
}

// HasInstructor reports whether userID teaches the course.
func (c *Course) HasInstructor(userID string) bool {
	return contains(c.InstructorIDs, userID)
}

// HasStudent reports whether userID is enrolled.
func (c *Course) HasStudent(userID string) bool {
	return contains(c.EnrolledStudents, userID)
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
