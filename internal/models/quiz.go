package models

import "time"

// QuestionType enumerates supported quiz question formats.
type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "MULTIPLE_CHOICE"
	QuestionTrueFalse      QuestionType = "TRUE_FALSE"
	QuestionShortAnswer    QuestionType = "SHORT_ANSWER"
	QuestionEssay          QuestionType = "ESSAY"
)

// Question is a single quiz item.
type Question struct {
	ID     string       `json:"id"`
	Text   string       `json:"text"`
	Type   QuestionType `json:"type"`
	Points uint32       `json:"points"`
}

// Quiz belongs to a course and optionally to one of its lessons.
type Quiz struct {
	ID               string     `json:"id"`
	CourseID         string     `json:"course_id"`
	LessonID         *string    `json:"lesson_id,omitempty"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	Questions        []Question `json:"questions"`
	TimeLimitMinutes *uint32    `json:"time_limit_minutes,omitempty"`
	MaxAttempts      uint32     `json:"max_attempts"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// TotalPoints sums the points of every question.
func (q *Quiz) TotalPoints() uint32 {
	var total uint32
	for _, question := range q.Questions {
		total += question.Points
	}
	return total
}
