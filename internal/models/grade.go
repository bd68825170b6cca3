package models

import "time"

// GradeType classifies a grade for weighting.
type GradeType string

const (
	GradeQuiz          GradeType = "QUIZ"
	GradeAssignment    GradeType = "ASSIGNMENT"
	GradeParticipation GradeType = "PARTICIPATION"
	GradeFinal         GradeType = "FINAL"
	GradeMidterm       GradeType = "MIDTERM"
	GradeProject       GradeType = "PROJECT"
	GradeLab           GradeType = "LAB"
	GradeHomework      GradeType = "HOMEWORK"
	GradeExtraCredit   GradeType = "EXTRA_CREDIT"
)

// GradeTypes lists every grade type in display order.
func GradeTypes() []GradeType {
	return []GradeType{
		GradeQuiz, GradeAssignment, GradeParticipation, GradeFinal, GradeMidterm,
		GradeProject, GradeLab, GradeHomework, GradeExtraCredit,
	}
}

// Valid reports whether t is a known grade type.
func (t GradeType) Valid() bool {
	for _, known := range GradeTypes() {
		if t == known {
			return true
		}
	}
	return false
}

// Grade is a single score for a student in a course.
type Grade struct {
	ID        string    `json:"id"`
	StudentID string    `json:"student_id"`
	QuizID    *string   `json:"quiz_id,omitempty"`
	LessonID  *string   `json:"lesson_id,omitempty"`
	CourseID  string    `json:"course_id"`
	Score     float64   `json:"score"`
	MaxScore  float64   `json:"max_score"`
	GradeType GradeType `json:"grade_type"`
	Feedback  *string   `json:"feedback,omitempty"`
	GradedBy  string    `json:"graded_by"`
	GradedAt  time.Time `json:"graded_at"`
}

// Percentage returns score as a percentage of max score.
func (g *Grade) Percentage() float64 {
	if g.MaxScore <= 0 {
		return 0
	}
	return g.Score / g.MaxScore * 100
}

// GradeFilter narrows a student's grade listing.
type GradeFilter struct {
	CourseID     string
	GradeType    GradeType
	IncludeDraft bool
}

// GradeStatistics summarises percentages across a set of grades.
type GradeStatistics struct {
	Count             int     `json:"count"`
	Mean              float64 `json:"mean"`
	Median            float64 `json:"median"`
	StandardDeviation float64 `json:"standard_deviation"`
	Min               float64 `json:"min"`
	Max               float64 `json:"max"`
}

// CourseGradeReport is the cached grade book of a course.
type CourseGradeReport struct {
	CourseID           string          `json:"course_id"`
	TotalGrades        int             `json:"total_grades"`
	Grades             []Grade         `json:"grades"`
	Statistics         GradeStatistics `json:"statistics"`
	LetterDistribution map[string]int  `json:"letter_distribution"`
	GeneratedAt        time.Time       `json:"generated_at"`
}

// CourseAverage is the unweighted mean of a student's grades in a course.
type CourseAverage struct {
	StudentID   string  `json:"student_id"`
	CourseID    string  `json:"course_id"`
	Average     float64 `json:"average"`
	LetterGrade string  `json:"letter_grade"`
	GradeCount  int     `json:"grade_count"`
}

// GradeTypeBreakdown is one grade type's share of a weighted average.
type GradeTypeBreakdown struct {
	Average     float64 `json:"average"`
	Weight      float64 `json:"weight"`
	Count       int     `json:"count"`
	LetterGrade string  `json:"letter_grade"`
}

// WeightedGradeResult is a student's weighted course average.
type WeightedGradeResult struct {
	StudentID       string                           `json:"student_id"`
	CourseID        string                           `json:"course_id"`
	FinalAverage    float64                          `json:"final_average"`
	LetterGrade     string                           `json:"letter_grade"`
	Breakdown       map[GradeType]GradeTypeBreakdown `json:"grade_breakdown"`
	TotalWeightUsed float64                          `json:"total_weight_used"`
}

// BulkGradeEntry is one row of a bulk grade import.
type BulkGradeEntry struct {
	StudentID string    `json:"student_id" validate:"required"`
	CourseID  string    `json:"course_id" validate:"required"`
	Score     float64   `json:"score"`
	MaxScore  float64   `json:"max_score"`
	GradeType GradeType `json:"grade_type" validate:"required"`
	Feedback  *string   `json:"feedback,omitempty"`
}

// BulkImportError reports a failed row by its index in the input.
type BulkImportError struct {
	RowIndex int    `json:"row_index"`
	Error    string `json:"error"`
}

// BulkImportResult summarises a bulk grade import.
type BulkImportResult struct {
	SuccessCount int               `json:"success_count"`
	ErrorCount   int               `json:"error_count"`
	Errors       []BulkImportError `json:"errors"`
}
