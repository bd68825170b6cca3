package service

import (
	"fmt"
	"math"

	"github.com/noah-isme/lms-platform/internal/models"
	appErrors "github.com/noah-isme/lms-platform/pkg/errors"
)

// GradeWeights assigns each grade type its share of a weighted course average.
// Labs and homework count as assignments; extra credit is never weighted.
type GradeWeights struct {
	Quiz          float64 `json:"quiz_weight"`
	Assignment    float64 `json:"assignment_weight"`
	Participation float64 `json:"participation_weight"`
	Final         float64 `json:"final_weight"`
	Midterm       float64 `json:"midterm_weight"`
	Project       float64 `json:"project_weight"`
}

// DefaultGradeWeights returns the tenant-wide default weighting.
func DefaultGradeWeights() GradeWeights {
	return GradeWeights{
		Quiz:          0.20,
		Assignment:    0.30,
		Participation: 0.10,
		Final:         0.25,
		Midterm:       0.15,
		Project:       0,
	}
}

// Total sums every weight.
func (w GradeWeights) Total() float64 {
	return w.Quiz + w.Assignment + w.Participation + w.Final + w.Midterm + w.Project
}

// Validate requires the weights to sum to 1.0 within 0.01 and none to be negative.
func (w GradeWeights) Validate() error {
	for _, v := range []float64{w.Quiz, w.Assignment, w.Participation, w.Final, w.Midterm, w.Project} {
		if v < 0 {
			return appErrors.Clone(appErrors.ErrValidation, "grade weights must not be negative")
		}
	}
	if total := w.Total(); math.Abs(total-1.0) > 0.01 {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("Grade weights must sum to 1.0, got %.2f", total))
	}
	return nil
}

// WeightFor returns the weight applied to grades of type t.
func (w GradeWeights) WeightFor(t models.GradeType) float64 {
	switch t {
	case models.GradeQuiz:
		return w.Quiz
	case models.GradeAssignment, models.GradeLab, models.GradeHomework:
		return w.Assignment
	case models.GradeParticipation:
		return w.Participation
	case models.GradeFinal:
		return w.Final
	case models.GradeMidterm:
		return w.Midterm
	case models.GradeProject:
		return w.Project
	}
	return 0
}
