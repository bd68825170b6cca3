package service

import (
	"math"
	"sort"

	"github.com/noah-isme/lms-platform/internal/models"
)

var letterThresholds = []struct {
	min    float64
	letter string
}{
	{97, "A+"}, {93, "A"}, {90, "A-"},
	{87, "B+"}, {83, "B"}, {80, "B-"},
	{77, "C+"}, {73, "C"}, {70, "C-"},
	{67, "D+"}, {63, "D"}, {60, "D-"},
}

// CalculateLetterGrade maps a percentage onto the letter scale.
func CalculateLetterGrade(percentage float64) string {
	for _, t := range letterThresholds {
		if percentage >= t.min {
			return t.letter
		}
	}
	return "F"
}

// CalculateGradeStatistics summarises the percentages of grades. The
// standard deviation is the population deviation. Empty input yields zeros.
func CalculateGradeStatistics(grades []models.Grade) models.GradeStatistics {
	if len(grades) == 0 {
		return models.GradeStatistics{}
	}

	percentages := make([]float64, len(grades))
	var sum float64
	for i := range grades {
		percentages[i] = grades[i].Percentage()
		sum += percentages[i]
	}
	n := float64(len(percentages))
	mean := sum / n

	var variance float64
	for _, p := range percentages {
		variance += (p - mean) * (p - mean)
	}
	variance /= n

	sort.Float64s(percentages)
	mid := len(percentages) / 2
	median := percentages[mid]
	if len(percentages)%2 == 0 {
		median = (percentages[mid-1] + percentages[mid]) / 2
	}

	return models.GradeStatistics{
		Count:             len(grades),
		Mean:              mean,
		Median:            median,
		StandardDeviation: math.Sqrt(variance),
		Min:               percentages[0],
		Max:               percentages[len(percentages)-1],
	}
}

// LetterGradeDistribution counts grades per letter.
func LetterGradeDistribution(grades []models.Grade) map[string]int {
	distribution := make(map[string]int)
	for i := range grades {
		distribution[CalculateLetterGrade(grades[i].Percentage())]++
	}
	return distribution
}

// CourseAverageOf is the simple mean of the percentages, false when there are no grades.
func CourseAverageOf(grades []models.Grade) (float64, bool) {
	if len(grades) == 0 {
		return 0, false
	}
	var total float64
	for i := range grades {
		total += grades[i].Percentage()
	}
	return total / float64(len(grades)), true
}

// WeightedAverageOf groups grades by type and averages the per-type means by
// weight. The result is divided by the sum of the weights of the types that
// actually have grades; types weighted zero are left out of the breakdown.
func WeightedAverageOf(grades []models.Grade, weights GradeWeights) (float64, float64, map[models.GradeType]models.GradeTypeBreakdown) {
	groups := make(map[models.GradeType][]models.Grade)
	for _, g := range grades {
		groups[g.GradeType] = append(groups[g.GradeType], g)
	}

	breakdown := make(map[models.GradeType]models.GradeTypeBreakdown)
	var weightedTotal, totalWeight float64
	for gradeType, group := range groups {
		weight := weights.WeightFor(gradeType)
		if weight <= 0 {
			continue
		}
		average, _ := CourseAverageOf(group)
		weightedTotal += average * weight
		totalWeight += weight
		breakdown[gradeType] = models.GradeTypeBreakdown{
			Average:     average,
			Weight:      weight,
			Count:       len(group),
			LetterGrade: CalculateLetterGrade(average),
		}
	}

	if totalWeight == 0 {
		return 0, 0, breakdown
	}
	return weightedTotal / totalWeight, totalWeight, breakdown
}
