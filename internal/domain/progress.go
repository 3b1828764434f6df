package domain

import "math"

// Accuracy is the rounded percentage of questions answered right on the first try.
func Accuracy(questions, errorCount int) int {
	if questions <= 0 {
		return 0
	}
	correct := questions - errorCount
	if correct < 0 {
		correct = 0
	}
	return int(math.Round(float64(correct) / float64(questions) * 100))
}

// StarsForAccuracy maps an accuracy percentage to a 1..5 star level.
func StarsForAccuracy(accuracy int) int {
	switch {
	case accuracy >= 100:
		return 5
	case accuracy >= 95:
		return 4
	case accuracy >= 85:
		return 3
	case accuracy >= 70:
		return 2
	default:
		return 1
	}
}
