package model

import "math"

// MAE is the mean absolute error; NaN for empty input.
func MAE(actual, pred []float64) float64 {
	if len(actual) == 0 || len(actual) != len(pred) {
		return math.NaN()
	}
	sum := 0.0
	for i := range actual {
		sum += math.Abs(pred[i] - actual[i])
	}
	return sum / float64(len(actual))
}

// RMSE is the root mean squared error; NaN for empty input.
func RMSE(actual, pred []float64) float64 {
	if len(actual) == 0 || len(actual) != len(pred) {
		return math.NaN()
	}
	sum := 0.0
	for i := range actual {
		d := pred[i] - actual[i]
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(actual)))
}
