package model

import (
	"errors"

	"neurocost/pkg/common"
)

var (
	ErrEmptyTrainingSet = errors.New("model: empty training set")
	ErrLengthMismatch   = errors.New("model: features and targets differ in length")
)

// Regressor predicts a continuous target from a feature vector.
type Regressor interface {
	Fit(x []common.FeatureVector, y []float64) error
	Predict(x common.FeatureVector) float64
}

// Classifier predicts a binary label (0 or 1).
type Classifier interface {
	Fit(x []common.FeatureVector, labels []int) error
	Predict(x common.FeatureVector) int
}

func checkShape(n, m int) error {
	if n == 0 {
		return ErrEmptyTrainingSet
	}
	if n != m {
		return ErrLengthMismatch
	}
	return nil
}

var (
	_ Regressor  = (*RegressionTree)(nil)
	_ Regressor  = (*Forest)(nil)
	_ Classifier = (*DecisionTreeClassifier)(nil)
)
