// Package features maps query metrics to the fixed feature vector consumed by
// every learned model.
package features

import "neurocost/pkg/common"

// ExtractOne builds the feature vector of a single record. Absent numerics become 0.
func ExtractOne(r *common.QueryRecord) common.FeatureVector {
	return common.FeatureVector{r.Joins(), r.Cost(), r.Rows()}
}

// Extract returns one vector per record, in input order.
func Extract(records []common.QueryRecord) []common.FeatureVector {
	out := make([]common.FeatureVector, len(records))
	for i := range records {
		out[i] = ExtractOne(&records[i])
	}
	return out
}

// FromCandidate projects a candidate plan onto the same three features.
func FromCandidate(c common.CandidatePlan) common.FeatureVector {
	return common.FeatureVector{float64(c.JoinCount), c.EstimatedCost, c.EstimatedRows}
}

// Targets returns actual_runtime_ms per record (absent → 0).
func Targets(records []common.QueryRecord) []float64 {
	out := make([]float64, len(records))
	for i := range records {
		out[i] = records[i].Runtime()
	}
	return out
}
