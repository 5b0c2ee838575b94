package features

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"neurocost/pkg/common"
)

func TestExtractSubstitutesZeroForMissing(t *testing.T) {
	records := []common.QueryRecord{
		{QueryName: "q1.sql", EstimatedCost: common.Some(12.5), EstimatedRows: common.Some(40)},
		{QueryName: "q2.sql", JoinCount: common.Some(3)},
		{QueryName: "q3.sql"},
	}

	got := Extract(records)

	assert.Equal(t, []common.FeatureVector{
		{0, 12.5, 40},
		{3, 0, 0},
		{0, 0, 0},
	}, got)
}

func TestExtractOneMissingJoinCount(t *testing.T) {
	r := common.QueryRecord{EstimatedCost: common.Some(7), EstimatedRows: common.Some(2)}
	fv := ExtractOne(&r)
	assert.Equal(t, 0.0, fv.JoinCount())
	assert.Equal(t, 7.0, fv.EstimatedCost())
	assert.Equal(t, 2.0, fv.EstimatedRows())
}

func TestExtractPreservesOrderAndLength(t *testing.T) {
	records := make([]common.QueryRecord, 5)
	for i := range records {
		records[i].JoinCount = common.Some(float64(i))
	}
	got := Extract(records)
	assert.Len(t, got, 5)
	for i, fv := range got {
		assert.Equal(t, float64(i), fv.JoinCount())
	}
	assert.Empty(t, Extract(nil))
}

func TestFromCandidateMatchesRecordFeatures(t *testing.T) {
	c := common.CandidatePlan{Tag: "x", JoinCount: 2, EstimatedCost: 10, EstimatedRows: 5}
	r := common.QueryRecord{JoinCount: common.Some(2), EstimatedCost: common.Some(10), EstimatedRows: common.Some(5)}
	assert.Equal(t, ExtractOne(&r), FromCandidate(c))
}

func TestTargets(t *testing.T) {
	records := []common.QueryRecord{{ActualRuntimeMs: common.Some(3.5)}, {}}
	assert.Equal(t, []float64{3.5, 0}, Targets(records))
}
