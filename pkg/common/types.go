package common

import (
	"fmt"
	"strings"
)

// Category 查询规模分类，仅作展示用途，不参与建模
type Category string

const (
	CategorySmall  Category = "small"
	CategoryMedium Category = "medium"
	CategoryLarge  Category = "large"
)

// Categories lists the known categories in collection order.
var Categories = []Category{CategorySmall, CategoryMedium, CategoryLarge}

// Optional is a numeric column that may be absent in the input.
// Absent values read as 0 through Or0.
type Optional struct {
	Value float64
	Valid bool
}

// Some wraps a present value.
func Some(v float64) Optional {
	return Optional{Value: v, Valid: true}
}

// Or0 returns the value, or 0 when absent.
func (o Optional) Or0() float64 {
	if !o.Valid {
		return 0
	}
	return o.Value
}

// QueryRecord is one executed query as produced by the collector.
//
// JoinCount, EstimatedCost and EstimatedRows feed the models; ActualRuntimeMs is
// the ground truth. Missing numerics are substituted with 0 by the accessors.
type QueryRecord struct {
	QueryName        string
	Category         Category
	JoinCount        Optional
	EstimatedCost    Optional
	EstimatedRows    Optional
	ActualRuntimeMs  Optional
	ActualRows       Optional
	ExecutionTimeSec Optional
	PlanJSON         string
}

// Joins, Cost, Rows and Runtime read the model columns. An absent value
// reads as 0 so that every record yields a full feature vector.
func (r *QueryRecord) Joins() float64   { return r.JoinCount.Or0() }
func (r *QueryRecord) Cost() float64    { return r.EstimatedCost.Or0() }
func (r *QueryRecord) Rows() float64    { return r.EstimatedRows.Or0() }
func (r *QueryRecord) Runtime() float64 { return r.ActualRuntimeMs.Or0() }

// String 方便调试打印
func (r *QueryRecord) String() string {
	return fmt.Sprintf("QueryRecord{Name: %s, Joins: %.0f, Cost: %.2f, Rows: %.0f, Runtime: %.3fms}",
		r.QueryName, r.Joins(), r.Cost(), r.Rows(), r.Runtime())
}

// FeatureNames is the fixed feature ordering shared by training and inference.
var FeatureNames = [NumFeatures]string{"join_count", "estimated_cost", "estimated_rows"}

const NumFeatures = 3

// FeatureVector is (join_count, estimated_cost, estimated_rows).
type FeatureVector [NumFeatures]float64

func (fv FeatureVector) JoinCount() float64     { return fv[0] }
func (fv FeatureVector) EstimatedCost() float64 { return fv[1] }
func (fv FeatureVector) EstimatedRows() float64 { return fv[2] }

// CandidatePlan is a feature-level hypothesis about one query's plan.
// It does not correspond to executable SQL.
type CandidatePlan struct {
	Tag           string  `json:"tag"`
	JoinCount     int     `json:"join_count"`
	EstimatedCost float64 `json:"estimated_cost"`
	EstimatedRows float64 `json:"estimated_rows"`
}

// Well-known candidate tags produced by the synthesizer.
const (
	TagBaseline  = "baseline"
	TagCheap     = "cheap_variant"
	TagExpensive = "expensive_variant"
)

// SafeName turns a query name into a single path element by replacing path
// separators with underscores.
func SafeName(name string) string {
	return strings.NewReplacer("/", "_", `\`, "_").Replace(name)
}
