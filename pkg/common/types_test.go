package common

import "testing"

func TestAccessorsReadAbsentAsZero(t *testing.T) {
	r := QueryRecord{QueryName: "q.sql", EstimatedCost: Some(12.5)}
	if r.Joins() != 0 || r.Rows() != 0 || r.Runtime() != 0 {
		t.Errorf("absent columns should read as 0, got %v %v %v", r.Joins(), r.Rows(), r.Runtime())
	}
	if r.Cost() != 12.5 {
		t.Errorf("Cost: got %v", r.Cost())
	}
}

func TestSafeName(t *testing.T) {
	if got := SafeName(`a/b\c.sql`); got != "a_b_c.sql" {
		t.Errorf("SafeName: got %s", got)
	}
}
