package dataset

import (
	"fmt"
	"math"
	"math/rand/v2"

	"neurocost/pkg/common"
)

// Split shuffles indices 0..n-1 with a seeded generator and cuts off
// ceil(n*testFraction) of them as the test partition.
// The same (n, testFraction, seed) always yields the same partitions.
func Split(n int, testFraction float64, seed uint64) (train, test []int, err error) {
	if testFraction <= 0 || testFraction >= 1 {
		return nil, nil, fmt.Errorf("test fraction %v out of range (0,1)", testFraction)
	}
	nTest := int(math.Ceil(testFraction * float64(n)))
	nTrain := n - nTest
	if nTest < 1 || nTrain < 1 {
		return nil, nil, fmt.Errorf("%w: %d rows cannot be split with test fraction %v", ErrInsufficientData, n, testFraction)
	}

	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	perm := rng.Perm(n)
	return perm[nTest:], perm[:nTest], nil
}

// SplitRecords applies Split to records and returns the two partitions.
func SplitRecords(records []common.QueryRecord, testFraction float64, seed uint64) (train, test []common.QueryRecord, err error) {
	trainIdx, testIdx, err := Split(len(records), testFraction, seed)
	if err != nil {
		return nil, nil, err
	}
	return Select(records, trainIdx), Select(records, testIdx), nil
}

// Select returns records at the given indices, in index order.
func Select(records []common.QueryRecord, idx []int) []common.QueryRecord {
	out := make([]common.QueryRecord, len(idx))
	for i, j := range idx {
		out[i] = records[j]
	}
	return out
}
