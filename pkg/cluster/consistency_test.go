package cluster

import "testing"

// TestRequiredActiveShards pins down the quorum math spec.md §8 property 8
// requires: for replica-set sizes 1..5, the required-active count for
// ALL/QUORUM/ONE is {s, 1 for s<=2 else floor(s/2)+1, 1} respectively.
func TestRequiredActiveShards(t *testing.T) {
	cases := []struct {
		size          int
		level         ConsistencyLevel
		wantRequired  int
	}{
		{1, ConsistencyAll, 1},
		{2, ConsistencyAll, 2},
		{3, ConsistencyAll, 3},
		{4, ConsistencyAll, 4},
		{5, ConsistencyAll, 5},

		{1, ConsistencyQuorum, 1},
		{2, ConsistencyQuorum, 1},
		{3, ConsistencyQuorum, 2},
		{4, ConsistencyQuorum, 3},
		{5, ConsistencyQuorum, 3},

		{1, ConsistencyOne, 1},
		{2, ConsistencyOne, 1},
		{3, ConsistencyOne, 1},
		{4, ConsistencyOne, 1},
		{5, ConsistencyOne, 1},

		{3, ConsistencyDefault, 1},
	}

	for _, tc := range cases {
		got := RequiredActiveShards(tc.level, tc.size)
		if got != tc.wantRequired {
			t.Errorf("RequiredActiveShards(level=%v, size=%d) = %d, want %d", tc.level, tc.size, got, tc.wantRequired)
		}
	}
}
