package fusion

import "testing"

func TestHungarianSolveSimpleAssignment(t *testing.T) {
	cost := [][]float64{
		{4, 1, 3},
		{2, 0, 5},
		{3, 2, 2},
	}
	assign := hungarianSolve(cost)
	if len(assign) != 3 {
		t.Fatalf("hungarianSolve() returned %d assignments, want 3", len(assign))
	}

	total := 0.0
	seen := map[int]bool{}
	for i, j := range assign {
		if j < 0 || j >= 3 {
			t.Fatalf("row %d assigned invalid column %d", i, j)
		}
		if seen[j] {
			t.Fatalf("column %d assigned to more than one row", j)
		}
		seen[j] = true
		total += cost[i][j]
	}
	// The optimal assignment here is (0,1)=1, (1,0)=2, (2,2)=2, total 5;
	// compare against the brute-force minimum over all permutations of 3 columns.
	best := bruteForceMinCost(cost)
	if total != best {
		t.Errorf("hungarianSolve() total cost = %v, want optimal %v", total, best)
	}
}

func TestHungarianSolveEmptyMatrix(t *testing.T) {
	if got := hungarianSolve(nil); got != nil {
		t.Errorf("hungarianSolve(nil) = %v, want nil", got)
	}
}

func TestHungarianSolveSingleCell(t *testing.T) {
	assign := hungarianSolve([][]float64{{7}})
	if len(assign) != 1 || assign[0] != 0 {
		t.Errorf("hungarianSolve(1x1) = %v, want [0]", assign)
	}
}

func bruteForceMinCost(cost [][]float64) float64 {
	n := len(cost)
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	best := 1e18
	var permute func(k int)
	permute = func(k int) {
		if k == n {
			total := 0.0
			for i, j := range perm {
				total += cost[i][j]
			}
			if total < best {
				best = total
			}
			return
		}
		for i := k; i < n; i++ {
			perm[k], perm[i] = perm[i], perm[k]
			permute(k + 1)
			perm[k], perm[i] = perm[i], perm[k]
		}
	}
	permute(0)
	return best
}
