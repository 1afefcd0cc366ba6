package fusion

import "math"

// hungarianSolve finds a minimum-cost perfect assignment over a square
// cost matrix using the Munkres method with star/prime markings (any
// O(n^3) exact algorithm would do). Returns assignment[i] = column
// assigned to row i.
func hungarianSolve(cost [][]float64) []int {
	n := len(cost)
	if n == 0 {
		return nil
	}

	a := make([][]float64, n)
	for i := range a {
		a[i] = append([]float64(nil), cost[i]...)
	}

	starred := make([][]bool, n)
	primed := make([][]bool, n)
	for i := range starred {
		starred[i] = make([]bool, n)
		primed[i] = make([]bool, n)
	}
	rowCover := make([]bool, n)
	colCover := make([]bool, n)

	// Step 1: subtract row minima.
	for i := 0; i < n; i++ {
		min := a[i][0]
		for j := 1; j < n; j++ {
			if a[i][j] < min {
				min = a[i][j]
			}
		}
		for j := 0; j < n; j++ {
			a[i][j] -= min
		}
	}
	// Subtract column minima too, so the initial star pass finds a
	// near-complete matching quickly (a standard refinement of step 1).
	for j := 0; j < n; j++ {
		min := a[0][j]
		for i := 1; i < n; i++ {
			if a[i][j] < min {
				min = a[i][j]
			}
		}
		for i := 0; i < n; i++ {
			a[i][j] -= min
		}
	}

	// Step 2: star one zero per row/column.
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if a[i][j] == 0 && !rowCover[i] && !colCover[j] {
				starred[i][j] = true
				rowCover[i] = true
				colCover[j] = true
			}
		}
	}
	resetCovers(rowCover, colCover)

	for {
		// Step 3: cover every column containing a starred zero. If all
		// columns are covered, the starring is a complete assignment.
		coveredCols := 0
		for j := 0; j < n; j++ {
			colCover[j] = findStarInCol(starred, j) != -1
			if colCover[j] {
				coveredCols++
			}
		}
		if coveredCols >= n {
			break
		}

		// Step 4: find uncovered zeros and prime them until either a
		// starred zero is found in the primed zero's row (cover that
		// row, uncover the starred column) or no uncovered zero remains
		// (step 6 adjusts the matrix and we retry).
		for {
			row, col, found := findUncoveredZero(a, rowCover, colCover)
			if !found {
				adjustMatrix(a, rowCover, colCover)
				continue
			}
			primed[row][col] = true
			starCol := findStarInRow(starred, row)
			if starCol == -1 {
				// Step 5: augment along the alternating path starting
				// at this primed zero.
				augmentPath(starred, primed, row, col)
				clearAll(primed)
				resetCovers(rowCover, colCover)
				break
			}
			rowCover[row] = true
			colCover[starCol] = false
		}
	}

	assignment := make([]int, n)
	for i := range assignment {
		assignment[i] = -1
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if starred[i][j] {
				assignment[i] = j
			}
		}
	}
	return assignment
}

// adjustMatrix implements Munkres step 6: find the smallest uncovered
// value, add it to every covered row, subtract it from every uncovered
// column.
func adjustMatrix(a [][]float64, rowCover, colCover []bool) {
	n := len(a)
	min := math.Inf(1)
	for i := 0; i < n; i++ {
		if rowCover[i] {
			continue
		}
		for j := 0; j < n; j++ {
			if colCover[j] {
				continue
			}
			if a[i][j] < min {
				min = a[i][j]
			}
		}
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if rowCover[i] {
				a[i][j] += min
			}
			if !colCover[j] {
				a[i][j] -= min
			}
		}
	}
}

func resetCovers(rowCover, colCover []bool) {
	for i := range rowCover {
		rowCover[i] = false
	}
	for j := range colCover {
		colCover[j] = false
	}
}

func clearAll(grid [][]bool) {
	for i := range grid {
		for j := range grid[i] {
			grid[i][j] = false
		}
	}
}

func findUncoveredZero(a [][]float64, rowCover, colCover []bool) (int, int, bool) {
	n := len(a)
	for i := 0; i < n; i++ {
		if rowCover[i] {
			continue
		}
		for j := 0; j < n; j++ {
			if colCover[j] {
				continue
			}
			if a[i][j] == 0 {
				return i, j, true
			}
		}
	}
	return 0, 0, false
}

func findStarInRow(starred [][]bool, row int) int {
	for j := range starred[row] {
		if starred[row][j] {
			return j
		}
	}
	return -1
}

func findStarInCol(starred [][]bool, col int) int {
	for i := range starred {
		if starred[i][col] {
			return i
		}
	}
	return -1
}

func findPrimeInRow(primed [][]bool, row int) int {
	for j := range primed[row] {
		if primed[row][j] {
			return j
		}
	}
	return -1
}

// augmentPath builds the alternating path of stars and primes starting
// at the primed zero (row, col), then flips star/unstar along it: the
// core step of the Munkres method.
func augmentPath(starred, primed [][]bool, row, col int) {
	type cell struct{ r, c int }
	path := []cell{{row, col}}
	for {
		starRow := findStarInCol(starred, path[len(path)-1].c)
		if starRow == -1 {
			break
		}
		path = append(path, cell{starRow, path[len(path)-1].c})
		primeCol := findPrimeInRow(primed, starRow)
		path = append(path, cell{starRow, primeCol})
	}
	for _, p := range path {
		starred[p.r][p.c] = !starred[p.r][p.c]
	}
}
