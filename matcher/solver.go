// Package matcher - exact linear assignment solver.
package matcher

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Pair is one matched (prediction, target) index pair.
type Pair struct {
	Prediction int
	Target     int
}

// Solve finds the minimum-cost assignment of every column (target) to a
// distinct row (prediction) of an N×M cost matrix with N >= M.
//
// The solver is the shortest-augmenting-path form of the Hungarian algorithm
// with row and column potentials. Targets are inserted one at a time; each
// insertion runs a Dijkstra-like search over reduced costs and augments along
// the cheapest alternating path, so the partial assignment stays optimal after
// every step. The complexity is O(M²·N).
//
// Arguments:
//   - cost: The N×M cost matrix. A nil matrix means no targets.
//
// Returns:
//   - The M pairs sorted by prediction index.
//   - The total cost of the assignment.
//   - ErrTooManyTargets when M > N, ErrInvalidCost when an entry is NaN or Inf.
func Solve(cost *mat.Dense) ([]Pair, float64, error) {
	if cost == nil {
		return nil, 0, nil
	}

	n, m := cost.Dims()
	if m > n {
		return nil, 0, errors.Wrapf(ErrTooManyTargets, "%d targets, %d predictions", m, n)
	}
	for i := 0; i < n; i++ {
		for _, v := range cost.RawRowView(i) {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, 0, errors.Wrapf(ErrInvalidCost, "row %d", i)
			}
		}
	}

	// Targets are the rows of the search (1..m) and predictions the columns
	// (1..n); index 0 is the virtual source.
	at := func(target, pred int) float64 { return cost.At(pred-1, target-1) }

	// u and v are the target and prediction potentials. owner[p] is the target
	// currently holding prediction p and way[p] the previous prediction on the
	// alternating path that reached p.
	u := make([]float64, m+1)
	v := make([]float64, n+1)
	owner := make([]int, n+1)
	way := make([]int, n+1)
	minv := make([]float64, n+1)
	used := make([]bool, n+1)

	for t := 1; t <= m; t++ {
		owner[0] = t
		p0 := 0
		for j := range minv {
			minv[j] = math.Inf(1)
			used[j] = false
		}

		for {
			used[p0] = true
			t0 := owner[p0]
			delta := math.Inf(1)
			p1 := 0
			for p := 1; p <= n; p++ {
				if used[p] {
					continue
				}
				reduced := at(t0, p) - u[t0] - v[p]
				if reduced < minv[p] {
					minv[p] = reduced
					way[p] = p0
				}
				if minv[p] < delta {
					delta = minv[p]
					p1 = p
				}
			}

			for p := 0; p <= n; p++ {
				if used[p] {
					u[owner[p]] += delta
					v[p] -= delta
				} else {
					minv[p] -= delta
				}
			}

			p0 = p1
			if owner[p0] == 0 {
				break
			}
		}

		// Flip the alternating path back to the source.
		for p0 != 0 {
			p1 := way[p0]
			owner[p0] = owner[p1]
			p0 = p1
		}
	}

	pairs := make([]Pair, 0, m)
	var total float64
	for p := 1; p <= n; p++ {
		if owner[p] == 0 {
			continue
		}
		pairs = append(pairs, Pair{Prediction: p - 1, Target: owner[p] - 1})
		total += at(owner[p], p)
	}
	return pairs, total, nil
}
