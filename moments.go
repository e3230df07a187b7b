/*
Copyright © 2019 the InMAP authors.
This file is part of SDM.

SDM is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

SDM is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with SDM.  If not, see <http://www.gnu.org/licenses/>.
*/

package sdm

import (
	"fmt"
	"math"

	"github.com/ctessum/sparse"
)

// Moments holds a statistical moment of the superdroplet size
// distribution for each occupied grid cell.
type Moments struct {
	// Cells holds the flattened index of each occupied cell, in
	// increasing order.
	Cells []int

	// Values holds the moment in each cell, per unit volume.
	Values []float64

	nx, ny, nz int
}

// Len returns the number of occupied cells.
func (m Moments) Len() int { return len(m.Cells) }

// Dense returns the moments as an array with the shape of the grid, with
// zeros in cells holding no superdroplets.
func (m Moments) Dense() *sparse.DenseArray {
	a := sparse.ZerosDense(m.nx, m.ny, m.nz)
	for i, c := range m.Cells {
		a.Elements[c] = m.Values[i]
	}
	return a
}

// reduceByKey sums vals over runs of equal keys, which must be grouped.
// It returns the key of each run and the corresponding sums. Runs are
// summed concurrently, each in order, so results do not depend on the
// backend.
func (e *impl) reduceByKey(keys []int, vals []float64) ([]int, []float64) {
	var starts []int
	for s := range keys {
		if s == 0 || keys[s] != keys[s-1] {
			starts = append(starts, s)
		}
	}
	starts = append(starts, len(keys))
	nseg := len(starts) - 1
	outKeys := make([]int, nseg)
	outVals := make([]float64, nseg)
	e.backend.For(nseg, func(lo, hi int) {
		for g := lo; g < hi; g++ {
			var sum float64
			for s := starts[g]; s < starts[g+1]; s++ {
				sum += vals[s]
			}
			outKeys[g] = keys[starts[g]]
			outVals[g] = sum
		}
	})
	return outKeys, outVals
}

// gatherSorted returns vals, indexed by particle, in sorted order.
func (e *impl) gatherSorted(vals []float64) []float64 {
	out := make([]float64, len(e.sortedID))
	e.backend.For(len(out), func(lo, hi int) {
		for s := lo; s < hi; s++ {
			out[s] = vals[e.sortedID[s]]
		}
	})
	return out
}

// moment calculates the power-th moment of the wet or dry radius
// distribution of superdroplets with radii in [rmin, rmax), per unit
// volume, in each occupied cell. The superdroplets must be sorted.
//
// Each contribution is rounded to a multiple of a power of two fixed by
// the cell's moment over all radii, small enough that every partial sum
// is exact. Moments over adjacent radius ranges therefore add up to the
// moment over their union without rounding error.
func (e *impl) moment(rmin, rmax, power float64, wet bool) (Moments, error) {
	if !e.sorted {
		return Moments{}, fmt.Errorf("%w: moment calculated over unsorted superdroplets", ErrPrecondition)
	}
	st := &e.store
	dv := e.grid.dv()
	all := make([]float64, len(e.sortedID))
	vals := make([]float64, len(e.sortedID))
	e.backend.For(len(vals), func(lo, hi int) {
		for s := lo; s < hi; s++ {
			ix := e.sortedID[s]
			var r float64
			if wet {
				r = math.Sqrt(st.rw2[ix])
			} else {
				r = math.Cbrt(st.rd3[ix])
			}
			all[s] = float64(st.n[ix]) / dv * math.Pow(r, power)
			if r >= rmin && r < rmax {
				vals[s] = all[s]
			}
		}
	})
	_, totals := e.reduceByKey(e.sortedIJK, all)
	starts := e.segments()
	e.backend.For(len(totals), func(lo, hi int) {
		for g := lo; g < hi; g++ {
			q := quantum(totals[g])
			if q == 0 {
				continue
			}
			for s := starts[g]; s < starts[g+1]; s++ {
				vals[s] = math.Round(vals[s]/q) * q
			}
		}
	})
	cells, sums := e.reduceByKey(e.sortedIJK, vals)
	return Moments{Cells: cells, Values: sums, nx: e.grid.nx, ny: e.grid.ny, nz: e.grid.nz}, nil
}

// quantum returns the power of two q with total <= 2^51 q, so that sums of
// non-negative multiples of q not much above total are exact. It returns
// zero if total is zero or not finite.
func quantum(total float64) float64 {
	if !(total > 0) || math.IsInf(total, 0) {
		return 0
	}
	_, exp := math.Frexp(total)
	return math.Ldexp(1, exp-51)
}
