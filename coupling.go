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

	"github.com/spatialmodel/sdm/science/thermo"
)

// updatePstate adds the sum over the superdroplets in each cell of
// delta, indexed by particle, to the per-cell array state.
func (e *impl) updatePstate(state, delta []float64) error {
	if !e.sorted {
		return fmt.Errorf("%w: cell update over unsorted superdroplets", ErrPrecondition)
	}
	cells, sums := e.reduceByKey(e.sortedIJK, e.gatherSorted(delta))
	for i, c := range cells {
		state[c] += sums[i]
	}
	return nil
}

// updateState sets dst, indexed by particle, to the value of the per-cell
// array cellVal in each superdroplet's cell.
func (e *impl) updateState(dst, cellVal []float64) error {
	if !e.sorted {
		return fmt.Errorf("%w: broadcast to unsorted superdroplets", ErrPrecondition)
	}
	e.backend.For(len(e.sortedID), func(lo, hi int) {
		for s := lo; s < hi; s++ {
			dst[e.sortedID[s]] = cellVal[e.sortedIJK[s]]
		}
	})
	return nil
}

// updateThRv applies per-particle changes in water vapour mixing ratio to
// the cell vapour and potential temperature mirrors, heating each cell
// by the latent heat released.
func (e *impl) updateThRv(drv []float64) error {
	if !e.sorted {
		return fmt.Errorf("%w: vapour update over unsorted superdroplets", ErrPrecondition)
	}
	cells, sums := e.reduceByKey(e.sortedIJK, e.gatherSorted(drv))
	for i, c := range cells {
		if !(e.rv[c] >= 0) {
			return fmt.Errorf("%w: invalid vapour mixing ratio %g in cell %d", ErrPrecondition, e.rv[c], c)
		}
		d := sums[i]
		if math.IsNaN(d) || math.IsInf(d, 0) {
			return fmt.Errorf("%w: invalid vapour change %g in cell %d", ErrPrecondition, d, c)
		}
		e.th[c] += thermo.DThDRv(e.T[c], e.th[c]) * d
		e.rv[c] += d
		if !(e.rv[c] >= 0) {
			return fmt.Errorf("%w: vapour mixing ratio in cell %d became negative (%g)", ErrPrecondition, c, e.rv[c])
		}
	}
	return nil
}
