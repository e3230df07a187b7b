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
	"math"
	"math/rand/v2"

	"github.com/spatialmodel/sdm/science/kernel"
)

// coalSubstep runs one coalescence sub-step with the superdroplet method
// of Shima et al. (2009): the superdroplets in each cell are paired at
// random, and each pair coalesces with a probability scaled up to account
// for the pairs that were not considered. Each cell draws from its own
// random stream, so the result does not depend on the backend.
func (e *impl) coalSubstep() {
	st := &e.store
	dt := e.opts.Dt / float64(e.opts.SstpCoal)
	dv := e.grid.dv()
	starts := e.segments()
	seed := e.rng.Uint64()
	e.backend.For(len(starts)-1, func(lo, hi int) {
		var perm []int
		for s := lo; s < hi; s++ {
			a, b := starts[s], starts[s+1]
			m := b - a
			if m < 2 {
				continue
			}
			rng := rand.New(rand.NewPCG(seed, uint64(e.sortedIJK[a])))
			perm = append(perm[:0], e.sortedID[a:b]...)
			rng.Shuffle(m, func(i, j int) { perm[i], perm[j] = perm[j], perm[i] })

			npairs := m / 2
			scale := float64(m) * float64(m-1) / 2 / float64(npairs)
			for p := 0; p < npairs; p++ {
				j, k := perm[2*p], perm[2*p+1]
				if st.n[j] < st.n[k] {
					j, k = k, j
				}
				if st.n[k] == 0 {
					continue
				}
				rate := e.kern(
					kernel.Drop{R: math.Sqrt(st.rw2[j]), VT: st.vt[j]},
					kernel.Drop{R: math.Sqrt(st.rw2[k]), VT: st.vt[k]},
				)
				prob := scale * float64(st.n[j]) * rate * dt / dv
				gamma := math.Floor(prob)
				if rng.Float64() < prob-gamma {
					gamma++
				}
				if gamma == 0 {
					continue
				}
				st.collide(j, k, gamma)
			}
		}
	})
}

// collide coalesces superdroplets j and k, where n[j] >= n[k], gamma
// times: each of the n[k] droplets of k collects up to gamma droplets of
// j.
func (st *particles) collide(j, k int, gamma float64) {
	nj, nk := st.n[j], st.n[k]
	g := nj / nk
	if gamma < float64(g) {
		g = uint64(gamma)
	}
	gf := float64(g)

	rw3 := math.Pow(st.rw2[k], 1.5) + gf*math.Pow(st.rw2[j], 1.5)
	rd3 := st.rd3[k] + gf*st.rd3[j]
	kpa := (st.kpa[k]*st.rd3[k] + gf*st.kpa[j]*st.rd3[j]) / rd3
	var chem [nChem]float64
	for c := range chem {
		chem[c] = st.chem[c][k] + gf*st.chem[c][j]
	}
	rw2 := math.Pow(rw3, 2./3.)

	set := func(ix int) {
		st.rw2[ix], st.rd3[ix], st.kpa[ix] = rw2, rd3, kpa
		for c := range chem {
			st.chem[c][ix] = chem[c]
		}
		st.vt[ix] = vtInvalid
	}
	if nj-g*nk > 0 {
		st.n[j] = nj - g*nk
		set(k)
		return
	}
	// Superdroplet j is used up: split k in two.
	st.n[j] = nk / 2
	st.n[k] = nk - nk/2
	set(j)
	set(k)
}
