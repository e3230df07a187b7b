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
)

// bcond applies the boundary conditions and returns the volume of water
// [m3] removed through the bottom of the domain. The domain is periodic
// in y. Superdroplets below the surface are removed as precipitation and
// those above the top are removed. Superdroplets leaving the slab
// through an x face either re-enter through the opposite face or, in a
// cluster, are moved to the boundary buffer for the neighboring shard.
func (e *impl) bcond() (float64, error) {
	g := e.grid
	st := &e.store
	ly, lz, lx := g.lenY(), g.lenZ(), g.lenX()
	x0, x1 := g.x0(), g.x1()
	var precip float64
	for ix := 0; ix < st.count; ix++ {
		st.y[ix] = wrap(st.y[ix], ly)
		switch z := st.z[ix]; {
		case z < 0:
			precip += float64(st.n[ix]) * 4. / 3. * math.Pi * math.Pow(st.rw2[ix], 1.5)
			st.n[ix] = 0
			continue
		case z >= lz:
			st.n[ix] = 0
			continue
		}
		x := st.x[ix]
		if x >= x0 && x < x1 {
			continue
		}
		if e.periodic {
			st.x[ix] = wrap(x, lx)
			continue
		}
		out := &st.outR
		if x < x0 {
			out = &st.outL
		}
		if err := out.push(st.get(ix)); err != nil {
			return precip, err
		}
		st.n[ix] = 0
	}
	st.compact()
	e.sorted = false
	return precip, nil
}

// finalize completes an asynchronous step after the boundary conditions
// and any particle exchange.
func (e *impl) finalize() {
	e.locate(0)
	e.sorted = false
}

// absorb moves the superdroplets received from neighboring shards into
// the store.
func (e *impl) absorb() error {
	st := &e.store
	from := st.count
	lx := e.grid.lenX()
	for _, r := range st.in.recs {
		r.x = wrap(r.x, lx)
		if _, err := st.add(r); err != nil {
			return err
		}
	}
	st.in.reset()
	e.locate(from)
	e.sorted = false
	return nil
}
