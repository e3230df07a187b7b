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

import "fmt"

// Indices of the aqueous chemistry columns: dissolved S(IV) and S(VI)
// mass [kg of S].
const (
	chemS4, chemS6 = 0, 1
	nChem          = 2
)

// Indices of the gas-phase species [kg kg-1 of dry air].
const (
	gasSO2, gasH2O2 = 0, 1
	nGas            = 2
)

// vtInvalid marks terminal velocities that need to be recalculated.
const vtInvalid = -1.

// particles is the columnar superdroplet store. Elements [0, count) of
// each column are the active superdroplets.
type particles struct {
	n             []uint64  // multiplicity
	rd3, rw2, kpa []float64 // dry radius cubed, wet radius squared, hygroscopicity
	x, y, z       []float64 // position [m]
	i, j, k, ijk  []int     // cell indices
	vt            []float64 // terminal velocity [m s-1]

	// Ambient conditions in each particle's cell.
	T, p, RH, rhod []float64
	gas            [nGas][]float64

	chem [nChem][]float64
	H    []float64 // hydrogen ion concentration [M]

	count int

	// Boundary buffers: particles leaving through the low and high x
	// faces, and particles arriving from neighbors.
	outL, outR, in buffer
}

// record holds the state of one superdroplet that is carried across a
// shard boundary. Cell indices and ambient conditions are recalculated
// on arrival.
type record struct {
	n             uint64
	rd3, rw2, kpa float64
	x, y, z       float64
	chem          [nChem]float64
	H             float64
}

// buffer is a fixed-capacity list of records.
type buffer struct {
	recs []record
}

func newBuffer(capacity int) buffer {
	return buffer{recs: make([]record, 0, capacity)}
}

func (b *buffer) push(r record) error {
	if len(b.recs) == cap(b.recs) {
		return fmt.Errorf("%w: boundary buffer holds %d particles", ErrCapacity, cap(b.recs))
	}
	b.recs = append(b.recs, r)
	return nil
}

func (b *buffer) reset() { b.recs = b.recs[:0] }

// reserve allocates the columns for capacity superdroplets and the
// outgoing boundary buffers for bufCapacity superdroplets each. The
// incoming buffer, which receives from both neighbors, holds twice as
// many. It must be called once, before any particle is added.
func (p *particles) reserve(capacity, bufCapacity int) {
	p.n = make([]uint64, capacity)
	for _, c := range []*[]float64{&p.rd3, &p.rw2, &p.kpa, &p.x, &p.y, &p.z, &p.vt,
		&p.T, &p.p, &p.RH, &p.rhod, &p.H, &p.gas[gasSO2], &p.gas[gasH2O2],
		&p.chem[chemS4], &p.chem[chemS6]} {
		*c = make([]float64, capacity)
	}
	for _, c := range []*[]int{&p.i, &p.j, &p.k, &p.ijk} {
		*c = make([]int, capacity)
	}
	p.outL = newBuffer(bufCapacity)
	p.outR = newBuffer(bufCapacity)
	p.in = newBuffer(2 * bufCapacity)
}

func (p *particles) capacity() int { return len(p.n) }

// add appends a superdroplet and returns its index. The caller is
// responsible for setting its cell indices.
func (p *particles) add(r record) (int, error) {
	if p.count == p.capacity() {
		return -1, fmt.Errorf("%w: particle store holds %d particles", ErrCapacity, p.capacity())
	}
	ix := p.count
	p.count++
	p.set(ix, r)
	p.vt[ix] = vtInvalid
	return ix, nil
}

func (p *particles) set(ix int, r record) {
	p.n[ix] = r.n
	p.rd3[ix], p.rw2[ix], p.kpa[ix] = r.rd3, r.rw2, r.kpa
	p.x[ix], p.y[ix], p.z[ix] = r.x, r.y, r.z
	for c := range r.chem {
		p.chem[c][ix] = r.chem[c]
	}
	p.H[ix] = r.H
}

func (p *particles) get(ix int) record {
	r := record{
		n:   p.n[ix],
		rd3: p.rd3[ix], rw2: p.rw2[ix], kpa: p.kpa[ix],
		x: p.x[ix], y: p.y[ix], z: p.z[ix],
		H: p.H[ix],
	}
	for c := range r.chem {
		r.chem[c] = p.chem[c][ix]
	}
	return r
}

// move copies every column of superdroplet src to position dst.
func (p *particles) move(dst, src int) {
	p.set(dst, p.get(src))
	p.i[dst], p.j[dst], p.k[dst], p.ijk[dst] = p.i[src], p.j[src], p.k[src], p.ijk[src]
	p.vt[dst] = p.vt[src]
	p.T[dst], p.p[dst], p.RH[dst], p.rhod[dst] = p.T[src], p.p[src], p.RH[src], p.rhod[src]
	for g := range p.gas {
		p.gas[g][dst] = p.gas[g][src]
	}
}

// compact removes superdroplets with zero multiplicity, preserving the
// order of the others, and returns the number removed.
func (p *particles) compact() int {
	w := 0
	for r := 0; r < p.count; r++ {
		if p.n[r] == 0 {
			continue
		}
		if w != r {
			p.move(w, r)
		}
		w++
	}
	removed := p.count - w
	p.count = w
	return removed
}
