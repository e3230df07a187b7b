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

	"github.com/spatialmodel/sdm/science/chem/aqsulfur"
	"github.com/spatialmodel/sdm/science/kappakoehler"
	"github.com/spatialmodel/sdm/science/thermo"
	"github.com/spatialmodel/sdm/science/vterm"
)

// grid describes the part of the domain held by one engine: a slab of
// nx cells along x starting at global index i0.
type grid struct {
	nx, ny, nz int
	dx, dy, dz float64
	i0         int
	nxGlobal   int
}

func (g grid) ncell() int { return g.nx * g.ny * g.nz }
func (g grid) dv() float64 { return g.dx * g.dy * g.dz }
func (g grid) x0() float64 { return float64(g.i0) * g.dx }
func (g grid) x1() float64 { return float64(g.i0+g.nx) * g.dx }
func (g grid) lenX() float64 { return float64(g.nxGlobal) * g.dx }
func (g grid) lenY() float64 { return float64(g.ny) * g.dy }
func (g grid) lenZ() float64 { return float64(g.nz) * g.dz }

// cell returns the flattened index of cell (i, j, k).
func (g grid) cell(i, j, k int) int { return (i*g.ny+j)*g.nz + k }

// cellIndex returns the index of the cell holding coordinate v, measured
// from the start of the dimension, clamped to [0, n).
func cellIndex(v, d float64, n int) int {
	f := math.Floor(v / d)
	switch {
	case !(f > 0):
		return 0
	case f >= float64(n):
		return n - 1
	default:
		return int(f)
	}
}

// locate recalculates the cell indices of superdroplets [from, count).
// Superdroplets outside the slab are assigned to the nearest cell until
// the boundary conditions move them.
func (e *impl) locate(from int) {
	g := e.grid
	st := &e.store
	x0 := g.x0()
	e.backend.For(st.count-from, func(lo, hi int) {
		for ix := from + lo; ix < from+hi; ix++ {
			i := cellIndex(st.x[ix]-x0, g.dx, g.nx)
			j := cellIndex(st.y[ix], g.dy, g.ny)
			k := cellIndex(st.z[ix], g.dz, g.nz)
			st.i[ix], st.j[ix], st.k[ix] = i, j, k
			st.ijk[ix] = g.cell(i, j, k)
		}
	})
}

// ambient recalculates the temperature, pressure and relative humidity
// of each cell from the mirrored host fields.
func (e *impl) ambient() {
	e.backend.For(e.grid.ncell(), func(lo, hi int) {
		for c := lo; c < hi; c++ {
			T := thermo.T(e.th[c], e.rhod[c])
			e.T[c] = T
			e.p[c] = thermo.P(e.rhod[c], e.rv[c], T)
			e.RH[c] = thermo.RH(e.rhod[c], e.rv[c], T)
		}
	})
}

// refreshAmbient copies the conditions of each cell to the
// superdroplets it holds.
func (e *impl) refreshAmbient() error {
	st := &e.store
	for _, f := range [][2][]float64{{st.T, e.T}, {st.p, e.p}, {st.RH, e.RH}, {st.rhod, e.rhod}} {
		if err := e.updateState(f[0], f[1]); err != nil {
			return err
		}
	}
	if e.opts.Chem {
		for g := range st.gas {
			if err := e.updateState(st.gas[g], e.gas[g]); err != nil {
				return err
			}
		}
	}
	return nil
}

// termVel recalculates terminal velocities, either all of them or only
// those marked invalid.
func (e *impl) termVel(all bool) {
	st := &e.store
	e.backend.For(st.count, func(lo, hi int) {
		for ix := lo; ix < hi; ix++ {
			if all || st.vt[ix] == vtInvalid {
				st.vt[ix] = vterm.VT(math.Sqrt(st.rw2[ix]), st.rhod[ix])
			}
		}
	})
}

// invalidateVT marks all terminal velocities for recalculation.
func (e *impl) invalidateVT() {
	st := &e.store
	for ix := 0; ix < st.count; ix++ {
		st.vt[ix] = vtInvalid
	}
}

// sample creates sdconc superdroplets in each cell whose vertical index
// is accepted by layer, with dry radii sampled from d, and returns the
// number created. The log of dry radius is sampled by stratified random
// sampling over [ln RdMin, ln RdMax) and positions uniformly within each
// cell. Superdroplets that would represent less than one particle are
// not created. Wet radii are set by setWetRadii.
func (e *impl) sample(d DryDistro, sdconc int, layer func(k int) bool) (int, error) {
	g := e.grid
	st := &e.store
	lnmin, lnmax := math.Log(e.opts.RdMin), math.Log(e.opts.RdMax)
	dln := (lnmax - lnmin) / float64(sdconc)
	dv := g.dv()
	x0 := g.x0()
	from := st.count
	for i := 0; i < g.nx; i++ {
		for j := 0; j < g.ny; j++ {
			for k := 0; k < g.nz; k++ {
				if !layer(k) {
					continue
				}
				for s := 0; s < sdconc; s++ {
					lnrd := lnmin + (float64(s)+e.rng.Float64())*dln
					n := math.Round(d.Spectrum.NumberDensity(lnrd) * dln * dv)
					x := x0 + (float64(i)+e.rng.Float64())*g.dx
					y := (float64(j) + e.rng.Float64()) * g.dy
					z := (float64(k) + e.rng.Float64()) * g.dz
					if n < 1 {
						continue
					}
					rd3 := math.Exp(3 * lnrd)
					ix, err := st.add(record{
						n: uint64(n), rd3: rd3, rw2: math.Pow(rd3, 2./3.), kpa: d.Kappa,
						x: x, y: y, z: z,
						H: aqsulfur.HBackground,
					})
					if err != nil {
						return st.count - from, err
					}
					st.i[ix], st.j[ix], st.k[ix] = i, j, k
					st.ijk[ix] = g.cell(i, j, k)
				}
			}
		}
	}
	return st.count - from, nil
}

// setWetRadii sets the wet radii of superdroplets [from, count) to
// equilibrium with the relative humidity of their cells, capped at
// RHMaxInit.
func (e *impl) setWetRadii(from int) {
	st := &e.store
	rhMax := e.opts.RHMaxInit
	e.backend.For(st.count-from, func(lo, hi int) {
		for ix := from + lo; ix < from+hi; ix++ {
			c := st.ijk[ix]
			S := math.Min(e.RH[c], rhMax)
			rw3 := kappakoehler.RW3(st.rd3[ix], st.kpa[ix], S, e.T[c])
			st.rw2[ix] = math.Pow(rw3, 2./3.)
		}
	})
}

// wrap returns v wrapped periodically into [0, l).
func wrap(v, l float64) float64 {
	v = math.Mod(v, l)
	if v < 0 {
		v += l
	}
	if v >= l {
		v = 0
	}
	return v
}
