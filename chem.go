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
)

// liquidLiters returns the volume of liquid water [L] in superdroplet ix.
func (st *particles) liquidLiters(ix int) float64 {
	v := 4. / 3. * math.Pi * (math.Pow(st.rw2[ix], 1.5) - st.rd3[ix]) // m3
	return math.Max(v, 0) * 1e3
}

// chemSubstep runs the requested aqueous chemistry processes for one
// chemistry sub-step.
func (e *impl) chemSubstep(o StepOpts) error {
	if err := e.refreshAmbient(); err != nil {
		return err
	}
	dt := e.opts.Dt / float64(e.opts.SstpChem)
	if o.ChemDsl {
		if err := e.dissolve(); err != nil {
			return err
		}
	}
	if o.ChemDsc {
		e.dissociate()
	}
	if o.ChemRct {
		if err := e.react(dt); err != nil {
			return err
		}
	}
	return nil
}

// limitUptake scales the positive entries of demand, a per-particle
// removal of gas species g [kg kg-1], so that no cell loses more gas than
// it holds, and then removes the demand from the cell gas mirror.
func (e *impl) limitUptake(g int, demand []float64) error {
	st := &e.store
	ncell := e.grid.ncell()
	uptake := make([]float64, ncell)
	release := make([]float64, ncell)
	pos := e.scratch[2][:st.count]
	neg := e.scratch[3][:st.count]
	for ix := range pos {
		pos[ix] = math.Max(demand[ix], 0)
		neg[ix] = -math.Min(demand[ix], 0)
	}
	if err := e.updatePstate(uptake, pos); err != nil {
		return err
	}
	if err := e.updatePstate(release, neg); err != nil {
		return err
	}
	scale := uptake // reused
	for c := range scale {
		avail := e.gas[g][c] + release[c]
		if uptake[c] > avail {
			scale[c] = avail / uptake[c]
		} else {
			scale[c] = 1
		}
	}
	f := pos // reused
	if err := e.updateState(f, scale); err != nil {
		return err
	}
	for ix := range demand {
		if demand[ix] > 0 {
			demand[ix] *= f[ix]
		}
		neg[ix] = -demand[ix]
	}
	if err := e.updatePstate(e.gas[g], neg); err != nil {
		return err
	}
	for c := range e.gas[g] {
		if e.gas[g][c] < 0 {
			e.gas[g][c] = 0 // round-off
		}
	}
	return e.updateState(st.gas[g], e.gas[g])
}

// dissolve brings dissolved S(IV) to Henry's law equilibrium with
// gas-phase SO2.
func (e *impl) dissolve() error {
	st := &e.store
	dv := e.grid.dv()
	demand := e.scratch[1][:st.count]
	e.backend.For(st.count, func(lo, hi int) {
		for ix := lo; ix < hi; ix++ {
			T := st.T[ix]
			pSO2 := aqsulfur.PartialPressure(st.gas[gasSO2][ix], aqsulfur.MSO2, st.rhod[ix], T)
			eq := aqsulfur.EffectiveHenrySO2(T, st.H[ix]) * pSO2 * st.liquidLiters(ix) * aqsulfur.MS // kg S
			dm := eq - st.chem[chemS4][ix]
			demand[ix] = float64(st.n[ix]) * dm / aqsulfur.MS * aqsulfur.MSO2 / (st.rhod[ix] * dv)
		}
	})
	if err := e.limitUptake(gasSO2, demand); err != nil {
		return err
	}
	e.backend.For(st.count, func(lo, hi int) {
		for ix := lo; ix < hi; ix++ {
			if st.n[ix] == 0 {
				continue
			}
			dm := demand[ix] * st.rhod[ix] * dv / float64(st.n[ix]) * aqsulfur.MS / aqsulfur.MSO2
			st.chem[chemS4][ix] = math.Max(st.chem[chemS4][ix]+dm, 0)
		}
	})
	return nil
}

// dissociate recalculates the hydrogen ion concentration of each
// superdroplet.
func (e *impl) dissociate() {
	st := &e.store
	e.backend.For(st.count, func(lo, hi int) {
		for ix := lo; ix < hi; ix++ {
			l := st.liquidLiters(ix)
			if l == 0 {
				st.H[ix] = aqsulfur.HBackground
				continue
			}
			s4 := st.chem[chemS4][ix] / aqsulfur.MS / l
			s6 := st.chem[chemS6][ix] / aqsulfur.MS / l
			st.H[ix] = aqsulfur.HydrogenIon(st.T[ix], s4, s6)
		}
	})
}

// react oxidizes dissolved S(IV) to S(VI) with hydrogen peroxide taken up
// from the gas phase.
func (e *impl) react(dt float64) error {
	st := &e.store
	dv := e.grid.dv()
	demand := e.scratch[1][:st.count]
	e.backend.For(st.count, func(lo, hi int) {
		for ix := lo; ix < hi; ix++ {
			T := st.T[ix]
			pH2O2 := aqsulfur.PartialPressure(st.gas[gasH2O2][ix], aqsulfur.MH2O2, st.rhod[ix], T)
			h2o2 := aqsulfur.HenryH2O2(T) * pH2O2 // M
			k := aqsulfur.OxidationRate(T, st.H[ix], h2o2)
			ds := st.chem[chemS4][ix] * -math.Expm1(-k*dt) // kg S
			demand[ix] = float64(st.n[ix]) * ds / aqsulfur.MS * aqsulfur.MH2O2 / (st.rhod[ix] * dv)
		}
	})
	if err := e.limitUptake(gasH2O2, demand); err != nil {
		return err
	}
	e.backend.For(st.count, func(lo, hi int) {
		for ix := lo; ix < hi; ix++ {
			if st.n[ix] == 0 {
				continue
			}
			ds := demand[ix] * st.rhod[ix] * dv / float64(st.n[ix]) * aqsulfur.MS / aqsulfur.MH2O2
			ds = math.Min(ds, st.chem[chemS4][ix])
			st.chem[chemS4][ix] -= ds
			st.chem[chemS6][ix] += ds
		}
	})
	return nil
}
