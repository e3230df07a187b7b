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

	"github.com/spatialmodel/sdm/science/kappakoehler"
	"github.com/spatialmodel/sdm/science/thermo"
)

// condSubstep grows or evaporates every superdroplet by vapour diffusion
// over one condensation sub-step and applies the resulting vapour and
// latent heat changes to the cell mirrors. In subsaturated air a drop
// approaches, but does not pass, its equilibrium radius. The relative
// humidity seen by the drops is capped at rhMax if rhMax > 0.
func (e *impl) condSubstep(rhMax float64) error {
	e.ambient()
	if err := e.refreshAmbient(); err != nil {
		return err
	}
	st := &e.store
	dt := e.opts.Dt / float64(e.opts.SstpCond)
	dv := e.grid.dv()
	drv := e.scratch[0][:st.count]
	e.backend.For(st.count, func(lo, hi int) {
		for ix := lo; ix < hi; ix++ {
			T, S := st.T[ix], st.RH[ix]
			if rhMax > 0 && S > rhMax {
				S = rhMax
			}
			rd3, kpa, rw2 := st.rd3[ix], st.kpa[ix], st.rw2[ix]
			rw3 := math.Pow(rw2, 1.5)

			g := thermo.GrowthCoefficient(T, st.p[ix])
			seq := kappakoehler.SaturationRatio(rw3, rd3, kpa, T)
			rw2new := rw2 + 2*g*(S-seq)*dt

			var rw3new float64
			if S < 1 {
				eq := kappakoehler.RW3(rd3, kpa, S, T)
				rw3new = math.Pow(math.Max(rw2new, 0), 1.5)
				if rw3 <= eq {
					rw3new = math.Min(rw3new, eq)
				} else {
					rw3new = math.Max(rw3new, eq)
				}
			} else {
				rw3new = math.Pow(math.Max(rw2new, math.Pow(rd3, 2./3.)), 1.5)
			}
			st.rw2[ix] = math.Pow(rw3new, 2./3.)
			drv[ix] = -float64(st.n[ix]) * 4. / 3. * math.Pi * thermo.RhoW * (rw3new - rw3) / (st.rhod[ix] * dv)
		}
	})
	return e.updateThRv(drv)
}
