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

	"gonum.org/v1/gonum/stat/distuv"
)

// Spectrum is a dry aerosol size distribution.
type Spectrum interface {
	// NumberDensity returns the number of particles per unit volume
	// [m-3] per unit natural logarithm of dry radius, at ln(rd).
	NumberDensity(lnrd float64) float64
}

// DryDistro is a population of aerosol particles with a single
// hygroscopicity.
type DryDistro struct {
	Kappa    float64
	Spectrum Spectrum
}

// LogNormalMode is one mode of a lognormal distribution.
type LogNormalMode struct {
	MeanRd float64 // geometric mean radius [m]
	SdevRd float64 // geometric standard deviation [-]
	N      float64 // number concentration [m-3]
}

// LogNormal is a sum of lognormal modes.
type LogNormal []LogNormalMode

// NumberDensity implements Spectrum.
func (l LogNormal) NumberDensity(lnrd float64) float64 {
	var f float64
	for _, m := range l {
		d := distuv.Normal{Mu: math.Log(m.MeanRd), Sigma: math.Log(m.SdevRd)}
		f += m.N * d.Prob(lnrd)
	}
	return f
}

// Total returns the total number concentration [m-3].
func (l LogNormal) Total() float64 {
	var n float64
	for _, m := range l {
		n += m.N
	}
	return n
}

func (d DryDistro) validate() error {
	if d.Spectrum == nil {
		return fmt.Errorf("%w: dry distribution has no spectrum", ErrConfig)
	}
	if !(d.Kappa >= 0) {
		return fmt.Errorf("%w: invalid hygroscopicity %g", ErrConfig, d.Kappa)
	}
	if l, ok := d.Spectrum.(LogNormal); ok {
		for _, m := range l {
			if !(m.MeanRd > 0 && m.SdevRd > 1 && m.N >= 0) {
				return fmt.Errorf("%w: invalid lognormal mode %+v", ErrConfig, m)
			}
		}
	}
	return nil
}
