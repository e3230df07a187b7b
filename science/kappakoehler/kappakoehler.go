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

// Package kappakoehler implements the kappa-Koehler equilibrium between a
// solution droplet and the surrounding water vapour (Petters and
// Kreidenweis, 2007), including the Kelvin curvature effect.
package kappakoehler

import (
	"math"

	"github.com/spatialmodel/sdm/science/thermo"
)

// MaxIter is the maximum number of root-solver iterations.
const MaxIter = 20

// Tol is the relative tolerance of the root solve: half of the bits of a
// float64.
var Tol = math.Max(math.Ldexp(1, 1-32), 4*eps)

const eps = 2.220446049250313e-16

// RW3NoKelvin returns the cube of the equilibrium wet radius of a droplet
// with dry radius cubed rd3 and hygroscopicity kappa at saturation ratio
// S < 1, neglecting the Kelvin effect. It bounds the equilibrium wet
// radius from above.
func RW3NoKelvin(rd3, kappa, S float64) float64 {
	return rd3 * (1 - S*(1-kappa)) / (1 - S)
}

// WaterActivity returns the water activity of a solution droplet with
// wet radius cubed rw3. A drop with an insoluble core has unit activity,
// and a soluble drop no larger than its dry core has none.
func WaterActivity(rw3, rd3, kappa float64) float64 {
	switch {
	case kappa == 0:
		return 1
	case rw3 <= rd3:
		return 0
	}
	return (rw3 - rd3) / (rw3 - rd3*(1-kappa))
}

// KelvinTerm returns the curvature correction exp(A/rw) for a drop of wet
// radius rw at temperature T.
func KelvinTerm(rw, T float64) float64 {
	return math.Exp(thermo.KelvinA(T) / rw)
}

// SaturationRatio returns the saturation ratio at the surface of a drop,
// i.e. the ambient saturation ratio at which it would be in equilibrium.
func SaturationRatio(rw3, rd3, kappa, T float64) float64 {
	return WaterActivity(rw3, rd3, kappa) * KelvinTerm(math.Cbrt(rw3), T)
}

// Result is the final bracket of an equilibrium solve.
type Result struct {
	// Lo and Hi bound the cube of the equilibrium wet radius.
	Lo, Hi float64

	// Iter is the number of iterations used.
	Iter int
}

// RW3 returns the solution: the midpoint of the bracket.
func (r Result) RW3() float64 { return r.Lo + (r.Hi-r.Lo)/2 }

// Width returns the width of the final bracket.
func (r Result) Width() float64 { return r.Hi - r.Lo }

// RW3 returns the cube of the equilibrium wet radius at saturation ratio
// 0 <= S < 1 and temperature T. See Solve.
func RW3(rd3, kappa, S, T float64) float64 {
	return Solve(rd3, kappa, S, T).RW3()
}

// Solve brackets the cube of the equilibrium wet radius between rd3 and
// RW3NoKelvin and narrows the bracket with the Illinois variant of regula
// falsi, falling back to bisection when the bracket stops halving. The
// solve stops after MaxIter iterations or when the bracket is narrower than
// Tol relative to its ends; a bracket that has not converged is returned as
// is.
func Solve(rd3, kappa, S, T float64) Result {
	return solve(rd3, kappa, S, T, MaxIter)
}

// solve is Solve with at most maxIter iterations.
func solve(rd3, kappa, S, T float64, maxIter int) Result {
	if S <= 0 || kappa <= 0 {
		return Result{Lo: rd3, Hi: rd3}
	}
	if S >= 1 {
		return Result{Lo: math.Inf(1), Hi: math.Inf(1)}
	}
	a, b := rd3, RW3NoKelvin(rd3, kappa, S)
	if !(b > a) {
		return Result{Lo: b, Hi: b}
	}
	f := func(rw3 float64) float64 {
		return S - SaturationRatio(rw3, rd3, kappa, T)
	}
	fa, fb := f(a), f(b)
	if fa == 0 {
		return Result{Lo: a, Hi: a}
	}
	if fb == 0 {
		return Result{Lo: b, Hi: b}
	}

	var side, iter int
	width := math.Inf(1)
	for iter = 1; iter <= maxIter; iter++ {
		if b-a <= Tol*math.Min(math.Abs(a), math.Abs(b)) {
			iter--
			break
		}
		var c float64
		if iter%2 == 1 && b-a > width/2 {
			// The last two regula falsi steps did not halve the bracket.
			c = a + (b-a)/2
			side = 0
		} else {
			c = (a*fb - b*fa) / (fb - fa)
			if !(c > a && c < b) {
				c = a + (b-a)/2
			}
		}
		if iter%2 == 1 {
			width = b - a
		}
		fc := f(c)
		switch {
		case fc == 0:
			return Result{Lo: c, Hi: c, Iter: iter}
		case math.Signbit(fc) == math.Signbit(fa):
			a, fa = c, fc
			if side == -1 {
				fb /= 2
			}
			side = -1
		default:
			b, fb = c, fc
			if side == 1 {
				fa /= 2
			}
			side = 1
		}
	}
	if iter > maxIter {
		iter = maxIter
	}
	return Result{Lo: a, Hi: b, Iter: iter}
}
