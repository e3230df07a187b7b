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

// Package vterm calculates the terminal fall velocity of water drops.
package vterm

import "math"

// Rho0 is the reference air density [kg m-3] of the fall-speed fits.
const Rho0 = 1.2

const (
	k1 = 1.19e8 // [m-1 s-1]
	k3 = 8.e3   // [s-1]
	k2 = 2.01e2 // [m0.5 s-1]

	r1 = 40e-6 // [m]
	r2 = 6e-4  // [m]
)

// VT returns the terminal velocity [m s-1] of a drop with radius r [m]
// falling through air of density rho [kg m-3], using the piecewise fits
// of Rogers and Yau (1989, ch. 8) with the density correction of Foote and
// du Toit (1969) applied to the two larger regimes.
func VT(r, rho float64) float64 {
	switch {
	case r <= 0:
		return 0
	case r < r1:
		return k1 * r * r
	case r < r2:
		return k3 * r * math.Sqrt(Rho0/rho)
	default:
		return k2 * math.Sqrt(r) * math.Sqrt(Rho0/rho)
	}
}
