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

// Package thermo holds the moist thermodynamic relations used to couple
// particle processes to a host model's potential temperature and water
// vapour fields.
package thermo

import "math"

const (
	R     = 8.314472  // [J mol-1 K-1] universal gas constant
	Md    = 0.02896   // [kg mol-1] molar mass of dry air
	Mv    = 0.01802   // [kg mol-1] molar mass of water
	Rd    = R / Md    // [J kg-1 K-1] dry air gas constant
	Rv    = R / Mv    // [J kg-1 K-1] water vapour gas constant
	Cpd   = 1005.     // [J kg-1 K-1] specific heat of dry air
	Cpv   = 1850.     // [J kg-1 K-1] specific heat of water vapour
	Cw    = 4218.     // [J kg-1 K-1] specific heat of liquid water
	RhoW  = 1000.     // [kg m-3] density of liquid water
	P1000 = 100000.   // [Pa] reference pressure
	T0    = 273.15    // [K]
	Lv0   = 2.5e6     // [J kg-1] latent heat of vaporization at T0
	Sigma = 0.072     // [N m-1] surface tension of water
	Kappa = Rd / Cpd  // Poisson constant
	Ka    = 2.4e-2    // [W m-1 K-1] thermal conductivity of air
	Dv0   = 2.21e-5   // [m2 s-1] vapour diffusivity at T0 and 1 atm
	Patm  = 101325.   // [Pa]
)

// T returns the temperature [K] given the dry potential temperature th [K]
// and the dry air density rhod [kg m-3].
func T(th, rhod float64) float64 {
	return math.Pow(th*math.Pow(rhod*Rd/P1000, Kappa), 1/(1-Kappa))
}

// Theta is the inverse of T.
func Theta(T, rhod float64) float64 {
	return T * math.Pow(P1000/(rhod*Rd*T), Kappa)
}

// P returns the total pressure [Pa] from the dry air density, the water
// vapour mixing ratio rv [kg kg-1] and the temperature.
func P(rhod, rv, T float64) float64 {
	return rhod * (Rd + rv*Rv) * T
}

// Pvs returns the saturation vapour pressure over water [Pa]
// (Bolton, 1980).
func Pvs(T float64) float64 {
	return 611.2 * math.Exp(17.67*(T-T0)/(T-29.65))
}

// RH returns the relative humidity (as a ratio, not a percentage).
func RH(rhod, rv, T float64) float64 {
	return rhod * rv * Rv * T / Pvs(T)
}

// RvFromRH returns the vapour mixing ratio giving relative humidity rh.
func RvFromRH(rh, rhod, T float64) float64 {
	return rh * Pvs(T) / (rhod * Rv * T)
}

// L returns the latent heat of vaporization [J kg-1] at temperature T.
func L(T float64) float64 {
	return Lv0 + (Cpv-Cw)*(T-T0)
}

// DThDRv returns the change in dry potential temperature per unit change
// in vapour mixing ratio resulting from latent heat release at constant
// dry air density.
func DThDRv(T, th float64) float64 {
	return -L(T) / Cpd * th / T
}

// KelvinA returns the coefficient A [m] of the Kelvin curvature term
// exp(A/r).
func KelvinA(T float64) float64 {
	return 2 * Sigma / (Rv * T * RhoW)
}

// Dv returns the diffusivity of water vapour in air [m2 s-1].
func Dv(T, p float64) float64 {
	return Dv0 * math.Pow(T/T0, 1.94) * (Patm / p)
}

// GrowthCoefficient returns the Maxwell-Mason coefficient G [m2 s-1] such
// that r dr/dt = G (S - Seq), where S is the ambient saturation ratio and
// Seq the equilibrium saturation ratio at the drop surface.
func GrowthCoefficient(T, p float64) float64 {
	l := L(T)
	fk := (l/(Rv*T) - 1) * l * RhoW / (Ka * T)
	fd := RhoW * Rv * T / (Dv(T, p) * Pvs(T))
	return 1 / (fk + fd)
}
