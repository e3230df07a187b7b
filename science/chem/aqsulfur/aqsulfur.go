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

// Package aqsulfur contains the aqueous-phase sulfur chemistry of cloud
// droplets: dissolution of SO2 and H2O2 according to Henry's law, the
// first dissociation of dissolved SO2, and oxidation of S(IV) to S(VI) by
// hydrogen peroxide (Seinfeld and Pandis, 2006, ch. 7).
package aqsulfur

import (
	"math"

	"github.com/ctessum/atmos/seinfeld"
)

// Molar masses [kg mol-1].
const (
	MS    = 0.032066
	MSO2  = 0.064064
	MH2O2 = 0.034015
)

const (
	// HBackground is the hydrogen ion concentration [M] of water in
	// equilibrium with atmospheric CO2 (pH 5.6).
	HBackground = 2.5e-6

	// K is the constant in the denominator of the H2O2 oxidation rate
	// expression [M-1].
	K = 13.

	// Atm is one atmosphere [Pa].
	Atm = 101325.
)

// HenrySO2 returns Henry's law coefficient for SO2 [M atm-1].
func HenrySO2(T float64) float64 {
	return seinfeld.TemperatureAdjustRate(1.23, -6.25/seinfeld.Rkcal, T)
}

// HenryH2O2 returns Henry's law coefficient for H2O2 [M atm-1].
func HenryH2O2(T float64) float64 {
	return seinfeld.TemperatureAdjustRate(7.45e4, -14.5/seinfeld.Rkcal, T)
}

// Ks1 returns the first dissociation constant of SO2·H2O [M].
func Ks1(T float64) float64 {
	return seinfeld.TemperatureAdjustRate(1.3e-2, -1960., T)
}

// EffectiveHenrySO2 returns the effective Henry's law coefficient of
// total dissolved S(IV) [M atm-1] at hydrogen ion concentration H [M].
func EffectiveHenrySO2(T, H float64) float64 {
	return HenrySO2(T) * (1 + Ks1(T)/H)
}

// OxidationRate returns the first-order loss rate [s-1] of dissolved S(IV)
// by reaction with dissolved H2O2 at concentration h2o2 [M] and hydrogen ion
// concentration H [M].
func OxidationRate(T, H, h2o2 float64) float64 {
	k := seinfeld.TemperatureAdjustRate(7.5e7, 4430., T) // [M-2 s-1]
	ks1 := Ks1(T)
	return k * ks1 * h2o2 / ((1 + K*H) * (1 + ks1/H))
}

// HydrogenIon returns the hydrogen ion concentration [M] of a drop holding
// total S(IV) and S(VI) concentrations s4 and s6 [M]. S(VI) is taken as
// fully dissociated and S(IV) as dissociated to HSO3- only.
func HydrogenIon(T, s4, s6 float64) float64 {
	c := HBackground + 2*s6
	ks1 := Ks1(T)
	b := c - ks1
	return (b + math.Sqrt(b*b+4*ks1*(c+s4))) / 2
}

// PartialPressure returns the partial pressure [atm] of a gas with mass
// mixing ratio r [kg kg-1] and molar mass m [kg mol-1] in dry air of
// density rhod [kg m-3] at temperature T.
func PartialPressure(r, m, rhod, T float64) float64 {
	const R = 8.314472
	return r * rhod / m * R * T / Atm
}
