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
	"testing"

	"github.com/spatialmodel/sdm/science/chem/aqsulfur"
	"github.com/spatialmodel/sdm/science/thermo"
)

func newChemEngine(t *testing.T) (*Engine, *host) {
	t.Helper()
	o := testOpts()
	o.Chem = true
	o.SstpChem = 2
	// 1 ppbv of each gas.
	o.ChemSO2 = 1e-9 * aqsulfur.MSO2 / thermo.Md
	o.ChemH2O2 = 1e-9 * aqsulfur.MH2O2 / thermo.Md
	e, h := newTestEngine(t, o, 283, 0.9)
	st := &e.e.store
	for ix := 0; ix < st.count; ix++ {
		st.rw2[ix] = 10e-6 * 10e-6
	}
	return e, h
}

// sulfur returns the total mass of sulfur [kg] in the gas phase and in
// drops, and the mass in S(VI).
func sulfur(e *Engine, h *host) (total, s6 float64) {
	ee := e.e
	dv := ee.grid.dv()
	for c, g := range ee.gas[gasSO2] {
		total += g * h.rhod[c] * dv * aqsulfur.MS / aqsulfur.MSO2
	}
	st := &ee.store
	for ix := 0; ix < st.count; ix++ {
		n := float64(st.n[ix])
		total += n * (st.chem[chemS4][ix] + st.chem[chemS6][ix])
		s6 += n * st.chem[chemS6][ix]
	}
	return total, s6
}

func peroxide(e *Engine, h *host) float64 {
	var m float64
	dv := e.e.grid.dv()
	for c, g := range e.e.gas[gasH2O2] {
		m += g * h.rhod[c] * dv
	}
	return m
}

func TestChemistry(t *testing.T) {
	e, h := newChemEngine(t)
	s0, _ := sulfur(e, h)
	p0 := peroxide(e, h)
	o := StepOpts{Chem: true, ChemDsl: true, ChemDsc: true, ChemRct: true}
	for step := 0; step < 5; step++ {
		if err := e.StepSync(StepOpts{}, h.fields()); err != nil {
			t.Fatal(err)
		}
		if _, err := e.StepAsync(o); err != nil {
			t.Fatal(err)
		}
	}
	s1, s6 := sulfur(e, h)
	if different(s0, s1, 1e-9) {
		t.Errorf("sulfur not conserved: %g -> %g", s0, s1)
	}
	if !(s6 > 0) {
		t.Fatalf("no oxidation: S(VI) = %g", s6)
	}
	consumed := (p0 - peroxide(e, h)) / aqsulfur.MH2O2
	if different(consumed, s6/aqsulfur.MS, 1e-6) {
		t.Errorf("H2O2 consumed %g mol, S(VI) produced %g mol", consumed, s6/aqsulfur.MS)
	}
	for g := range e.e.gas {
		for c, v := range e.e.gas[g] {
			if v < 0 {
				t.Errorf("gas %d in cell %d: %g", g, c, v)
			}
		}
	}
	st := &e.e.store
	for ix := 0; ix < st.count; ix++ {
		if !(st.H[ix] > 0) {
			t.Fatalf("superdroplet %d: [H+] = %g", ix, st.H[ix])
		}
	}
}

func TestDissolutionLimited(t *testing.T) {
	e, h := newChemEngine(t)
	// Far more water than the gas can saturate.
	st := &e.e.store
	for ix := 0; ix < st.count; ix++ {
		st.rw2[ix] = 1e-3 * 1e-3
	}
	s0, _ := sulfur(e, h)
	if err := e.StepSync(StepOpts{}, h.fields()); err != nil {
		t.Fatal(err)
	}
	if _, err := e.StepAsync(StepOpts{Chem: true, ChemDsl: true}); err != nil {
		t.Fatal(err)
	}
	s1, _ := sulfur(e, h)
	if different(s0, s1, 1e-9) {
		t.Errorf("sulfur not conserved: %g -> %g", s0, s1)
	}
	for c, v := range e.e.gas[gasSO2] {
		if v < 0 || v > e.e.opts.ChemSO2 {
			t.Errorf("cell %d: SO2 = %g", c, v)
		}
	}
}

func TestChemistryDisabled(t *testing.T) {
	e, h := newTestEngine(t, testOpts(), 283, 0.9)
	if err := e.StepSync(StepOpts{}, h.fields()); err != nil {
		t.Fatal(err)
	}
	if _, err := e.StepAsync(StepOpts{ChemRct: true}); err == nil {
		t.Error("chemistry ran without being enabled")
	}
}
