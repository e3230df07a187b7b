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
	"errors"
	"math"
	"testing"
)

func TestSort(t *testing.T) {
	e, _ := newTestEngine(t, testOpts(), 283, 0.9)
	ee := e.e
	// Shuffle storage order relative to cells.
	st := &ee.store
	for ix := 0; ix < st.count/2; ix++ {
		st.x[ix], st.x[st.count-1-ix] = st.x[st.count-1-ix], st.x[ix]
		st.z[ix], st.z[st.count-1-ix] = st.z[st.count-1-ix], st.z[ix]
	}
	ee.locate(0)
	ee.sorted = false
	ee.sort()
	if !ee.sorted {
		t.Fatal("flag not set")
	}
	first := append([]int(nil), ee.sortedID...)
	for s := 1; s < len(ee.sortedID); s++ {
		if ee.sortedIJK[s] < ee.sortedIJK[s-1] {
			t.Fatalf("position %d out of order", s)
		}
		if ee.sortedIJK[s] == ee.sortedIJK[s-1] && ee.sortedID[s] < ee.sortedID[s-1] {
			t.Fatalf("position %d: sort is not stable", s)
		}
		if ee.sortedIJK[s] != st.ijk[ee.sortedID[s]] {
			t.Fatalf("position %d: key does not match particle", s)
		}
	}
	ee.sort()
	for s := range first {
		if first[s] != ee.sortedID[s] {
			t.Fatal("sorting is not idempotent")
		}
	}
}

func TestReduceByKey(t *testing.T) {
	for _, name := range []string{"serial", "threads"} {
		b, _ := NewBackend(name)
		e := &impl{backend: b}
		const n = 5000
		keys := make([]int, n)
		vals := make([]float64, n)
		want := make(map[int]float64)
		for i := range keys {
			keys[i] = i / 7 * 3
			vals[i] = float64(i%11) + 0.5
			want[keys[i]] += vals[i]
		}
		k, v := e.reduceByKey(keys, vals)
		if len(k) != len(want) {
			t.Fatalf("%s: %d keys, want %d", name, len(k), len(want))
		}
		for i := range k {
			if v[i] != want[k[i]] {
				t.Errorf("%s: key %d: %g, want %g", name, k[i], v[i], want[k[i]])
			}
			if i > 0 && k[i] <= k[i-1] {
				t.Errorf("%s: keys out of order", name)
			}
		}
	}
}

func TestMomentAdditivity(t *testing.T) {
	e, _ := newTestEngine(t, testOpts(), 283, 0.9)
	for _, rsplit := range []float64{0.03e-6, 0.1e-6, 0.2e-6, 1e-6} {
		for _, p := range []float64{0, 1, 2, 3, 6} {
			checkAdditivity(t, e, rsplit, p)
		}
	}
}

func checkAdditivity(t *testing.T, e *Engine, rsplit, p float64) {
	t.Helper()
	all, err := e.WetMoment(0, math.Inf(1), p)
	if err != nil {
		t.Fatal(err)
	}
	lo, _ := e.WetMoment(0, rsplit, p)
	hi, _ := e.WetMoment(rsplit, math.Inf(1), p)
	if lo.Len() != all.Len() || hi.Len() != all.Len() {
		t.Fatalf("occupied cells differ: %d %d %d", lo.Len(), hi.Len(), all.Len())
	}
	for i := range all.Values {
		if lo.Values[i]+hi.Values[i] != all.Values[i] {
			t.Errorf("r=%g p=%g cell %d: %g + %g != %g", rsplit, p, all.Cells[i], lo.Values[i], hi.Values[i], all.Values[i])
		}
	}
}

func TestMomentValues(t *testing.T) {
	e, _ := newTestEngine(t, testOpts(), 283, 0.9)
	ee := e.e
	st := &ee.store
	dv := ee.grid.dv()
	want := make(map[int]float64)
	for ix := 0; ix < st.count; ix++ {
		want[st.ijk[ix]] += float64(st.n[ix]) / dv * st.rd3[ix]
	}
	m, err := e.DryMoment(0, 1, 3)
	if err != nil {
		t.Fatal(err)
	}
	for i, c := range m.Cells {
		if different(m.Values[i], want[c], 1e-10) {
			t.Errorf("cell %d: %g, want %g", c, m.Values[i], want[c])
		}
	}
	d := m.Dense()
	if d.Get(0, 0, 0) != m.Values[0] {
		t.Errorf("dense: %g", d.Get(0, 0, 0))
	}
}

func TestMomentUnsorted(t *testing.T) {
	e, _ := newTestEngine(t, testOpts(), 283, 0.9)
	e.e.sorted = false
	if _, err := e.e.moment(0, 1, 0, true); !errors.Is(err, ErrPrecondition) {
		t.Errorf("want ErrPrecondition, got %v", err)
	}
	if err := e.e.updateState(e.e.store.T, e.e.T); !errors.Is(err, ErrPrecondition) {
		t.Errorf("want ErrPrecondition, got %v", err)
	}
}

func TestUpdateState(t *testing.T) {
	e, _ := newTestEngine(t, testOpts(), 283, 0.9)
	ee := e.e
	st := &ee.store
	cellVal := make([]float64, ee.grid.ncell())
	for c := range cellVal {
		cellVal[c] = float64(c) * 1.5
	}
	dst := make([]float64, st.count)
	if err := ee.updateState(dst, cellVal); err != nil {
		t.Fatal(err)
	}
	for ix := range dst {
		if dst[ix] != cellVal[st.ijk[ix]] {
			t.Errorf("particle %d: %g, want %g", ix, dst[ix], cellVal[st.ijk[ix]])
		}
	}
	// Summing ones gives the number of superdroplets in each cell.
	ones := make([]float64, st.count)
	for ix := range ones {
		ones[ix] = 1
	}
	counts := make([]float64, ee.grid.ncell())
	if err := ee.updatePstate(counts, ones); err != nil {
		t.Fatal(err)
	}
	var total float64
	for _, c := range counts {
		total += c
	}
	if int(total) != st.count {
		t.Errorf("total %g, want %d", total, st.count)
	}
}

func TestUpdateThRvNegative(t *testing.T) {
	e, _ := newTestEngine(t, testOpts(), 283, 0.9)
	ee := e.e
	drv := make([]float64, ee.store.count)
	for ix := range drv {
		drv[ix] = -1
	}
	if err := ee.updateThRv(drv); !errors.Is(err, ErrPrecondition) {
		t.Errorf("want ErrPrecondition, got %v", err)
	}
}
