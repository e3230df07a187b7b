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

func clusterOpts() Opts {
	o := testOpts()
	o.DevCount = 2
	o.Cond = false
	return o
}

func newTestCluster(t *testing.T, o Opts) (*Cluster, *host) {
	t.Helper()
	c, err := NewCluster(o)
	if err != nil {
		t.Fatal(err)
	}
	h := newHost(o, 283, 0.9)
	for ix := range h.cx {
		h.cx[ix] = 1
	}
	if err := c.Init(testDistros(), h.fields()); err != nil {
		t.Fatal(err)
	}
	return c, h
}

func TestNewCluster(t *testing.T) {
	o := clusterOpts()
	s, err := New(o)
	if err != nil {
		t.Fatal(err)
	}
	c, ok := s.(*Cluster)
	if !ok {
		t.Fatalf("New returned %T", s)
	}
	var nx []int
	for _, e := range c.shards {
		nx = append(nx, e.grid.nx)
	}
	if len(nx) != 2 || nx[0] != 2 || nx[1] != 2 {
		t.Errorf("shard widths %v", nx)
	}
	if c.shards[1].grid.i0 != 2 {
		t.Errorf("second shard starts at column %d", c.shards[1].grid.i0)
	}

	o.DevCount = 5
	if _, err := NewCluster(o); !errors.Is(err, ErrConfig) {
		t.Errorf("more shards than columns: %v", err)
	}
}

func TestClusterInit(t *testing.T) {
	o := clusterOpts()
	c, _ := newTestCluster(t, o)
	counts := c.ShardCounts()
	if counts[0]+counts[1] != c.Count() {
		t.Errorf("shard counts %v, total %d", counts, c.Count())
	}
	for s, e := range c.shards {
		st := &e.store
		x0, x1 := e.grid.x0(), e.grid.x1()
		for ix := 0; ix < st.count; ix++ {
			if st.x[ix] < x0 || st.x[ix] >= x1 {
				t.Fatalf("shard %d: superdroplet at x = %g outside [%g, %g)", s, st.x[ix], x0, x1)
			}
		}
	}
}

// With a uniform Courant number of one, every superdroplet moves one
// column to the right, crossing a shard boundary from columns 1 and 3.
func TestClusterExchange(t *testing.T) {
	o := clusterOpts()
	c, h := newTestCluster(t, o)
	m0, err := c.DryMoment(0, math.Inf(1), 0)
	if err != nil {
		t.Fatal(err)
	}
	d0 := m0.Dense()
	n0, mult0, w0 := c.Count(), c.Multiplicity(), c.LiquidVolume()

	if err := c.StepSync(StepOpts{}, h.fields()); err != nil {
		t.Fatal(err)
	}
	if _, err := c.StepAsync(StepOpts{Adve: true}); err != nil {
		t.Fatal(err)
	}
	if c.Count() != n0 || c.Multiplicity() != mult0 {
		t.Errorf("count %d -> %d, multiplicity %d -> %d", n0, c.Count(), mult0, c.Multiplicity())
	}
	if different(c.LiquidVolume(), w0, 1e-12) {
		t.Errorf("liquid volume %g -> %g", w0, c.LiquidVolume())
	}
	m1, err := c.DryMoment(0, math.Inf(1), 0)
	if err != nil {
		t.Fatal(err)
	}
	d1 := m1.Dense()
	for i := 0; i < o.Nx; i++ {
		for k := 0; k < o.Nz; k++ {
			want := d0.Get(i, 0, k)
			have := d1.Get((i+1)%o.Nx, 0, k)
			if different(want, have, 1e-12) {
				t.Errorf("column %d, level %d: %g moved to %g", i, k, want, have)
			}
		}
	}
	for s, e := range c.shards {
		st := &e.store
		if len(st.outL.recs)+len(st.outR.recs)+len(st.in.recs) != 0 {
			t.Errorf("shard %d: buffers not emptied", s)
		}
		g := e.grid
		for ix := 0; ix < st.count; ix++ {
			i := cellIndex(st.x[ix]-g.x0(), g.dx, g.nx)
			j := cellIndex(st.y[ix], g.dy, g.ny)
			k := cellIndex(st.z[ix], g.dz, g.nz)
			if st.i[ix] != i || st.j[ix] != j || st.k[ix] != k || st.ijk[ix] != g.cell(i, j, k) {
				t.Fatalf("shard %d: superdroplet %d has stale cell indices", s, ix)
			}
		}
	}
}

func TestClusterSingleParticle(t *testing.T) {
	o := clusterOpts()
	c, h := newTestCluster(t, o)
	for _, e := range c.shards {
		e.store.count = 0
		e.sorted = false
	}
	src := c.shards[0]
	want := record{n: 1000, rd3: 1e-21, rw2: 4e-12, kpa: 0.61, x: 150, y: 50, z: 150}
	if _, err := src.store.add(want); err != nil {
		t.Fatal(err)
	}
	src.locate(0)

	if err := c.StepSync(StepOpts{}, h.fields()); err != nil {
		t.Fatal(err)
	}
	if _, err := c.StepAsync(StepOpts{Adve: true}); err != nil {
		t.Fatal(err)
	}
	if counts := c.ShardCounts(); counts[0] != 0 || counts[1] != 1 {
		t.Fatalf("shard counts %v", counts)
	}
	dst := c.shards[1]
	have := dst.store.get(0)
	if have.n != want.n || have.rd3 != want.rd3 || have.rw2 != want.rw2 || have.kpa != want.kpa {
		t.Errorf("attributes changed: %+v -> %+v", want, have)
	}
	if different(have.x, 250, 1e-12) {
		t.Errorf("x = %g", have.x)
	}
	st := &dst.store
	if st.i[0] != 0 || st.j[0] != 0 || st.k[0] != 1 || st.ijk[0] != dst.grid.cell(0, 0, 1) {
		t.Errorf("cell indices (%d, %d, %d), %d", st.i[0], st.j[0], st.k[0], st.ijk[0])
	}
}

func TestClusterCapacity(t *testing.T) {
	o := clusterOpts()
	c, h := newTestCluster(t, o)
	c.shards[0].store.outR = newBuffer(0)
	if err := c.StepSync(StepOpts{}, h.fields()); err != nil {
		t.Fatal(err)
	}
	if _, err := c.StepAsync(StepOpts{Adve: true}); !errors.Is(err, ErrCapacity) {
		t.Fatalf("overflowing buffer: %v", err)
	}
	if err := c.StepSync(StepOpts{}, h.fields()); err == nil {
		t.Error("cluster continued after an error")
	}
	if _, err := c.WetMoment(0, 1, 3); !errors.Is(err, ErrCapacity) {
		t.Errorf("moment of an aborted cluster: %v", err)
	}
}
