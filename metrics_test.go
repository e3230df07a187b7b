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
	"strconv"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	if err != nil {
		t.Fatal(err)
	}
	o := clusterOpts()
	o.Metrics = m
	c, h := newTestCluster(t, o)
	const nsteps = 3
	for step := 0; step < nsteps; step++ {
		if err := c.StepSync(StepOpts{}, h.fields()); err != nil {
			t.Fatal(err)
		}
		if _, err := c.StepAsync(StepOpts{Adve: true}); err != nil {
			t.Fatal(err)
		}
	}
	for _, phase := range []string{"sync", "async"} {
		// Each shard records its own steps.
		if v := testutil.ToFloat64(m.steps.WithLabelValues(phase)); v != 2*nsteps {
			t.Errorf("%s steps: %g", phase, v)
		}
	}
	counts := c.ShardCounts()
	for s, n := range counts {
		if v := testutil.ToFloat64(m.superdroplets.WithLabelValues(strconv.Itoa(s))); v != float64(n) {
			t.Errorf("shard %d: gauge %g, count %d", s, v, n)
		}
	}
	if v := testutil.ToFloat64(m.migrated); !(v > 0) {
		t.Errorf("migrated: %g", v)
	}

	if _, err := NewMetrics(reg); err == nil {
		t.Error("registered the same collectors twice")
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.observeStep("sync", 0)
	m.setCount(0, 1)
	m.addMigrated(1)
	m.addPrecip(1)
}
