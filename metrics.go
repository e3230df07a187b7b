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
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus collectors describing engine activity. A nil
// *Metrics records nothing.
type Metrics struct {
	steps         *prometheus.CounterVec
	stepDuration  *prometheus.HistogramVec
	superdroplets *prometheus.GaugeVec
	migrated      prometheus.Counter
	precip        prometheus.Counter
}

// NewMetrics creates the engine collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sdm",
			Name:      "steps_total",
			Help:      "Number of completed steps by phase.",
		}, []string{"phase"}),
		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sdm",
			Name:      "step_duration_seconds",
			Help:      "Time taken by each step phase.",
			Buckets:   prometheus.ExponentialBuckets(1e-4, 4, 10),
		}, []string{"phase"}),
		superdroplets: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "sdm",
			Name:      "superdroplets",
			Help:      "Number of superdroplets held by each shard.",
		}, []string{"shard"}),
		migrated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sdm",
			Name:      "migrated_superdroplets_total",
			Help:      "Number of superdroplets moved between shards.",
		}),
		precip: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sdm",
			Name:      "precipitation_cubic_meters_total",
			Help:      "Volume of water removed through the bottom of the domain.",
		}),
	}
	for _, c := range []prometheus.Collector{m.steps, m.stepDuration, m.superdroplets, m.migrated, m.precip} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observeStep(phase string, d time.Duration) {
	if m == nil {
		return
	}
	m.steps.WithLabelValues(phase).Inc()
	m.stepDuration.WithLabelValues(phase).Observe(d.Seconds())
}

func (m *Metrics) setCount(shard, n int) {
	if m == nil {
		return
	}
	m.superdroplets.WithLabelValues(strconv.Itoa(shard)).Set(float64(n))
}

func (m *Metrics) addMigrated(n int) {
	if m == nil {
		return
	}
	m.migrated.Add(float64(n))
}

func (m *Metrics) addPrecip(v float64) {
	if m == nil {
		return
	}
	m.precip.Add(v)
}
