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

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
)

// Cluster is a superdroplet simulation with the domain split along x into
// slabs, one per shard. Shards step concurrently; superdroplets that
// leave a shard are handed to its neighbor at the end of each
// asynchronous step. The domain is periodic in x and y.
type Cluster struct {
	opts   Opts
	shards []*impl
	log    *logrus.Entry
}

// NewCluster returns a cluster of o.DevCount shards.
func NewCluster(o Opts) (*Cluster, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}
	n := o.DevCount
	if o.Nx < n {
		return nil, fmt.Errorf("%w: cannot split %d columns among %d shards", ErrConfig, o.Nx, n)
	}
	log := o.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	c := &Cluster{opts: o, log: log.WithField("shards", n)}
	i0 := 0
	for s := 0; s < n; s++ {
		nx := o.Nx / n
		if s < o.Nx%n {
			nx++
		}
		e, err := newImpl(o, grid{
			nx: nx, ny: o.Ny, nz: o.Nz,
			dx: o.Dx, dy: o.Dy, dz: o.Dz,
			i0: i0, nxGlobal: o.Nx,
		}, s, true)
		if err != nil {
			return nil, err
		}
		c.shards = append(c.shards, e)
		i0 += nx
	}
	return c, nil
}

// each runs f on every shard concurrently.
func (c *Cluster) each(f func(s int, e *impl) error) error {
	var g errgroup.Group
	for s, e := range c.shards {
		g.Go(func() error { return f(s, e) })
	}
	return g.Wait()
}

func (c *Cluster) usable() error {
	for _, e := range c.shards {
		if err := e.usable(); err != nil {
			return err
		}
	}
	return nil
}

// abort stops every shard.
func (c *Cluster) abort(err error) error {
	for _, e := range c.shards {
		e.fail(err)
	}
	return err
}

// sliceX returns the part of v held by shard e. Fields on x faces have
// one more element along x than cell-centered fields.
func sliceX(name string, v FieldView, e *impl, faces bool) (FieldView, error) {
	if v.IsNull() {
		return v, nil
	}
	g := e.grid
	n, extra := g.nxGlobal, 0
	if faces {
		extra = 1
	}
	if v.Rank() != 3 || v.Shape[0] != n+extra {
		return FieldView{}, fmt.Errorf("%w: %s has shape %v, want %d along x", ErrConfig, name, v.Shape, n+extra)
	}
	return v.Slice(0, g.i0, g.i0+g.nx+extra), nil
}

// shardFields returns the views of f held by shard e.
func shardFields(f Fields, e *impl) (Fields, error) {
	var out Fields
	var err error
	for _, x := range []struct {
		name  string
		src   FieldView
		dst   *FieldView
		faces bool
	}{
		{"th", f.Th, &out.Th, false},
		{"rv", f.Rv, &out.Rv, false},
		{"rhod", f.Rhod, &out.Rhod, false},
		{"courant x", f.CourantX, &out.CourantX, true},
		{"courant y", f.CourantY, &out.CourantY, false},
		{"courant z", f.CourantZ, &out.CourantZ, false},
	} {
		if *x.dst, err = sliceX(x.name, x.src, e, x.faces); err != nil {
			return Fields{}, err
		}
	}
	return out, nil
}

// Init implements Stepper.
func (c *Cluster) Init(distros []DryDistro, f Fields) error {
	if err := c.usable(); err != nil {
		return err
	}
	return c.each(func(_ int, e *impl) error {
		sf, err := shardFields(f, e)
		if err != nil {
			return e.fail(err)
		}
		return e.fail(e.init(distros, sf))
	})
}

// StepSync implements Stepper.
func (c *Cluster) StepSync(o StepOpts, f Fields) error {
	if err := c.usable(); err != nil {
		return err
	}
	return c.each(func(_ int, e *impl) error {
		sf, err := shardFields(f, e)
		if err != nil {
			return e.fail(err)
		}
		return e.fail(e.stepSync(o, sf))
	})
}

// StepAsync implements Stepper. Superdroplets crossing shard boundaries
// are exchanged after all shards have finished the step.
func (c *Cluster) StepAsync(o StepOpts) (float64, error) {
	if err := c.usable(); err != nil {
		return 0, err
	}
	precip := make([]float64, len(c.shards))
	err := c.each(func(s int, e *impl) error {
		p, err := e.stepAsync(o)
		precip[s] = p
		return e.fail(err)
	})
	if err != nil {
		return 0, err
	}
	if err := c.exchange(); err != nil {
		return 0, c.abort(err)
	}
	return floats.Sum(precip), nil
}

// exchange moves the contents of each shard's outgoing buffers into the
// incoming buffers of its neighbors, then lets every shard absorb what it
// received.
func (c *Cluster) exchange() error {
	n := len(c.shards)
	var migrated int
	for s, e := range c.shards {
		for _, x := range []struct {
			out *buffer
			dst *impl
		}{
			{&e.store.outL, c.shards[(s+n-1)%n]},
			{&e.store.outR, c.shards[(s+1)%n]},
		} {
			for _, r := range x.out.recs {
				if err := x.dst.store.in.push(r); err != nil {
					return err
				}
			}
			migrated += len(x.out.recs)
			x.out.reset()
		}
	}
	for _, e := range c.shards {
		if err := e.absorb(); err != nil {
			return err
		}
		e.finalize()
		e.metrics.setCount(e.shard, e.store.count)
	}
	c.opts.Metrics.addMigrated(migrated)
	c.log.WithField("migrated", migrated).Debug("exchanged superdroplets")
	return nil
}

// Count returns the number of superdroplets in all shards.
func (c *Cluster) Count() int {
	var n int
	for _, e := range c.shards {
		n += e.store.count
	}
	return n
}

// ShardCounts returns the number of superdroplets in each shard.
func (c *Cluster) ShardCounts() []int {
	n := make([]int, len(c.shards))
	for s, e := range c.shards {
		n[s] = e.store.count
	}
	return n
}

// Multiplicity returns the number of real particles represented by the
// superdroplets in all shards.
func (c *Cluster) Multiplicity() uint64 {
	var n uint64
	for _, e := range c.shards {
		n += e.multiplicity()
	}
	return n
}

// LiquidVolume returns the total volume of liquid water [m3] held by the
// superdroplets in all shards.
func (c *Cluster) LiquidVolume() float64 {
	v := make([]float64, len(c.shards))
	for s, e := range c.shards {
		v[s] = e.liquidVolume()
	}
	return floats.Sum(v)
}

// WetMoment is the cluster equivalent of Engine.WetMoment. Cell indices
// refer to the whole domain.
func (c *Cluster) WetMoment(rmin, rmax, power float64) (Moments, error) {
	return c.moment(rmin, rmax, power, true)
}

// DryMoment is the cluster equivalent of Engine.DryMoment.
func (c *Cluster) DryMoment(rmin, rmax, power float64) (Moments, error) {
	return c.moment(rmin, rmax, power, false)
}

func (c *Cluster) moment(rmin, rmax, power float64, wet bool) (Moments, error) {
	if err := c.usable(); err != nil {
		return Moments{}, err
	}
	out := Moments{nx: c.opts.Nx, ny: c.opts.Ny, nz: c.opts.Nz}
	for _, e := range c.shards {
		e.ensureSorted()
		m, err := e.moment(rmin, rmax, power, wet)
		if err != nil {
			return Moments{}, err
		}
		offset := e.grid.i0 * e.grid.ny * e.grid.nz
		for i, cell := range m.Cells {
			out.Cells = append(out.Cells, cell+offset)
			out.Values = append(out.Values, m.Values[i])
		}
	}
	return out, nil
}
