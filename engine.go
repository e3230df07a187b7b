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
	"math"
	"math/rand/v2"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/sdm/science/kernel"
	"gonum.org/v1/gonum/floats"
)

// Fields holds views of the host model fields, each with shape
// (nx, ny, nz) except the Courant numbers, which are defined on cell
// faces and have one extra element along their own direction. A field
// that is not used may be left as the zero FieldView.
type Fields struct {
	// Th is the dry potential temperature [K].
	Th FieldView

	// Rv is the water vapour mixing ratio [kg kg-1].
	Rv FieldView

	// Rhod is the dry air density [kg m-3].
	Rhod FieldView

	// CourantX, CourantY and CourantZ are the Courant numbers
	// u dt / dx of the flow normal to each cell face.
	CourantX, CourantY, CourantZ FieldView
}

// Stepper is implemented by Engine and Cluster.
type Stepper interface {
	// Init creates the superdroplets. It must be called once, before
	// stepping.
	Init(distros []DryDistro, f Fields) error

	// StepSync runs the processes that exchange water with the host
	// fields and writes the updated fields back.
	StepSync(o StepOpts, f Fields) error

	// StepAsync runs the processes that only modify the superdroplets and
	// returns the volume of water [m3] that fell through the bottom of
	// the domain.
	StepAsync(o StepOpts) (float64, error)
}

// New returns an Engine, or a Cluster if o.DevCount > 1.
func New(o Opts) (Stepper, error) {
	if o.DevCount > 1 {
		c, err := NewCluster(o)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	e, err := NewEngine(o)
	if err != nil {
		return nil, err
	}
	return e, nil
}

type state int

const (
	uninitialized state = iota
	ready
	synced
	asynced
)

func (s state) String() string {
	switch s {
	case uninitialized:
		return "uninitialized"
	case ready:
		return "ready"
	case synced:
		return "synced"
	case asynced:
		return "asynced"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// impl holds the state of one engine or cluster shard.
type impl struct {
	opts    Opts
	grid    grid
	backend Backend
	kern    kernel.Func
	rng     *rand.Rand
	log     *logrus.Entry
	metrics *Metrics

	shard int

	// periodic is true when particles leaving through an x face
	// re-enter through the opposite face of the same engine.
	periodic bool

	// deferFinalize is true for cluster shards, which finalize after
	// particles have been exchanged.
	deferFinalize bool

	state state
	err   error

	store particles

	sorted              bool
	sortedID, sortedIJK []int
	cellCount           []int
	segStarts           []int

	// Cell mirrors of the host fields and derived quantities.
	th, rv, rhod []float64
	T, p, RH     []float64
	gas          [nGas][]float64
	courant      [3][]float64

	// Fields saved at the start of the last asynchronous step.
	thOld, rvOld []float64
	haveOld      bool
	dth, drvCell []float64

	maps map[string]*fieldMap

	// Per-particle scratch space.
	scratch [4][]float64

	srcCount int
	step     int
}

func newImpl(o Opts, g grid, shard int, inCluster bool) (*impl, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}
	b, err := NewBackend(o.Backend)
	if err != nil {
		return nil, err
	}
	log := o.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	e := &impl{
		opts:          o,
		grid:          g,
		backend:       b,
		rng:           rand.New(rand.NewPCG(o.Seed, uint64(shard))),
		log:           log.WithField("shard", shard),
		metrics:       o.Metrics,
		shard:         shard,
		periodic:      !inCluster,
		deferFinalize: inCluster,
		maps:          make(map[string]*fieldMap),
	}
	if o.Coal {
		e.kern, _ = kernel.Lookup(o.Kernel)
	}
	n := g.ncell()
	for _, a := range []*[]float64{&e.th, &e.rv, &e.rhod, &e.T, &e.p, &e.RH,
		&e.thOld, &e.rvOld, &e.dth, &e.drvCell, &e.gas[gasSO2], &e.gas[gasH2O2]} {
		*a = make([]float64, n)
	}
	return e, nil
}

// Engine is a superdroplet simulation of a whole domain, which is
// periodic in the horizontal directions.
type Engine struct {
	e *impl
}

// NewEngine returns a new engine. Use NewCluster to split the domain into
// shards.
func NewEngine(o Opts) (*Engine, error) {
	if o.DevCount > 1 {
		return nil, fmt.Errorf("%w: DevCount is %d: use NewCluster", ErrConfig, o.DevCount)
	}
	e, err := newImpl(o, grid{
		nx: o.Nx, ny: o.Ny, nz: o.Nz,
		dx: o.Dx, dy: o.Dy, dz: o.Dz,
		nxGlobal: o.Nx,
	}, 0, false)
	if err != nil {
		return nil, err
	}
	return &Engine{e: e}, nil
}

// usable returns the error that aborted the engine, if any.
func (e *impl) usable() error {
	if e.err != nil {
		return fmt.Errorf("sdm: engine aborted by an earlier error: %w", e.err)
	}
	return nil
}

// fail records err, after which the engine refuses to continue.
func (e *impl) fail(err error) error {
	if err != nil && e.err == nil {
		e.err = err
		e.log.WithError(err).Error("superdroplet engine aborted")
	}
	return err
}

// Init implements Stepper.
func (e *Engine) Init(distros []DryDistro, f Fields) error {
	if err := e.e.usable(); err != nil {
		return err
	}
	return e.e.fail(e.e.init(distros, f))
}

// StepSync implements Stepper.
func (e *Engine) StepSync(o StepOpts, f Fields) error {
	if err := e.e.usable(); err != nil {
		return err
	}
	return e.e.fail(e.e.stepSync(o, f))
}

// StepAsync implements Stepper.
func (e *Engine) StepAsync(o StepOpts) (float64, error) {
	if err := e.e.usable(); err != nil {
		return 0, err
	}
	precip, err := e.e.stepAsync(o)
	return precip, e.e.fail(err)
}

// WetMoment returns the power-th moment of the wet radius distribution
// of superdroplets with wet radii in [rmin, rmax) in each occupied cell.
func (e *Engine) WetMoment(rmin, rmax, power float64) (Moments, error) {
	if err := e.e.usable(); err != nil {
		return Moments{}, err
	}
	e.e.ensureSorted()
	return e.e.moment(rmin, rmax, power, true)
}

// DryMoment returns the power-th moment of the dry radius distribution
// of superdroplets with dry radii in [rmin, rmax) in each occupied cell.
func (e *Engine) DryMoment(rmin, rmax, power float64) (Moments, error) {
	if err := e.e.usable(); err != nil {
		return Moments{}, err
	}
	e.e.ensureSorted()
	return e.e.moment(rmin, rmax, power, false)
}

// Count returns the number of superdroplets.
func (e *Engine) Count() int { return e.e.store.count }

// Multiplicity returns the number of real particles represented by the
// superdroplets.
func (e *Engine) Multiplicity() uint64 { return e.e.multiplicity() }

// LiquidVolume returns the total volume of liquid water [m3] held by
// the superdroplets.
func (e *Engine) LiquidVolume() float64 { return e.e.liquidVolume() }

func (e *impl) multiplicity() uint64 {
	var n uint64
	for _, m := range e.store.n[:e.store.count] {
		n += m
	}
	return n
}

func (e *impl) liquidVolume() float64 {
	st := &e.store
	n := make([]float64, st.count)
	v := make([]float64, st.count)
	for ix := range n {
		n[ix] = float64(st.n[ix])
		v[ix] = 4. / 3. * math.Pi * math.Pow(st.rw2[ix], 1.5)
	}
	return floats.Dot(n, v)
}

// bind returns the mapping of the named host field, building it on first
// use and checking on later uses that the field layout has not changed.
func (e *impl) bind(name string, v FieldView, nx, ny, nz int) (*fieldMap, error) {
	if m, ok := e.maps[name]; ok {
		if err := m.check(v); err != nil {
			return nil, err
		}
		return m, nil
	}
	m, err := newFieldMap(name, v, nx, ny, nz)
	if err != nil {
		return nil, err
	}
	e.maps[name] = m
	return m, nil
}

// syncCourant copies in the Courant fields that are provided.
func (e *impl) syncCourant(f Fields) error {
	g := e.grid
	for d, c := range []struct {
		name       string
		v          FieldView
		nx, ny, nz int
	}{
		{"courant x", f.CourantX, g.nx + 1, g.ny, g.nz},
		{"courant y", f.CourantY, g.nx, g.ny + 1, g.nz},
		{"courant z", f.CourantZ, g.nx, g.ny, g.nz + 1},
	} {
		if c.v.IsNull() {
			continue
		}
		m, err := e.bind(c.name, c.v, c.nx, c.ny, c.nz)
		if err != nil {
			return err
		}
		if e.courant[d] == nil {
			e.courant[d] = make([]float64, c.nx*c.ny*c.nz)
		}
		m.copyIn(e.courant[d], c.v)
	}
	return nil
}

func (e *impl) init(distros []DryDistro, f Fields) error {
	if e.state != uninitialized {
		return fmt.Errorf("%w: Init called on %v engine", ErrSequence, e.state)
	}
	if len(distros) == 0 {
		return fmt.Errorf("%w: no dry distributions", ErrConfig)
	}
	for _, d := range append(append([]DryDistro(nil), distros...), e.opts.SrcDistros...) {
		if err := d.validate(); err != nil {
			return err
		}
	}
	if f.Th.IsNull() || f.Rv.IsNull() || f.Rhod.IsNull() {
		return fmt.Errorf("%w: Init requires th, rv and rhod", ErrConfig)
	}
	g := e.grid
	for _, c := range []struct {
		name string
		v    FieldView
		dst  []float64
	}{{"th", f.Th, e.th}, {"rv", f.Rv, e.rv}, {"rhod", f.Rhod, e.rhod}} {
		m, err := e.bind(c.name, c.v, g.nx, g.ny, g.nz)
		if err != nil {
			return err
		}
		m.copyIn(c.dst, c.v)
	}
	for c := range e.rhod {
		if !(e.rhod[c] > 0) || e.rv[c] < 0 || !(e.th[c] > 0) {
			return fmt.Errorf("%w: invalid initial state in cell %d: th=%g rv=%g rhod=%g",
				ErrPrecondition, c, e.th[c], e.rv[c], e.rhod[c])
		}
	}
	if err := e.syncCourant(f); err != nil {
		return err
	}

	nmax := e.opts.NMax
	if nmax == 0 {
		nmax = 2 * g.ncell() * e.opts.SdConc * len(distros)
	}
	e.store.reserve(nmax, g.ny*g.nz*e.opts.SdConc*len(distros))
	for s := range e.scratch {
		e.scratch[s] = make([]float64, nmax)
	}
	if e.opts.Chem {
		for c := range e.gas[gasSO2] {
			e.gas[gasSO2][c] = e.opts.ChemSO2
			e.gas[gasH2O2][c] = e.opts.ChemH2O2
		}
	}

	e.ambient()
	all := func(int) bool { return true }
	for _, d := range distros {
		if _, err := e.sample(d, e.opts.SdConc, all); err != nil {
			return err
		}
	}
	e.setWetRadii(0)
	e.sort()
	if err := e.refreshAmbient(); err != nil {
		return err
	}
	e.state = ready
	e.metrics.setCount(e.shard, e.store.count)
	e.log.WithFields(logrus.Fields{
		"superdroplets": e.store.count,
		"capacity":      e.store.capacity(),
		"backend":       e.backend.Name(),
	}).Info("initialized superdroplets")
	return nil
}

func (e *impl) stepSync(o StepOpts, f Fields) error {
	start := time.Now()
	if e.state != ready && e.state != asynced {
		return fmt.Errorf("%w: StepSync called on %v engine", ErrSequence, e.state)
	}
	if err := e.opts.check(o); err != nil {
		return err
	}
	if f.Th.IsNull() || f.Rv.IsNull() {
		return fmt.Errorf("%w: StepSync requires th and rv", ErrConfig)
	}
	g := e.grid
	thm, err := e.bind("th", f.Th, g.nx, g.ny, g.nz)
	if err != nil {
		return err
	}
	rvm, err := e.bind("rv", f.Rv, g.nx, g.ny, g.nz)
	if err != nil {
		return err
	}
	if !f.Rhod.IsNull() {
		m, err := e.bind("rhod", f.Rhod, g.nx, g.ny, g.nz)
		if err != nil {
			return err
		}
		m.copyIn(e.rhod, f.Rhod)
	}
	if err := e.syncCourant(f); err != nil {
		return err
	}
	thm.copyIn(e.th, f.Th)
	rvm.copyIn(e.rv, f.Rv)

	if o.Cond {
		nsub := e.opts.SstpCond
		// Spread the host's change since the last asynchronous step
		// evenly over the sub-steps.
		spread := e.haveOld && nsub > 1
		if spread {
			for c := range e.th {
				e.dth[c] = (e.th[c] - e.thOld[c]) / float64(nsub)
				e.drvCell[c] = (e.rv[c] - e.rvOld[c]) / float64(nsub)
				e.th[c], e.rv[c] = e.thOld[c], e.rvOld[c]
			}
		}
		for s := 0; s < nsub; s++ {
			if spread {
				for c := range e.th {
					e.th[c] += e.dth[c]
					e.rv[c] += e.drvCell[c]
				}
			}
			e.ensureSorted()
			if err := e.condSubstep(o.RHMax); err != nil {
				return err
			}
		}
		thm.copyOut(f.Th, e.th)
		rvm.copyOut(f.Rv, e.rv)
	}
	e.state = synced
	e.metrics.observeStep("sync", time.Since(start))
	return nil
}

func (e *impl) stepAsync(o StepOpts) (float64, error) {
	start := time.Now()
	if e.state != synced {
		return 0, fmt.Errorf("%w: StepAsync called on %v engine", ErrSequence, e.state)
	}
	if err := e.opts.check(o); err != nil {
		return 0, err
	}
	if o.Adve && e.courant[0] == nil && e.courant[1] == nil && e.courant[2] == nil {
		return 0, fmt.Errorf("%w: advection requested but no Courant fields were provided", ErrConfig)
	}
	if e.opts.Cond {
		copy(e.thOld, e.th)
		copy(e.rvOld, e.rv)
		e.haveOld = true
	}

	e.ensureSorted()
	e.ambient()
	if err := e.refreshAmbient(); err != nil {
		return 0, err
	}

	if o.Adve {
		e.advect()
		e.locate(0)
		e.sorted = false
		e.ensureSorted()
		if err := e.refreshAmbient(); err != nil {
			return 0, err
		}
	}
	if o.Sedi || o.Coal {
		e.termVel(true)
	}
	if o.Sedi {
		e.sedimentation()
		e.locate(0)
		e.sorted = false
	}
	if o.Chem {
		for s := 0; s < e.opts.SstpChem; s++ {
			e.ensureSorted()
			if err := e.chemSubstep(o); err != nil {
				return 0, err
			}
		}
	}
	if o.Coal {
		nsub := e.opts.SstpCoal
		for s := 0; s < nsub; s++ {
			e.ensureSorted()
			e.termVel(false)
			e.coalSubstep()
			if s < nsub-1 {
				e.invalidateVT()
			}
		}
		e.store.compact()
		e.sorted = false
	}
	if o.Src {
		if err := e.source(); err != nil {
			return 0, err
		}
	} else {
		e.srcCount = 0
	}
	precip, err := e.bcond()
	if err != nil {
		return 0, err
	}
	if !e.deferFinalize {
		e.finalize()
	}
	e.step++
	e.state = asynced
	e.metrics.observeStep("async", time.Since(start))
	e.metrics.addPrecip(precip)
	e.metrics.setCount(e.shard, e.store.count)
	return precip, nil
}
