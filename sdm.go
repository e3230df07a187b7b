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

// Package sdm is a Lagrangian cloud microphysics engine based on the
// superdroplet method (Shima et al., 2009). A host fluid model owns the
// grid and the thermodynamic fields and drives the engine through a
// two-phase protocol: StepSync couples the particles to the host fields
// (condensation), and StepAsync evolves the particles on their own
// (advection, sedimentation, chemistry, coalescence, sources, and
// boundary conditions) while the host advances its dynamics.
package sdm

import (
	"errors"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/sdm/science/kernel"
)

// Version gives the version number.
const Version = "0.3.0"

var (
	// ErrSequence is returned when the two-phase stepping protocol is
	// violated.
	ErrSequence = errors.New("sdm: step sequencing error")

	// ErrConfig is returned when a step requests a process that was not
	// enabled at construction, or when host field views are inconsistent.
	ErrConfig = errors.New("sdm: configuration mismatch")

	// ErrPrecondition is returned when an internal precondition fails,
	// such as aggregation over unsorted particles or a negative vapour
	// mixing ratio.
	ErrPrecondition = errors.New("sdm: precondition violated")

	// ErrCapacity is returned when the particle store or a boundary buffer
	// is full.
	ErrCapacity = errors.New("sdm: capacity exceeded")
)

// Opts holds the options that are fixed when the engine is created.
type Opts struct {
	// Nx, Ny, and Nz are the number of grid cells in each direction. Use
	// Ny = 1 for two-dimensional x-z simulations.
	Nx, Ny, Nz int

	// Dx, Dy, and Dz are the grid spacings [m].
	Dx, Dy, Dz float64

	// Dt is the time step [s].
	Dt float64

	// SdConc is the number of superdroplets per cell and per dry
	// distribution created at initialization.
	SdConc int

	// NMax is the maximum number of superdroplets held by one engine.
	// If zero, it is set to twice the number created at initialization.
	NMax int

	// RdMin and RdMax bound the dry radii [m] sampled from dry
	// distributions.
	RdMin, RdMax float64

	// RHMaxInit caps the relative humidity used to compute the
	// equilibrium wet radius of newly created particles.
	RHMaxInit float64

	// Process switches. A process must be enabled here to be
	// requested in StepOpts.
	Cond, Sedi, Coal, Chem, Src bool

	// Number of sub-steps per time step for condensation, coalescence
	// and chemistry.
	SstpCond, SstpCoal, SstpChem int

	// Kernel is the name of the coalescence kernel.
	Kernel string

	// SrcInterval is the number of time steps between aerosol
	// injections.
	SrcInterval int

	// SrcSdConc is the number of superdroplets per cell and per source
	// distribution created at each injection.
	SrcSdConc int

	// SrcZMax is the height [m] below which aerosol is injected.
	SrcZMax float64

	// SrcDistros are the dry distributions of injected aerosol. Their
	// number densities are per injection.
	SrcDistros []DryDistro

	// ChemSO2 and ChemH2O2 are the initial gas-phase mass mixing ratios
	// [kg kg-1] of sulfur dioxide and hydrogen peroxide.
	ChemSO2, ChemH2O2 float64

	// DevCount is the number of shards the domain is split into along
	// the x axis. See NewCluster.
	DevCount int

	// Backend is the name of the parallel backend: "serial" or
	// "threads".
	Backend string

	// Seed seeds the random number generator.
	Seed uint64

	// Log receives log messages. If nil, the logrus standard logger is
	// used.
	Log *logrus.Logger

	// Metrics, if not nil, records engine activity.
	Metrics *Metrics
}

// StepOpts holds the options that may change from one step to the next.
type StepOpts struct {
	Adve, Sedi, Cond, Coal, Chem, Src bool

	// Chemistry sub-processes: dissolution, dissociation, and reaction.
	ChemDsl, ChemDsc, ChemRct bool

	// RHMax caps the relative humidity seen by condensation. Zero means
	// no cap.
	RHMax float64
}

// DefaultOpts returns options with every process disabled except
// condensation, on a single-cell grid.
func DefaultOpts() Opts {
	return Opts{
		Nx: 1, Ny: 1, Nz: 1,
		Dx: 1, Dy: 1, Dz: 1,
		Dt:        1,
		SdConc:    64,
		RdMin:     1e-9,
		RdMax:     1e-5,
		RHMaxInit: 0.95,
		Cond:      true,
		SstpCond:  1,
		SstpCoal:  1,
		SstpChem:  1,
		Kernel:    "geometric",
		DevCount:  1,
		Backend:   "threads",
		Seed:      1,
	}
}

// Validate checks that the options are consistent.
func (o *Opts) Validate() error {
	switch {
	case o.Nx < 1 || o.Ny < 1 || o.Nz < 1:
		return fmt.Errorf("%w: grid size must be positive: %dx%dx%d", ErrConfig, o.Nx, o.Ny, o.Nz)
	case !(o.Dx > 0 && o.Dy > 0 && o.Dz > 0):
		return fmt.Errorf("%w: grid spacing must be positive", ErrConfig)
	case !(o.Dt > 0):
		return fmt.Errorf("%w: time step must be positive", ErrConfig)
	case o.SdConc < 1:
		return fmt.Errorf("%w: SdConc must be positive", ErrConfig)
	case !(o.RdMin > 0 && o.RdMax > o.RdMin):
		return fmt.Errorf("%w: invalid dry radius range [%g, %g]", ErrConfig, o.RdMin, o.RdMax)
	case !(o.RHMaxInit > 0 && o.RHMaxInit < 1):
		return fmt.Errorf("%w: RHMaxInit must be in (0, 1)", ErrConfig)
	case o.SstpCond < 1 || o.SstpCoal < 1 || o.SstpChem < 1:
		return fmt.Errorf("%w: sub-step counts must be positive", ErrConfig)
	case o.DevCount < 1:
		return fmt.Errorf("%w: DevCount must be positive", ErrConfig)
	case o.NMax < 0:
		return fmt.Errorf("%w: NMax must not be negative", ErrConfig)
	}
	if o.Coal {
		if _, err := kernel.Lookup(o.Kernel); err != nil {
			return fmt.Errorf("%w: %v", ErrConfig, err)
		}
	}
	if o.Src {
		if o.SrcInterval < 1 || o.SrcSdConc < 1 {
			return fmt.Errorf("%w: SrcInterval and SrcSdConc must be positive", ErrConfig)
		}
		if len(o.SrcDistros) == 0 {
			return fmt.Errorf("%w: sources enabled with no source distributions", ErrConfig)
		}
	}
	if o.Chem && (o.ChemSO2 < 0 || o.ChemH2O2 < 0) {
		return fmt.Errorf("%w: negative initial gas concentration", ErrConfig)
	}
	return nil
}

// check returns an error if s requests a process that o does not enable.
func (o *Opts) check(s StepOpts) error {
	for _, c := range []struct {
		name           string
		asked, enabled bool
	}{
		{"condensation", s.Cond, o.Cond},
		{"sedimentation", s.Sedi, o.Sedi},
		{"coalescence", s.Coal, o.Coal},
		{"chemistry", s.Chem || s.ChemDsl || s.ChemDsc || s.ChemRct, o.Chem},
		{"sources", s.Src, o.Src},
	} {
		if c.asked && !c.enabled {
			return fmt.Errorf("%w: %s requested but not enabled at initialization", ErrConfig, c.name)
		}
	}
	if s.RHMax < 0 || math.IsNaN(s.RHMax) {
		return fmt.Errorf("%w: invalid RHMax %g", ErrConfig, s.RHMax)
	}
	return nil
}
