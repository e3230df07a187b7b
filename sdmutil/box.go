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

package sdmutil

import (
	"fmt"

	"github.com/ctessum/sparse"
	"github.com/ctessum/unit"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/sdm"
	"github.com/spatialmodel/sdm/science/thermo"
)

// BoxConfig describes a horizontally uniform domain at rest.
type BoxConfig struct {
	Steps int
	T     float64 // temperature [K]
	RH    float64 // initial relative humidity
	Rhod  float64 // dry air density [kg m-3]
}

type diagnostics interface {
	Count() int
	LiquidVolume() float64
}

// Run initializes an engine with options o and distributions distros,
// runs b.Steps steps of every process enabled in o and returns the
// accumulated precipitation depth.
func (b BoxConfig) Run(o sdm.Opts, distros []sdm.DryDistro) (*unit.Unit, error) {
	if b.Steps < 0 || !(b.T > 0) || !(b.RH > 0) || !(b.Rhod > 0) {
		return nil, fmt.Errorf("sdmutil: invalid box configuration %+v", b)
	}
	log := o.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	s, err := sdm.New(o)
	if err != nil {
		return nil, err
	}
	th := sparse.ZerosDense(o.Nx, o.Ny, o.Nz)
	rv := sparse.ZerosDense(o.Nx, o.Ny, o.Nz)
	rhod := sparse.ZerosDense(o.Nx, o.Ny, o.Nz)
	for i := range th.Elements {
		rhod.Elements[i] = b.Rhod
		th.Elements[i] = thermo.Theta(b.T, b.Rhod)
		rv.Elements[i] = thermo.RvFromRH(b.RH, b.Rhod, b.T)
	}
	f := sdm.Fields{
		Th:   sdm.ViewOfDense(th),
		Rv:   sdm.ViewOfDense(rv),
		Rhod: sdm.ViewOfDense(rhod),
	}
	if err := s.Init(distros, f); err != nil {
		return nil, err
	}
	so := sdm.StepOpts{
		Cond: o.Cond, Sedi: o.Sedi, Coal: o.Coal, Src: o.Src,
		Chem: o.Chem, ChemDsl: o.Chem, ChemDsc: o.Chem, ChemRct: o.Chem,
	}
	precip := unit.New(0, unit.Meter3)
	for step := 0; step < b.Steps; step++ {
		if err := s.StepSync(so, f); err != nil {
			return nil, err
		}
		p, err := s.StepAsync(so)
		if err != nil {
			return nil, err
		}
		precip.Add(unit.New(p, unit.Meter3))
		fields := logrus.Fields{"step": step + 1}
		if d, ok := s.(diagnostics); ok {
			fields["superdroplets"] = d.Count()
			fields["liquid volume"] = d.LiquidVolume()
		}
		log.WithFields(fields).Debug("completed step")
	}
	area := unit.New(o.Dx*o.Dy*float64(o.Nx*o.Ny), unit.Meter2)
	depth := unit.Div(precip, area)
	if err := depth.Check(unit.Meter); err != nil {
		return nil, fmt.Errorf("sdmutil: precipitation depth: %v", err)
	}
	log.WithField("precipitation", fmt.Sprintf("%.4g", depth)).Info("box run complete")
	return depth, nil
}
