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
	"github.com/sirupsen/logrus"
)

// source injects aerosol into the cells below SrcZMax every SrcInterval
// calls.
func (e *impl) source() error {
	e.srcCount++
	if e.srcCount < e.opts.SrcInterval {
		return nil
	}
	e.srcCount = 0

	dz := e.grid.dz
	zmax := e.opts.SrcZMax
	below := func(k int) bool { return (float64(k)+0.5)*dz < zmax }
	from := e.store.count
	for _, d := range e.opts.SrcDistros {
		if _, err := e.sample(d, e.opts.SrcSdConc, below); err != nil {
			return err
		}
	}
	e.setWetRadii(from)
	e.sorted = false
	e.log.WithFields(logrus.Fields{
		"step":  e.step,
		"added": e.store.count - from,
	}).Debug("injected aerosol")
	return nil
}
