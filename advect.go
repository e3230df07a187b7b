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

// advect moves the superdroplets with the flow. The Courant number at a
// particle is interpolated linearly between the two faces of its cell
// normal to each direction; directions without a Courant field are not
// advected.
func (e *impl) advect() {
	g := e.grid
	st := &e.store
	cx, cy, cz := e.courant[0], e.courant[1], e.courant[2]
	x0 := g.x0()
	e.backend.For(st.count, func(lo, hi int) {
		for ix := lo; ix < hi; ix++ {
			i, j, k := st.i[ix], st.j[ix], st.k[ix]
			var dx, dy, dz float64
			if cx != nil {
				f := (st.x[ix]-x0)/g.dx - float64(i)
				c0 := cx[(i*g.ny+j)*g.nz+k]
				c1 := cx[((i+1)*g.ny+j)*g.nz+k]
				dx = (c0 + (c1-c0)*f) * g.dx
			}
			if cy != nil {
				f := st.y[ix]/g.dy - float64(j)
				c0 := cy[(i*(g.ny+1)+j)*g.nz+k]
				c1 := cy[(i*(g.ny+1)+j+1)*g.nz+k]
				dy = (c0 + (c1-c0)*f) * g.dy
			}
			if cz != nil {
				f := st.z[ix]/g.dz - float64(k)
				c0 := cz[(i*g.ny+j)*(g.nz+1)+k]
				c1 := cz[(i*g.ny+j)*(g.nz+1)+k+1]
				dz = (c0 + (c1-c0)*f) * g.dz
			}
			st.x[ix] += dx
			st.y[ix] += dy
			st.z[ix] += dz
		}
	})
}

// sedimentation moves the superdroplets down at their terminal velocity.
func (e *impl) sedimentation() {
	st := &e.store
	dt := e.opts.Dt
	e.backend.For(st.count, func(lo, hi int) {
		for ix := lo; ix < hi; ix++ {
			st.z[ix] -= st.vt[ix] * dt
		}
	})
}
