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

// Package kernel provides coalescence kernels: the rate [m3 s-1] at which
// a pair of drops collides and coalesces.
package kernel

import (
	"fmt"
	"math"
	"strings"
)

// Drop holds the drop properties a kernel depends on.
type Drop struct {
	R  float64 // wet radius [m]
	VT float64 // terminal velocity [m s-1]
}

// Func is a coalescence kernel.
type Func func(a, b Drop) float64

// Geometric is the gravitational collection kernel with unit collision
// and coalescence efficiency.
func Geometric(a, b Drop) float64 {
	s := a.R + b.R
	return math.Pi * s * s * math.Abs(a.VT-b.VT)
}

// GolovinB is the Golovin kernel constant [s-1].
const GolovinB = 1.5e3

// Golovin is the additive kernel of Golovin (1963), which has an
// analytical solution and is commonly used for testing.
func Golovin(a, b Drop) float64 {
	return GolovinB * 4. / 3. * math.Pi * (a.R*a.R*a.R + b.R*b.R*b.R)
}

// Lookup returns the kernel with the given name.
func Lookup(name string) (Func, error) {
	switch strings.ToLower(name) {
	case "geometric":
		return Geometric, nil
	case "golovin":
		return Golovin, nil
	default:
		return nil, fmt.Errorf("kernel: unknown kernel %q", name)
	}
}
