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

	"github.com/ctessum/sparse"
	"gonum.org/v1/gonum/mat"
)

// BoundsCheck specifies whether FieldView accesses are checked against
// the view's shape.
var BoundsCheck = true

// FieldView is a strided view into a host-owned array of float64 values.
// The zero value represents a field that was not provided.
type FieldView struct {
	Data    []float64
	Offset  int
	Shape   []int
	Strides []int
}

// NewFieldView returns a view of data with the given shape and strides,
// checking that every element of the view lies within data.
func NewFieldView(data []float64, offset int, shape, strides []int) (FieldView, error) {
	v := FieldView{Data: data, Offset: offset, Shape: shape, Strides: strides}
	if err := v.validate(); err != nil {
		return FieldView{}, err
	}
	return v, nil
}

// Contiguous returns a row-major view of data with the given shape.
// It panics if data is too short.
func Contiguous(data []float64, shape ...int) FieldView {
	strides := make([]int, len(shape))
	s := 1
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = s
		s *= shape[i]
	}
	if s > len(data) {
		panic(fmt.Errorf("sdm: %d elements do not fit shape %v", len(data), shape))
	}
	return FieldView{Data: data, Shape: shape, Strides: strides}
}

// ViewOfDense returns a view of a dense array. The array's elements are
// shared, not copied.
func ViewOfDense(a *sparse.DenseArray) FieldView {
	return Contiguous(a.Elements, a.Shape...)
}

// ViewOfXZ returns a three-dimensional view, with a y extent of one, of
// a matrix holding a two-dimensional x-z field with x along the rows.
// The matrix's elements are shared, not copied.
func ViewOfXZ(m *mat.Dense) FieldView {
	raw := m.RawMatrix()
	return FieldView{
		Data:    raw.Data,
		Shape:   []int{raw.Rows, 1, raw.Cols},
		Strides: []int{raw.Stride, 0, 1},
	}
}

// IsNull returns whether the field was not provided.
func (v FieldView) IsNull() bool { return v.Data == nil || v.Shape == nil }

// Rank returns the number of dimensions of the view.
func (v FieldView) Rank() int { return len(v.Shape) }

func (v FieldView) validate() error {
	if v.IsNull() {
		return nil
	}
	if len(v.Strides) != len(v.Shape) {
		return fmt.Errorf("%w: field view has %d strides for %d dimensions", ErrConfig, len(v.Strides), len(v.Shape))
	}
	lo, hi := v.Offset, v.Offset
	for i, n := range v.Shape {
		if n < 1 {
			return fmt.Errorf("%w: field view shape %v", ErrConfig, v.Shape)
		}
		d := (n - 1) * v.Strides[i]
		if d < 0 {
			lo += d
		} else {
			hi += d
		}
	}
	if lo < 0 || hi >= len(v.Data) {
		return fmt.Errorf("%w: field view shape %v strides %v offset %d exceeds %d elements",
			ErrConfig, v.Shape, v.Strides, v.Offset, len(v.Data))
	}
	return nil
}

// Index returns the position in Data of the element at the given
// multi-dimensional index.
func (v FieldView) Index(index ...int) int {
	if BoundsCheck {
		if len(index) != len(v.Shape) {
			panic(fmt.Errorf("sdm: index %v has wrong rank for shape %v", index, v.Shape))
		}
		for i, ix := range index {
			if ix < 0 || ix >= v.Shape[i] {
				panic(fmt.Errorf("sdm: index %v out of range for shape %v", index, v.Shape))
			}
		}
	}
	p := v.Offset
	for i, ix := range index {
		p += ix * v.Strides[i]
	}
	return p
}

// At returns the element at the given index.
func (v FieldView) At(index ...int) float64 { return v.Data[v.Index(index...)] }

// Set sets the element at the given index.
func (v FieldView) Set(val float64, index ...int) { v.Data[v.Index(index...)] = val }

// Slice returns the sub-view with dimension dim restricted to [lo, hi).
func (v FieldView) Slice(dim, lo, hi int) FieldView {
	if v.IsNull() {
		return v
	}
	if dim < 0 || dim >= len(v.Shape) || lo < 0 || hi > v.Shape[dim] || lo >= hi {
		panic(fmt.Errorf("sdm: invalid slice [%d, %d) of dimension %d with shape %v", lo, hi, dim, v.Shape))
	}
	shape := append([]int(nil), v.Shape...)
	shape[dim] = hi - lo
	return FieldView{
		Data:    v.Data,
		Offset:  v.Offset + lo*v.Strides[dim],
		Shape:   shape,
		Strides: append([]int(nil), v.Strides...),
	}
}

// sameLayout returns whether two views address their data identically.
func (v FieldView) sameLayout(o FieldView) bool {
	if v.Offset != o.Offset || len(v.Shape) != len(o.Shape) || len(v.Strides) != len(o.Strides) {
		return false
	}
	for i := range v.Shape {
		if v.Shape[i] != o.Shape[i] || v.Strides[i] != o.Strides[i] {
			return false
		}
	}
	return true
}

// fieldMap translates between a host field and an internal cell array.
type fieldMap struct {
	name   string
	layout FieldView // the view the map was built from, without its data
	offs   []int     // position in the host data of each internal element
}

// newFieldMap builds the mapping of view v, which must have shape
// (nx, ny, nz), to internal row-major order.
func newFieldMap(name string, v FieldView, nx, ny, nz int) (*fieldMap, error) {
	if err := v.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if v.Rank() != 3 || v.Shape[0] != nx || v.Shape[1] != ny || v.Shape[2] != nz {
		return nil, fmt.Errorf("%w: %s has shape %v, want [%d %d %d]", ErrConfig, name, v.Shape, nx, ny, nz)
	}
	m := &fieldMap{
		name:   name,
		layout: FieldView{Offset: v.Offset, Shape: v.Shape, Strides: v.Strides},
		offs:   make([]int, 0, nx*ny*nz),
	}
	for i := 0; i < nx; i++ {
		for j := 0; j < ny; j++ {
			for k := 0; k < nz; k++ {
				m.offs = append(m.offs, v.Offset+i*v.Strides[0]+j*v.Strides[1]+k*v.Strides[2])
			}
		}
	}
	return m, nil
}

// check returns an error if v is not laid out like the view the map was
// built from.
func (m *fieldMap) check(v FieldView) error {
	if !m.layout.sameLayout(v) {
		return fmt.Errorf("%w: %s layout changed from shape %v strides %v to shape %v strides %v",
			ErrConfig, m.name, m.layout.Shape, m.layout.Strides, v.Shape, v.Strides)
	}
	if err := v.validate(); err != nil {
		return fmt.Errorf("%s: %w", m.name, err)
	}
	return nil
}

func (m *fieldMap) copyIn(dst []float64, v FieldView) {
	for i, o := range m.offs {
		dst[i] = v.Data[o]
	}
}

func (m *fieldMap) copyOut(v FieldView, src []float64) {
	for i, o := range m.offs {
		v.Data[o] = src[i]
	}
}
