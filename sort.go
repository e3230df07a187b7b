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

// sort orders the active superdroplets by cell index. The order is stored
// as a permutation (sortedID) and the matching cell indices (sortedIJK);
// the particle columns themselves are not moved. The counting sort is
// stable, so superdroplets in the same cell keep their storage order.
func (e *impl) sort() {
	st := &e.store
	n := st.count
	if cap(e.sortedID) < st.capacity() {
		e.sortedID = make([]int, st.capacity())
		e.sortedIJK = make([]int, st.capacity())
	}
	e.sortedID = e.sortedID[:n]
	e.sortedIJK = e.sortedIJK[:n]

	ncell := e.grid.ncell()
	if len(e.cellCount) != ncell+1 {
		e.cellCount = make([]int, ncell+1)
	}
	count := e.cellCount
	for c := range count {
		count[c] = 0
	}
	for ix := 0; ix < n; ix++ {
		count[st.ijk[ix]+1]++
	}
	for c := 1; c <= ncell; c++ {
		count[c] += count[c-1]
	}
	for ix := 0; ix < n; ix++ {
		c := st.ijk[ix]
		e.sortedID[count[c]] = ix
		e.sortedIJK[count[c]] = c
		count[c]++
	}
	e.sorted = true
}

// ensureSorted sorts the superdroplets if they are not already sorted.
func (e *impl) ensureSorted() {
	if !e.sorted {
		e.sort()
	}
}

// segments returns the start positions in sorted order of each run of
// superdroplets sharing a cell, followed by the number of superdroplets.
func (e *impl) segments() []int {
	starts := e.segStarts[:0]
	for s := range e.sortedIJK {
		if s == 0 || e.sortedIJK[s] != e.sortedIJK[s-1] {
			starts = append(starts, s)
		}
	}
	starts = append(starts, len(e.sortedIJK))
	e.segStarts = starts
	return starts
}
