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
	"runtime"
	"sync"
)

// Backend runs data-parallel loops. All particle and cell computations go
// through a Backend, chosen once when an engine is created.
type Backend interface {
	// Name returns the name of the backend.
	Name() string

	// For calls f on contiguous chunks [lo, hi) that together cover
	// [0, n) exactly once, and returns when all calls have returned.
	// Calls may run concurrently, so f must only write to data owned by
	// its chunk.
	For(n int, f func(lo, hi int))
}

// NewBackend returns the backend with the given name.
func NewBackend(name string) (Backend, error) {
	switch name {
	case "serial":
		return Serial{}, nil
	case "threads", "":
		return NewThreads(0), nil
	default:
		return nil, fmt.Errorf("%w: unknown backend %q", ErrConfig, name)
	}
}

// Serial is a single-threaded backend.
type Serial struct{}

// Name implements Backend.
func (Serial) Name() string { return "serial" }

// For implements Backend.
func (Serial) For(n int, f func(lo, hi int)) {
	if n > 0 {
		f(0, n)
	}
}

// parallelThreshold is the smallest loop that Threads runs concurrently.
const parallelThreshold = 256

// Threads is a multi-threaded backend.
type Threads struct {
	workers int
}

// NewThreads returns a multi-threaded backend with the given number of
// workers. If workers < 1, GOMAXPROCS workers are used.
func NewThreads(workers int) Threads {
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}
	return Threads{workers: workers}
}

// Name implements Backend.
func (Threads) Name() string { return "threads" }

// For implements Backend.
func (t Threads) For(n int, f func(lo, hi int)) {
	if n <= 0 {
		return
	}
	if n < parallelThreshold || t.workers < 2 {
		f(0, n)
		return
	}
	chunkSize := (n + t.workers - 1) / t.workers
	var wg sync.WaitGroup
	for lo := 0; lo < n; lo += chunkSize {
		hi := lo + chunkSize
		if hi > n {
			hi = n
		}
		wg.Add(1)
		go func(lo, hi int) {
			f(lo, hi)
			wg.Done()
		}(lo, hi)
	}
	wg.Wait()
}
